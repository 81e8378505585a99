package services

import (
	"net/url"
	"strings"
)

const (
	ShippingProviderRoyalMail = "royalmail"
	ShippingProviderDPD       = "dpd"
	ShippingProviderEvri      = "evri"
	ShippingProviderOther     = "other"
)

// NormalizeShippingProvider returns a canonical provider key for known carriers.
func NormalizeShippingProvider(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	replacer := strings.NewReplacer(" ", "", "-", "", "_", "")
	normalized = replacer.Replace(normalized)

	switch normalized {
	case "royalmail":
		return ShippingProviderRoyalMail
	case "dpd", "dpduk":
		return ShippingProviderDPD
	case "evri", "hermes", "myhermes":
		return ShippingProviderEvri
	case "other":
		return ShippingProviderOther
	default:
		return ""
	}
}

// CanonicalCarrierName maps a provider key to the display name.
func CanonicalCarrierName(provider string) string {
	switch NormalizeShippingProvider(provider) {
	case ShippingProviderRoyalMail:
		return "Royal Mail"
	case ShippingProviderDPD:
		return "DPD"
	case ShippingProviderEvri:
		return "Evri"
	default:
		return ""
	}
}

// NormalizeCarrierName keeps custom carriers untouched and normalizes known ones.
func NormalizeCarrierName(carrier string) string {
	trimmed := strings.TrimSpace(carrier)
	if trimmed == "" {
		return ""
	}
	if canonical := CanonicalCarrierName(trimmed); canonical != "" {
		return canonical
	}
	return trimmed
}

// BuildTrackingURL returns a carrier-specific tracking URL. Unknown carriers return empty.
func BuildTrackingURL(carrier, trackingNumber string) string {
	number := strings.TrimSpace(trackingNumber)
	if number == "" {
		return ""
	}

	escaped := url.QueryEscape(number)
	switch NormalizeShippingProvider(carrier) {
	case ShippingProviderRoyalMail:
		return "https://www.royalmail.com/track-your-item#/tracking-results/" + escaped
	case ShippingProviderDPD:
		return "https://track.dpd.co.uk/parcels/" + escaped
	case ShippingProviderEvri:
		return "https://www.evri.com/track/parcel/" + escaped
	default:
		return ""
	}
}
