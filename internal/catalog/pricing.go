// Package catalog holds pricing strategies applied on top of variant prices.
package catalog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ShippingCalculator computes the shipping charge for an order, in minor
// currency units.
type ShippingCalculator interface {
	ShippingPence(subtotalPence int, country string) int
}

// TaxCalculator computes the tax charge for an order, in minor currency units.
type TaxCalculator interface {
	TaxPence(subtotalPence, shippingPence int, country string) int
}

// FreeShipping charges nothing. Used when no rates file is configured,
// preserving the launch behavior of shipping being folded into item prices.
type FreeShipping struct{}

func (FreeShipping) ShippingPence(int, string) int { return 0 }

// ZeroTax charges nothing. Hosted checkout collects tax where required, so
// the ledger records zero until tax calculation moves in-house.
type ZeroTax struct{}

func (ZeroTax) TaxPence(int, int, string) int { return 0 }

// FlatRateShipping charges a per-country flat rate with an optional
// free-shipping threshold.
type FlatRateShipping struct {
	DefaultPence  int            `yaml:"default_pence"`
	FreeOverPence int            `yaml:"free_over_pence"`
	Countries     map[string]int `yaml:"countries"`
}

func (f *FlatRateShipping) ShippingPence(subtotalPence int, country string) int {
	if f.FreeOverPence > 0 && subtotalPence >= f.FreeOverPence {
		return 0
	}
	if rate, ok := f.Countries[strings.ToUpper(strings.TrimSpace(country))]; ok {
		return rate
	}
	return f.DefaultPence
}

// LoadShippingRates reads a flat-rate table from a YAML file.
func LoadShippingRates(path string) (*FlatRateShipping, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read shipping rates file: %w", err)
	}
	return ParseShippingRates(content)
}

func ParseShippingRates(content []byte) (*FlatRateShipping, error) {
	var rates FlatRateShipping
	if err := yaml.Unmarshal(content, &rates); err != nil {
		return nil, fmt.Errorf("failed to parse shipping rates: %w", err)
	}
	if rates.DefaultPence < 0 || rates.FreeOverPence < 0 {
		return nil, fmt.Errorf("shipping rates must not be negative")
	}
	for country, rate := range rates.Countries {
		if rate < 0 {
			return nil, fmt.Errorf("shipping rate for %s must not be negative", country)
		}
	}
	return &rates, nil
}
