package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lawsonsstudio/storefront/internal/db"
	"github.com/lawsonsstudio/storefront/internal/email"
)

// OrderEmailSender sends transactional order emails. Sends are best-effort:
// callers log failures and carry on.
type OrderEmailSender interface {
	SendOrderConfirmation(ctx context.Context, order *db.Order, items []*db.OrderItem) error
	SendOrderShipped(ctx context.Context, order *db.Order) error
}

type orderEmailSender struct {
	provider  email.Provider
	brandName string
	logger    *slog.Logger
}

func NewOrderEmailSender(provider email.Provider, brandName string, logger *slog.Logger) OrderEmailSender {
	return &orderEmailSender{
		provider:  provider,
		brandName: brandName,
		logger:    logger,
	}
}

func (s *orderEmailSender) SendOrderConfirmation(ctx context.Context, order *db.Order, items []*db.OrderItem) error {
	if order.CustomerEmail == "" {
		return nil
	}

	msg, err := email.RenderOrderConfirmation(s.orderInfo(order, items))
	if err != nil {
		return err
	}
	return s.provider.SendEmail(ctx, msg)
}

func (s *orderEmailSender) SendOrderShipped(ctx context.Context, order *db.Order) error {
	if order.CustomerEmail == "" {
		return nil
	}

	msg, err := email.RenderOrderShipped(s.orderInfo(order, nil))
	if err != nil {
		return err
	}
	return s.provider.SendEmail(ctx, msg)
}

func (s *orderEmailSender) orderInfo(order *db.Order, items []*db.OrderItem) email.OrderInfo {
	info := email.OrderInfo{
		OrderNumber:     fmt.Sprintf("#%d", order.OrderNumber),
		CustomerName:    order.CustomerName,
		CustomerEmail:   order.CustomerEmail,
		BrandName:       s.brandName,
		ShippingAddress: formatAddress(order.ShippingAddress),
		OrderDate:       email.FormatOrderDate(order.CreatedAt),
		Subtotal:        email.FormatPence(order.SubtotalPence),
		Shipping:        email.FormatPence(order.ShippingPence),
		Tax:             email.FormatPence(order.TaxPence),
		Total:           email.FormatPence(order.TotalPence),
		TrackingNumber:  order.TrackingNumber,
		TrackingURL:     order.TrackingURL,
		Carrier:         order.Carrier,
	}
	for _, item := range items {
		name := item.ProductName
		if item.VariantName != "" {
			name += " (" + item.VariantName + ")"
		}
		info.Items = append(info.Items, email.OrderItemInfo{
			Name:      name,
			SKU:       item.SKU,
			Quantity:  item.Quantity,
			UnitPrice: email.FormatPence(item.UnitPricePence),
			LineTotal: email.FormatPence(item.LineTotalPence),
		})
	}
	return info
}

func formatAddress(addr *db.Address) string {
	if addr == nil {
		return ""
	}
	parts := []string{addr.Line1}
	if addr.Line2 != "" {
		parts = append(parts, addr.Line2)
	}
	parts = append(parts, addr.City)
	if addr.County != "" {
		parts = append(parts, addr.County)
	}
	parts = append(parts, addr.Postcode, addr.Country)
	return strings.Join(parts, "\n")
}

// NoopOrderEmailSender returns a sender that silently drops emails. Used when
// no email provider is configured.
func NoopOrderEmailSender() OrderEmailSender {
	return noopOrderEmailSender{}
}

type noopOrderEmailSender struct{}

func (noopOrderEmailSender) SendOrderConfirmation(context.Context, *db.Order, []*db.OrderItem) error {
	return nil
}

func (noopOrderEmailSender) SendOrderShipped(context.Context, *db.Order) error {
	return nil
}
