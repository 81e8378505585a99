// Package email provides order email templates.
package email

import (
	"bytes"
	"fmt"
	"text/template"
	"time"
)

// OrderInfo contains the information needed by the order email templates.
// Monetary fields are pre-formatted strings.
type OrderInfo struct {
	OrderNumber     string
	CustomerName    string
	CustomerEmail   string
	BrandName       string
	ShippingAddress string
	OrderDate       string
	Items           []OrderItemInfo
	Subtotal        string
	Shipping        string
	Tax             string
	Total           string
	TrackingNumber  string
	TrackingURL     string
	Carrier         string
}

type OrderItemInfo struct {
	Name      string
	SKU       string
	Quantity  int
	UnitPrice string
	LineTotal string
}

// FormatPence renders integer minor units as a pounds string.
func FormatPence(pence int) string {
	return fmt.Sprintf("£%d.%02d", pence/100, pence%100)
}

// FormatOrderDate renders an order timestamp for email display.
func FormatOrderDate(t time.Time) string {
	return t.Format("2 January 2006")
}

const orderConfirmationText = `Hi {{.CustomerName}},

Thanks for your order with {{.BrandName}}!

Order {{.OrderNumber}} - {{.OrderDate}}
{{range .Items}}
  {{.Quantity}} x {{.Name}} ({{.SKU}}) - {{.LineTotal}}
{{- end}}

Subtotal: {{.Subtotal}}
Shipping: {{.Shipping}}
Tax: {{.Tax}}
Total: {{.Total}}

Shipping to:
{{.ShippingAddress}}

We'll email you again once your order is on its way.
`

const orderShippedText = `Hi {{.CustomerName}},

Your {{.BrandName}} order {{.OrderNumber}} has shipped.
{{if .TrackingNumber}}
Carrier: {{.Carrier}}
Tracking number: {{.TrackingNumber}}
{{- if .TrackingURL}}
Track it here: {{.TrackingURL}}
{{- end}}
{{end}}
Thanks for shopping with us.
`

var orderTemplates = template.Must(template.New("orders").Parse(
	`{{define "order_confirmation"}}` + orderConfirmationText + `{{end}}` +
		`{{define "order_shipped"}}` + orderShippedText + `{{end}}`))

// RenderOrderConfirmation builds the confirmation email for a paid order.
func RenderOrderConfirmation(info OrderInfo) (*Email, error) {
	return renderOrderEmail("order_confirmation", fmt.Sprintf("Order confirmed - %s - %s", info.OrderNumber, info.BrandName), info)
}

// RenderOrderShipped builds the shipping notification email.
func RenderOrderShipped(info OrderInfo) (*Email, error) {
	return renderOrderEmail("order_shipped", fmt.Sprintf("Your order has shipped - %s - %s", info.OrderNumber, info.BrandName), info)
}

func renderOrderEmail(name, subject string, info OrderInfo) (*Email, error) {
	var buf bytes.Buffer
	if err := orderTemplates.ExecuteTemplate(&buf, name, info); err != nil {
		return nil, fmt.Errorf("failed to render %s template: %w", name, err)
	}
	return &Email{
		To:      info.CustomerEmail,
		Subject: subject,
		Text:    buf.String(),
	}, nil
}
