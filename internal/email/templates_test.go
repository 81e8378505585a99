package email

import (
	"strings"
	"testing"
	"time"
)

func testOrderInfo() OrderInfo {
	return OrderInfo{
		OrderNumber:     "#1042",
		CustomerName:    "Anna Lawson",
		CustomerEmail:   "anna@example.com",
		BrandName:       "Lawsons Studio",
		ShippingAddress: "12 Harbour Lane\nWhitstable\nCT5 1AB\nGB",
		OrderDate:       FormatOrderDate(time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC)),
		Items: []OrderItemInfo{
			{Name: "Harbour Sketch (A2)", SKU: "PRINT-A2", Quantity: 2, UnitPrice: "£29.99", LineTotal: "£59.98"},
		},
		Subtotal: "£59.98",
		Shipping: "£3.95",
		Tax:      "£0.00",
		Total:    "£63.93",
	}
}

func TestFormatPence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pence int
		want  string
	}{
		{0, "£0.00"},
		{5, "£0.05"},
		{100, "£1.00"},
		{2999, "£29.99"},
		{6498, "£64.98"},
	}

	for _, tc := range tests {
		if got := FormatPence(tc.pence); got != tc.want {
			t.Errorf("FormatPence(%d) = %q, want %q", tc.pence, got, tc.want)
		}
	}
}

func TestRenderOrderConfirmation(t *testing.T) {
	t.Parallel()

	msg, err := RenderOrderConfirmation(testOrderInfo())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if msg.To != "anna@example.com" {
		t.Errorf("to = %q", msg.To)
	}
	if !strings.Contains(msg.Subject, "#1042") {
		t.Errorf("subject %q should name the order", msg.Subject)
	}
	for _, want := range []string{"Anna Lawson", "Harbour Sketch (A2)", "£63.93", "12 Harbour Lane"} {
		if !strings.Contains(msg.Text, want) {
			t.Errorf("body missing %q:\n%s", want, msg.Text)
		}
	}
}

func TestRenderOrderShipped(t *testing.T) {
	t.Parallel()

	info := testOrderInfo()
	info.Carrier = "Royal Mail"
	info.TrackingNumber = "AB123456789GB"
	info.TrackingURL = "https://www.royalmail.com/track-your-item#/tracking-results/AB123456789GB"

	msg, err := RenderOrderShipped(info)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"Royal Mail", "AB123456789GB", "tracking-results"} {
		if !strings.Contains(msg.Text, want) {
			t.Errorf("body missing %q:\n%s", want, msg.Text)
		}
	}

	info.TrackingNumber = ""
	msg, err = RenderOrderShipped(info)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(msg.Text, "Tracking number") {
		t.Error("body should omit tracking details when none are recorded")
	}
}
