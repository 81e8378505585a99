// Package fulfillment wraps the print-on-demand order submission API.
package fulfillment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/lawsonsstudio/storefront/internal/observability"
)

const (
	signatureHeader = "X-Signature"
	appIDHeader     = "X-App-Id"

	requestTimeout = 30 * time.Second
)

// Client submits orders to the fulfillment partner. Every request body is
// signed with the shared secret; the partner deduplicates submissions by the
// reference field, so re-submitting the same order reference is safe.
type Client struct {
	baseURL    string
	appID      string
	secret     string
	sandbox    bool
	httpClient *http.Client
	logger     *slog.Logger
}

type Config struct {
	BaseURL string
	AppID   string
	Secret  string
	// Sandbox simulates successful submissions without a network call.
	Sandbox bool
}

func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("fulfillment base URL is required")
	}
	if cfg.AppID == "" || cfg.Secret == "" {
		return nil, fmt.Errorf("fulfillment credentials are required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		appID:      cfg.AppID,
		secret:     cfg.Secret,
		sandbox:    cfg.Sandbox,
		httpClient: observability.NewHTTPClient(requestTimeout),
		logger:     logger,
	}, nil
}

// Recipient is the shipping destination, copied from the order's address
// snapshot.
type Recipient struct {
	Name         string `json:"name"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city"`
	County       string `json:"county,omitempty"`
	Postcode     string `json:"postcode"`
	Country      string `json:"country"`
	Phone        string `json:"phone,omitempty"`
}

type Item struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

// OrderRequest carries the internal order id as Reference for cross-system
// traceability and partner-side deduplication.
type OrderRequest struct {
	Recipient Recipient `json:"recipient"`
	Items     []Item    `json:"items"`
	Reference string    `json:"reference"`
}

type OrderResponse struct {
	Success bool     `json:"success"`
	OrderID string   `json:"order_id,omitempty"`
	Message string   `json:"message,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// RejectionDetail flattens the partner's message and error list into a single
// loggable string.
func (r *OrderResponse) RejectionDetail() string {
	detail := r.Message
	for _, e := range r.Errors {
		if detail != "" {
			detail += "; "
		}
		detail += e
	}
	if detail == "" {
		return "no detail given"
	}
	return detail
}

// CreateOrder submits a manufacturing/shipping request. A nil error with
// Success=false means the partner rejected the order as a business error;
// transport and decoding failures return an error.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*OrderResponse, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is required")
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("at least one item is required")
	}
	if req.Reference == "" {
		return nil, fmt.Errorf("reference is required")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode order request: %w", err)
	}

	if c.sandbox {
		c.logger.Info("sandbox mode: simulating fulfillment submission", "reference", req.Reference)
		return &OrderResponse{
			Success: true,
			OrderID: "DRYRUN-" + req.Reference,
			Message: "sandbox submission, no order placed",
		}, nil
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(appIDHeader, c.appID)
	httpReq.Header.Set(signatureHeader, c.Sign(body))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fulfillment request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read fulfillment response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fulfillment API returned status %d: %s", resp.StatusCode, truncate(respBody, 256))
	}

	var decoded OrderResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode fulfillment response: %w", err)
	}

	return &decoded, nil
}

// Sign computes the keyed hash of the request body with the shared secret.
func (c *Client) Sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(c.secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
