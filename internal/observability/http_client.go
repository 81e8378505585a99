// Package observability carries request-scoped metrics and instrumented
// outbound HTTP plumbing.
package observability

import (
	"net/http"
	"time"

	sentryhttpclient "github.com/getsentry/sentry-go/httpclient"
)

// Trace headers are only propagated to partners we control the integration
// with.
var tracePropagationTargets = []string{
	"api.stripe.com",
	"api.inkthreadable.co.uk",
}

// NewHTTPClient returns a client for outbound gateway calls that records a
// span per request.
func NewHTTPClient(timeout time.Duration) *http.Client {
	client := &http.Client{
		Transport: sentryhttpclient.NewSentryRoundTripper(
			http.DefaultTransport,
			sentryhttpclient.WithTracePropagationTargets(tracePropagationTargets),
		),
	}
	if timeout > 0 {
		client.Timeout = timeout
	}
	return client
}
