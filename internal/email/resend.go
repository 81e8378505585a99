package email

import (
	"context"
	"fmt"

	resend "github.com/resend/resend-go/v3"
)

// ResendProvider delivers mail through the Resend API.
type ResendProvider struct {
	from   string
	client *resend.Client
}

func NewResendProvider(apiKey, from string) *ResendProvider {
	return &ResendProvider{
		from:   from,
		client: resend.NewClient(apiKey),
	}
}

// SendEmail delivers a single message. At least one of Text or HTML must be set.
func (r *ResendProvider) SendEmail(ctx context.Context, email *Email) error {
	switch {
	case email == nil:
		return fmt.Errorf("email is required")
	case email.Text == "" && email.HTML == "":
		return fmt.Errorf("email body is empty")
	}

	req := &resend.SendEmailRequest{
		From:    r.from,
		To:      []string{email.To},
		Subject: email.Subject,
		Text:    email.Text,
		Html:    email.HTML,
	}
	if _, err := r.client.Emails.SendWithContext(ctx, req); err != nil {
		return fmt.Errorf("resend send failed: %w", err)
	}
	return nil
}

// ValidateAPIKey makes a cheap authenticated call to confirm the key works.
func (r *ResendProvider) ValidateAPIKey(ctx context.Context) error {
	if _, err := r.client.ApiKeys.ListWithContext(ctx); err != nil {
		return fmt.Errorf("invalid API key: %w", err)
	}
	return nil
}
