package email

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
)

// ResendConfig holds the knobs for the Resend-backed sender.
type ResendConfig struct {
	APIKey    string
	FromName  string
	FromEmail string
}

// ResendSender implements Sender using the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
}

// NewResendSender constructs a sender; API key and from address are required.
func NewResendSender(cfg ResendConfig) (*ResendSender, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if cfg.FromEmail == "" {
		return nil, fmt.Errorf("from email is required")
	}

	from := cfg.FromEmail
	if cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromEmail)
	}

	return &ResendSender{client: resend.NewClient(cfg.APIKey), from: from}, nil
}

// SendVerificationCode delivers the 6-digit signup code.
func (s *ResendSender) SendVerificationCode(ctx context.Context, to, code string) error {
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: "Your Lumenboard verification code",
		Html: fmt.Sprintf(
			`<p>Your verification code is:</p><p style="font-size:24px;font-weight:bold;letter-spacing:4px">%s</p><p>The code expires in 10 minutes.</p>`,
			code,
		),
	}

	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("send verification code: %w", err)
	}
	return nil
}

var _ Sender = (*ResendSender)(nil)
