// Package notify delivers run reports by e-mail through Resend.
package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

var ErrNoRecipients = errors.New("no report recipients configured")

// Config holds the Resend settings.
type Config struct {
	APIKey    string
	FromEmail string
	To        []string
}

// emailSender is the part of resend.EmailsSvc used here.
type emailSender interface {
	Send(params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// EmailNotifier sends plain reports wrapped in a minimal HTML body.
type EmailNotifier struct {
	emails emailSender
	from   string
	to     []string
	logger *slog.Logger
}

// NewEmailNotifier returns nil when no API key is configured, so callers
// can skip notification entirely.
func NewEmailNotifier(cfg Config, logger *slog.Logger) (*EmailNotifier, error) {
	if cfg.APIKey == "" {
		logger.Warn("resend client not configured, conflict reports will not be e-mailed")
		return nil, nil
	}
	if len(cfg.To) == 0 {
		return nil, ErrNoRecipients
	}
	client := resend.NewClient(cfg.APIKey)
	return &EmailNotifier{
		emails: client.Emails,
		from:   cfg.FromEmail,
		to:     cfg.To,
		logger: logger,
	}, nil
}

// Send e-mails body under subject to every configured recipient.
func (n *EmailNotifier) Send(ctx context.Context, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	resp, err := n.emails.Send(&resend.SendEmailRequest{
		From:    n.from,
		To:      n.to,
		Subject: subject,
		Text:    body,
		Html:    renderHTML(subject, body),
	})
	if err != nil {
		return fmt.Errorf("failed to send report e-mail: %w", err)
	}

	n.logger.Info("report e-mailed",
		slog.String("subject", subject),
		slog.Int("recipients", len(n.to)),
		slog.String("email_id", resp.Id),
	)
	return nil
}

func renderHTML(subject, body string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif;">
  <h2>%s</h2>
  <pre style="font-family: monospace; font-size: 13px;">%s</pre>
</body>
</html>
`, html.EscapeString(subject), html.EscapeString(body))
}
