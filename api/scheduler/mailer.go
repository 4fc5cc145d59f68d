package scheduler

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const fromName = "ConnecMaq"

// Mailer delivers a rendered email to a single recipient
type Mailer interface {
	Send(ctx context.Context, toEmail, toName, subject, htmlContent, plainText string) error
}

// SendgridMailer sends email through the SendGrid v3 API
type SendgridMailer struct {
	client *sendgrid.Client
	from   *mail.Email
}

// NewSendgridMailer returns a SendGrid mailer for apiKey, or nil when no key is configured
func NewSendgridMailer(apiKey, fromEmail string) Mailer {
	if apiKey == "" {
		return nil
	}
	return &SendgridMailer{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail(fromName, fromEmail),
	}
}

// Send implements Mailer
func (s *SendgridMailer) Send(ctx context.Context, toEmail, toName, subject, htmlContent, plainText string) error {
	message := mail.NewSingleEmail(s.from, subject, mail.NewEmail(toName, toEmail), plainText, htmlContent)
	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return err
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid returned status %d: %s", response.StatusCode, response.Body)
	}
	return nil
}
