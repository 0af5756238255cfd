// internal/mail/mailer.go
package mail

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	commonaws "referralbridge/internal/common/aws"
	"referralbridge/internal/common/logger"
)

// Mailer sends a single HTML email. Implemented by the SES mailer below and by
// test doubles in workflow/otp tests.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// SESMailer dispatches email through AWS SES.
type SESMailer struct {
	client    *commonaws.SESClient
	fromEmail string
	logger    logger.Logger
}

func NewSESMailer(client *commonaws.SESClient, fromEmail string, log logger.Logger) *SESMailer {
	return &SESMailer{
		client:    client,
		fromEmail: fromEmail,
		logger:    log.WithFields(map[string]interface{}{"component": "ses-mailer"}),
	}
}

func (m *SESMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(m.fromEmail),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data:    aws.String(htmlBody),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	out, err := m.client.SendEmail(ctx, input)
	if err != nil {
		m.logger.Error("ses send failed", map[string]interface{}{
			"to":    to,
			"error": err,
		})
		return err
	}

	m.logger.Info("email dispatched", map[string]interface{}{
		"to":        to,
		"messageId": aws.ToString(out.MessageId),
	})
	return nil
}

// LogMailer writes the email to the log instead of sending it. Development
// fallback for environments without SES access.
type LogMailer struct {
	logger logger.Logger
}

func NewLogMailer(log logger.Logger) *LogMailer {
	return &LogMailer{logger: log.WithFields(map[string]interface{}{"component": "log-mailer"})}
}

func (m *LogMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	m.logger.Info("email (not sent, SES disabled)", map[string]interface{}{
		"to":      to,
		"subject": subject,
		"body":    htmlBody,
	})
	return nil
}
