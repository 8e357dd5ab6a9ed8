package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"refunds-backend/pkg/logger"
)

// Service is the outbound email contract used by the notification
// dispatcher. Channel internals stay behind this interface.
type Service interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPService delivers through a plain SMTP relay. Development runs
// against a local catcher (mailpit/mailhog style).
type SMTPService struct {
	host string
	port string
	from string
}

func NewSMTPService(host, port, from string) *SMTPService {
	return &SMTPService{host: host, port: port, from: from}
}

func (s *SMTPService) Send(ctx context.Context, to, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + s.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	if err := smtp.SendMail(addr, nil, s.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}

	logger.Info("Email sent", map[string]interface{}{
		"to":      to,
		"subject": subject,
	})

	return nil
}
