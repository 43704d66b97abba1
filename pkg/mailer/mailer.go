/**
 * @description
 * This package provides the notification side effect: sending an email to
 * the paying user when their transfer reaches a terminal status. The SMTP
 * implementation is deliberately thin; a log-only fallback keeps the
 * notification-service bootable without mail credentials, with the
 * notification log still written.
 */
package mailer

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
	"strings"
)

// Mailer sends one notification message to a recipient.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer sends mail through a plain-auth SMTP relay.
type SMTPMailer struct {
	host     string
	port     string
	from     string
	password string
}

// NewSMTPMailer creates an SMTP mailer.
func NewSMTPMailer(host, port, from, password string) *SMTPMailer {
	return &SMTPMailer{
		host:     strings.TrimSpace(host),
		port:     strings.TrimSpace(port),
		from:     strings.TrimSpace(from),
		password: password,
	}
}

// Send delivers the message. The context bounds are enforced upstream by the
// consumer's handler deadline; smtp.SendMail itself dials with the resolved
// address.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", m.from, to, subject, body))
	auth := smtp.PlainAuth("", m.from, m.password, m.host)
	addr := fmt.Sprintf("%s:%s", m.host, m.port)

	if err := smtp.SendMail(addr, auth, m.from, []string{to}, msg); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}

// LogMailer is the fallback used when SMTP is not configured. It records the
// send in the service log so the pipeline stays observable end to end.
type LogMailer struct{}

func (m *LogMailer) Send(ctx context.Context, to, subject, body string) error {
	log.Printf("level=info component=mailer mode=log_only msg=\"notification\" to=%s subject=%q body=%q", to, subject, body)
	return nil
}
