/**
 * @description
 * SMTP mail delivery for OTP codes, transfer notices and monthly statements.
 * Sending is always best-effort from the caller's point of view: services
 * invoke the mailer in a goroutine and only log failures.
 *
 * @dependencies
 * - gopkg.in/gomail.v2: SMTP message building and delivery.
 */
package mailer

import (
	"io"
	"log"

	gomail "gopkg.in/gomail.v2"
)

// Sender delivers mail. SMTPMailer talks to a real server; Disabled is the
// fallback when no SMTP host is configured.
type Sender interface {
	Send(to, subject, body string) error
	SendAttachment(to, subject, body, filename string, content []byte) error
}

// SMTPMailer sends mail through a configured SMTP server.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

// New creates an SMTPMailer.
func New(host string, port int, username, password, from string) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

// Send delivers a plain-text message.
func (m *SMTPMailer) Send(to, subject, body string) error {
	return m.send(to, subject, body, "", nil)
}

// SendAttachment delivers a plain-text message with one attachment.
func (m *SMTPMailer) SendAttachment(to, subject, body, filename string, content []byte) error {
	return m.send(to, subject, body, filename, content)
}

func (m *SMTPMailer) send(to, subject, body, filename string, content []byte) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	if filename != "" {
		msg.Attach(filename, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(content)
			return err
		}))
	}
	return m.dialer.DialAndSend(msg)
}

// Disabled is a no-op Sender used when SMTP is not configured at startup.
type Disabled struct{}

func (Disabled) Send(to, subject, body string) error {
	log.Printf("level=warn component=mailer mode=disabled msg=\"send skipped\" subject=%q", subject)
	return nil
}

func (Disabled) SendAttachment(to, subject, body, filename string, content []byte) error {
	log.Printf("level=warn component=mailer mode=disabled msg=\"send skipped\" subject=%q attachment=%s", subject, filename)
	return nil
}
