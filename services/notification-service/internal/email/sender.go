package email

import (
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

const defaultFrom = "no-reply@clinibook.local"

// Sender delivers a rendered Message to its recipient.
type Sender interface {
	Send(msg Message) error
}

// SMTPSender delivers mail over plain unauthenticated SMTP. It targets the
// local Mailpit relay in development and any open submission host elsewhere.
type SMTPSender struct {
	addr string
	from string
}

func NewSMTPSender(host, port, from string) *SMTPSender {
	if from = strings.TrimSpace(from); from == "" {
		from = defaultFrom
	}
	return &SMTPSender{
		addr: net.JoinHostPort(strings.TrimSpace(host), strings.TrimSpace(port)),
		from: from,
	}
}

func (s *SMTPSender) Send(msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("email: message has no recipient")
	}
	raw := encodeMessage(s.from, msg, time.Now())
	if err := smtp.SendMail(s.addr, nil, s.from, []string{msg.To}, raw); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}

// encodeMessage renders a minimal RFC 5322 plain-text message.
func encodeMessage(from string, msg Message, sent time.Time) []byte {
	var b strings.Builder
	headers := [][2]string{
		{"From", from},
		{"To", msg.To},
		{"Subject", msg.Subject},
		{"Date", sent.UTC().Format(time.RFC1123Z)},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/plain; charset=utf-8"},
	}
	for _, h := range headers {
		b.WriteString(h[0])
		b.WriteString(": ")
		b.WriteString(h[1])
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	b.WriteString("\r\n")
	return []byte(b.String())
}
