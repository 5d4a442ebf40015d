// Package mail delivers transactional email over SMTP.
package mail

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
)

// Config holds SMTP settings.
type Config struct {
	Host string
	Port int
	From string
}

// Mailer sends messages through a single SMTP relay.
type Mailer struct {
	addr string
	from string
}

// New constructs a Mailer.
func New(cfg Config) *Mailer {
	return &Mailer{
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		from: cfg.From,
	}
}

// Send delivers a plain-text message. The context is consulted before
// dialing; smtp.SendMail itself does not support cancellation.
func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := strings.Join([]string{
		"From: " + m.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")
	if err := smtp.SendMail(m.addr, nil, m.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("mail: send to %s: %w", to, err)
	}
	return nil
}
