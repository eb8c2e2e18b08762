package service

import (
	"context"

	"gopkg.in/gomail.v2"
)

// Mailer sends notification email over SMTP.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewMailer creates an SMTP mailer.
func NewMailer(host string, port int, username, password, from string) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

// Send delivers one plain-text message.
func (m *Mailer) Send(to, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	return m.dialer.DialAndSend(msg)
}

// StaticContactResolver resolves every user to one operations inbox. Used
// when the user service's contact lookup is not wired in.
type StaticContactResolver struct {
	Address string
}

func (r *StaticContactResolver) EmailForUser(_ context.Context, _ int64) (string, error) {
	return r.Address, nil
}
