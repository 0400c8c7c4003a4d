// Package mailer sends rendered phishing-simulation emails over SMTP.
package mailer

import (
	"fmt"

	"gopkg.in/gomail.v2"

	appErrors "github.com/lurehook/lurehook-backend/internal/errors"
	"github.com/lurehook/lurehook-backend/internal/queue"
)

// SMTPSender delivers one message per call. SMTP-layer faults are wrapped
// as TransientDeliveryError so the processor retries them with backoff.
type SMTPSender struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
}

func (s *SMTPSender) Send(msg queue.EmailMessage) error {
	m := gomail.NewMessage()
	m.SetHeader("From", fmt.Sprintf("%s <%s>", s.FromName, s.FromEmail))
	m.SetAddressHeader("To", msg.RecipientEmail, msg.RecipientName)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.BodyHTML)

	d := gomail.NewDialer(s.Host, s.Port, s.Username, s.Password)
	if err := d.DialAndSend(m); err != nil {
		return appErrors.NewTransientDelivery(err)
	}
	return nil
}
