package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"

	"github.com/aluiziolira/go-price-watch/config"
	"github.com/aluiziolira/go-price-watch/models"
)

// Email sends a short plain text alert over SMTP.
type Email struct {
	cfg  config.SMTPConfig
	send func(addr string, a smtp.Auth, mail *email.Email) error
}

// NewEmail builds an email sink from cfg.
func NewEmail(cfg config.SMTPConfig) *Email {
	return &Email{
		cfg: cfg,
		send: func(addr string, a smtp.Auth, mail *email.Email) error {
			return mail.Send(addr, a)
		},
	}
}

func (e *Email) message(event *models.NotifyEvent) *email.Email {
	title := event.Title
	if runes := []rune(title); len(runes) > 50 {
		title = string(runes[:50]) + "..."
	}

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("Price Watch <%s>", e.cfg.From)
	mail.To = e.cfg.To
	mail.Subject = fmt.Sprintf("Price Drop Alert: %s", title)
	mail.Text = []byte(fmt.Sprintf("Price dropped for %q: %s -> %s\n\n%s\n",
		title, event.PreviousPrice, event.Price, event.URL))
	return mail
}

// Notify sends the alert, retrying once without AUTH for relays that do
// not support it.
func (e *Email) Notify(_ context.Context, event *models.NotifyEvent) error {
	addr := fmt.Sprintf("%s:%d", e.cfg.Server, e.cfg.Port)
	mail := e.message(event)

	err := e.send(addr, smtp.PlainAuth("", e.cfg.From, e.cfg.Password, e.cfg.Server), mail)
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = e.send(addr, nil, mail)
	}
	if err != nil {
		return fmt.Errorf("send alert email: %w", err)
	}
	return nil
}
