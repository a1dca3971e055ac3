// Package mail delivers the double opt-in confirmation email. Templates are
// liquid so operators can personalize subject and body with contact fields.
package mail

import (
	"context"
	"fmt"

	"github.com/osteele/liquid"
	"gopkg.in/gomail.v2"

	"github.com/ignite/crm-contacts/internal/domain"
	"github.com/ignite/crm-contacts/internal/pkg/logger"
	"github.com/ignite/crm-contacts/internal/service/contact"
)

const defaultSubject = "Please confirm your subscription"

const defaultBody = `<p>Hi {{ first_name | default: "there" }},</p>
<p>Please confirm your subscription by clicking the link we sent to
{{ email }}.</p>`

// SMTPConfig holds the delivery settings for the opt-in sender.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	Subject  string
	Body     string
}

// Sender renders and delivers double opt-in emails over SMTP.
type Sender struct {
	cfg    SMTPConfig
	engine *liquid.Engine
	dial   func(m *gomail.Message) error
}

var _ contact.Mailer = (*Sender)(nil)

// NewSender creates an SMTP-backed double opt-in sender.
func NewSender(cfg SMTPConfig) *Sender {
	if cfg.Subject == "" {
		cfg.Subject = defaultSubject
	}
	if cfg.Body == "" {
		cfg.Body = defaultBody
	}
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	return &Sender{
		cfg:    cfg,
		engine: liquid.NewEngine(),
		dial:   func(m *gomail.Message) error { return d.DialAndSend(m) },
	}
}

// SendDoubleOptIn renders the configured templates for the contact and
// hands the message to the SMTP dialer.
func (s *Sender) SendDoubleOptIn(_ context.Context, c *domain.Contact) error {
	bindings := map[string]any{
		"email":      c.Email,
		"first_name": c.FirstName,
		"last_name":  c.LastName,
		"full_name":  c.FullName(),
	}

	subject, err := s.engine.ParseAndRenderString(s.cfg.Subject, bindings)
	if err != nil {
		return fmt.Errorf("render subject: %w", err)
	}
	body, err := s.engine.ParseAndRenderString(s.cfg.Body, bindings)
	if err != nil {
		return fmt.Errorf("render body: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", c.Email)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.dial(m); err != nil {
		return fmt.Errorf("send double opt-in: %w", err)
	}
	logger.Info("double opt-in sent", "contact_id", c.ID)
	return nil
}
