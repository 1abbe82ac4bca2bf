// Package mailer sends transactional email over SMTP.
package mailer

import (
	"context"
	"fmt"
	"html"

	"pantrypal-api/internal/logging"

	"gopkg.in/gomail.v2"
)

// Message is one outgoing email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Config holds SMTP settings. An empty Host disables delivery.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// New returns an SMTP mailer, or a LogMailer when no host is configured.
func New(cfg Config, log logging.Logger) Mailer {
	log = logging.For(log, "mailer")
	if cfg.Host == "" {
		log.Warn("SMTP not configured, emails will only be logged")
		return &LogMailer{log: log}
	}
	return &SMTPMailer{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		log:    log,
	}
}

// SMTPMailer sends mail with gomail.
type SMTPMailer struct {
	cfg    Config
	dialer *gomail.Dialer
	log    logging.Logger
}

// Send dials the server and delivers msg. gomail has no context support,
// so ctx is only checked before dialing.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.dialer.DialAndSend(m.build(msg)); err != nil {
		return fmt.Errorf("sending mail to %s: %w", msg.To, err)
	}
	m.log.Info("mail sent", "to", msg.To, "subject", msg.Subject)
	return nil
}

func (m *SMTPMailer) build(msg Message) *gomail.Message {
	gm := gomail.NewMessage()
	from := m.cfg.From
	if from == "" {
		from = m.cfg.Username
	}
	if m.cfg.FromName != "" {
		gm.SetAddressHeader("From", from, m.cfg.FromName)
	} else {
		gm.SetHeader("From", from)
	}
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/html", msg.HTML)
	return gm
}

// LogMailer records messages in the log instead of sending them.
type LogMailer struct {
	log logging.Logger
}

// NewLogMailer returns a mailer that only logs.
func NewLogMailer(log logging.Logger) *LogMailer {
	return &LogMailer{log: logging.For(log, "mailer")}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.log.Info("mail not sent (SMTP disabled)", "to", msg.To, "subject", msg.Subject, "body", msg.HTML)
	return nil
}

// PasswordReset builds the reset email for link.
func PasswordReset(appName, to, link string) Message {
	return Message{
		To:      to,
		Subject: appName + " password reset",
		HTML: fmt.Sprintf(`<p>We received a request to reset your %s password.</p>
<p><a href="%s">Choose a new password</a></p>
<p>The link expires in one hour. If you did not ask for this, ignore this email.</p>`,
			html.EscapeString(appName), html.EscapeString(link)),
	}
}
