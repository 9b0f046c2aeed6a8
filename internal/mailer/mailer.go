package mailer

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

type Config struct {
	Enabled   bool
	Host      string
	Port      int
	From      string
	Password  string
	Operators []string
}

// Alerter notifies operators about states that need manual reconciliation.
type Alerter interface {
	Alert(ctx context.Context, subject, body string) error
}

// Nop is the Alerter used when mail is disabled.
type Nop struct{}

func (Nop) Alert(context.Context, string, string) error { return nil }

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Mailer struct {
	cfg  Config
	log  *zerolog.Logger
	send sendFunc
}

// New returns Nop unless mail is enabled and has recipients.
func New(cfg Config, log *zerolog.Logger) Alerter {
	if !cfg.Enabled || len(cfg.Operators) == 0 {
		return Nop{}
	}
	return &Mailer{cfg: cfg, log: log, send: smtp.SendMail}
}

func (m *Mailer) Alert(_ context.Context, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: [roombooker] %s\r\n\r\n%s",
		m.cfg.From, strings.Join(m.cfg.Operators, ", "), subject, body,
	)

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	var auth smtp.Auth
	if m.cfg.Password != "" {
		auth = smtp.PlainAuth("", m.cfg.From, m.cfg.Password, m.cfg.Host)
	}

	if err := m.send(addr, auth, m.cfg.From, m.cfg.Operators, []byte(msg)); err != nil {
		m.log.Warn().Err(err).Strs("operators", m.cfg.Operators).Msg("failed to send operator alert")
		return fmt.Errorf("send alert: %w", err)
	}

	m.log.Info().Strs("operators", m.cfg.Operators).Str("subject", subject).Msg("operator alert sent")
	return nil
}
