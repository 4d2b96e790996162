// Package mailer delivers verification codes over SMTP.
package mailer

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"go.uber.org/zap"
)

type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// ConfigFromEnv reads SMTP config from environment variables. An empty
// SMTP_HOST disables delivery.
func ConfigFromEnv() Config {
	port := os.Getenv("SMTP_PORT")
	if port == "" {
		port = "587"
	}
	from := os.Getenv("SMTP_FROM")
	if from == "" {
		from = "no-reply@hushbox.local"
	}
	return Config{
		Host:     os.Getenv("SMTP_HOST"),
		Port:     port,
		Username: os.Getenv("SMTP_USERNAME"),
		Password: os.Getenv("SMTP_PASSWORD"),
		From:     from,
	}
}

// Enabled reports whether a relay host is configured.
func (c Config) Enabled() bool { return c.Host != "" }

// Mailer sends verification emails through a single SMTP relay.
type Mailer struct {
	cfg    Config
	logger *zap.SugaredLogger
}

func New(cfg Config, logger *zap.SugaredLogger) *Mailer {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Mailer{cfg: cfg, logger: logger}
}

// SendVerifyCode emails the 6-digit code to the registered address.
func (m *Mailer) SendVerifyCode(ctx context.Context, to, username, code string) error {
	if !m.cfg.Enabled() {
		m.logger.Debugw("smtp disabled, skipping verification mail", "to", to)
		return nil
	}

	msg := strings.NewReader(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: Your verification code\r\nDate: %s\r\n\r\n"+
			"Hi %s,\r\n\r\nYour verification code is %s. It expires soon, so verify your account promptly.\r\n",
		m.cfg.From, to, time.Now().Format(time.RFC1123Z), username, code))

	var auth sasl.Client
	if m.cfg.Username != "" {
		auth = sasl.NewPlainClient("", m.cfg.Username, m.cfg.Password)
	}
	addr := m.cfg.Host + ":" + m.cfg.Port
	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", addr, err)
	}
	m.logger.Infow("verification mail sent", "to", to)
	return nil
}
