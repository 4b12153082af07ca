// ABOUTME: Passcode delivery over SMTP, plus a logging mailer for local development
// ABOUTME: SMTP uses PLAIN auth when credentials are configured

package otp

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// SMTPConfig holds outbound mail settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends passcodes through an SMTP relay.
type SMTPMailer struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer creates an SMTPMailer.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail}
}

// SendCode delivers the passcode email.
func (m *SMTPMailer) SendCode(_ context.Context, to, code string, ttl time.Duration) error {
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	if err := m.send(addr, auth, m.cfg.From, []string{to}, buildMessage(m.cfg.From, to, code, ttl)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", m.cfg.Host, err)
	}
	return nil
}

func buildMessage(from, to, code string, ttl time.Duration) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: Your verification code\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "Your verification code is %s\r\n\r\n", code)
	fmt.Fprintf(&b, "It expires in %d minutes. If you did not request it, ignore this email.\r\n", int(ttl.Minutes()))
	return []byte(b.String())
}

// LogMailer writes passcodes to the log instead of sending them.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendCode(_ context.Context, to, code string, ttl time.Duration) error {
	m.logger.Warn("smtp not configured, logging passcode", "to", to, "code", code, "ttl", ttl)
	return nil
}
