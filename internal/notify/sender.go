package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// SMTPConfig carries the mail credentials injected by the server at startup
type SMTPConfig struct {
	Host       string // SMTP host
	Port       int    // SMTP port
	Username   string // Login
	Password   string // Password
	From       string // Sender address
	Encryption string // ssl, tls/starttls or none
}

// Sender delivers a single plain text email
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type smtpSender struct {
	from string
	d    *gomail.Dialer
}

// NewSMTPSender builds a gomail backed Sender
func NewSMTPSender(cfg SMTPConfig) (Sender, error) {
	if cfg.Host == "" || cfg.Port == 0 || cfg.From == "" {
		return nil, errors.New("SMTP host, port and sender must be configured")
	}
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	tlsCfg := &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}
	switch strings.ToLower(cfg.Encryption) {
	case "ssl":
		d.SSL = true
		d.TLSConfig = tlsCfg
	case "tls", "starttls":
		d.TLSConfig = tlsCfg
	}
	return &smtpSender{from: cfg.From, d: d}, nil
}

func (s *smtpSender) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return errors.New("no recipients provided for email")
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	done := make(chan error, 1)
	go func() { done <- s.d.DialAndSend(m) }()

	select {
	case <-ctx.Done():
		return fmt.Errorf("email sending cancelled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send email: %w", err)
		}
	}
	logrus.WithFields(logrus.Fields{
		"to":      msg.To,
		"subject": msg.Subject,
		"kind":    msg.Kind,
	}).Info("Email sent")
	return nil
}

// LogSender only logs messages; used when SMTP is not configured
type LogSender struct{}

func (LogSender) Send(_ context.Context, msg Message) error {
	logrus.WithFields(logrus.Fields{
		"to":      msg.To,
		"subject": msg.Subject,
		"kind":    msg.Kind,
	}).Warn("SMTP not configured, email dropped")
	return nil
}
