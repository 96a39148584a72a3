package devserver

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"

	"github.com/hauswerk/go-admin-auth/internal/config"
)

// CodeSender delivers a verification code to a user.
type CodeSender interface {
	SendCode(email, code string) error
}

// NewCodeSender returns an SMTP sender when a host is configured and a
// logging sender otherwise, so the dev server works without mail setup.
func NewCodeSender(cfg config.SMTPConfig, log zerolog.Logger) CodeSender {
	if cfg.Host == "" {
		return &logSender{log: log}
	}
	return &smtpSender{cfg: cfg}
}

type smtpSender struct {
	cfg config.SMTPConfig
}

func (s *smtpSender) SendCode(email, code string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.Account)
	m.SetHeader("To", email)
	m.SetHeader("Subject", "Your verification code")
	m.SetBody("text/plain", fmt.Sprintf("Your verification code is %s. It expires in 10 minutes.", code))

	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Account, s.cfg.Password)
	if err := d.DialAndSend(m); err != nil {
		return errors.Wrap(err, "[smtpSender.SendCode] DialAndSend")
	}
	return nil
}

type logSender struct {
	log zerolog.Logger
}

func (s *logSender) SendCode(email, code string) error {
	s.log.Info().Str("email", email).Str("code", code).Msg("verification code (not mailed, SMTP unconfigured)")
	return nil
}
