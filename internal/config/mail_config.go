package config

import (
	"strings"
	"time"

	"github.com/jrsteele09/go-magic-auth/internal/errors"
)

type MailBackend string

const (
	MailBackendLog  MailBackend = "log"
	MailBackendSMTP MailBackend = "smtp"
)

const DefaultMailTimeout = 30 * time.Second

type MailConfig interface {
	GetMailBackend() MailBackend
	GetSmtpHost() string
	GetSmtpPort() string
	GetSmtpAccount() string
	GetSmtpPassword() string
	GetMailFrom() string
	GetMagicLinkBaseURL() string
	GetMailTimeout() time.Duration
}

type Mail struct {
	Backend          MailBackend
	SmtpHost         string
	SmtpPort         string
	SmtpAccount      string
	SmtpPassword     string
	From             string
	MagicLinkBaseURL string
	Timeout          time.Duration
}

var _ MailConfig = Mail{}

func loadMail() (Mail, error) {
	m := Mail{
		Backend:          MailBackend(strings.ToLower(GetEnv("MAIL_BACKEND", string(MailBackendLog)))),
		SmtpHost:         GetEnv("SMTP_HOST", "smtp.gmail.com"),
		SmtpPort:         GetEnv("SMTP_PORT", "587"),
		SmtpAccount:      GetEnv("SMTP_ACCOUNT", ""),
		SmtpPassword:     GetEnv("SMTP_PASSWORD", ""),
		MagicLinkBaseURL: GetEnv("MAGIC_LINK_BASE_URL", "http://localhost:3000/auth/magic-link"),
	}
	m.From = GetEnv("MAIL_FROM", m.SmtpAccount)

	var err error
	if m.Timeout, err = GetEnvDuration("MAIL_TIMEOUT", DefaultMailTimeout); err != nil {
		return Mail{}, err
	}
	return m, nil
}

func (m Mail) Validate() error {
	switch m.Backend {
	case MailBackendLog:
		return nil
	case MailBackendSMTP:
		if m.SmtpAccount == "" || m.SmtpPassword == "" {
			return errors.Wrapf(errors.ErrConfig, "SMTP_ACCOUNT and SMTP_PASSWORD are required for smtp mail")
		}
		return nil
	default:
		return errors.Wrapf(errors.ErrConfig, "unknown MAIL_BACKEND %q", m.Backend)
	}
}

func (m Mail) GetMailBackend() MailBackend { return m.Backend }
func (m Mail) GetSmtpHost() string         { return m.SmtpHost }
func (m Mail) GetSmtpPort() string         { return m.SmtpPort }
func (m Mail) GetSmtpAccount() string      { return m.SmtpAccount }
func (m Mail) GetSmtpPassword() string     { return m.SmtpPassword }
func (m Mail) GetMailFrom() string         { return m.From }
func (m Mail) GetMagicLinkBaseURL() string { return m.MagicLinkBaseURL }

func (m Mail) GetMailTimeout() time.Duration {
	if m.Timeout <= 0 {
		return DefaultMailTimeout
	}
	return m.Timeout
}
