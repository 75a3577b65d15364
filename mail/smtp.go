package mail

import (
	"context"
	"net"
	"net/smtp"

	"github.com/jrsteele09/go-magic-auth/internal/config"
	"github.com/jrsteele09/go-magic-auth/internal/errors"
)

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier delivers magic links through an SMTP relay using PLAIN auth.
type SMTPNotifier struct {
	addr     string
	from     string
	auth     smtp.Auth
	composer *Composer
	send     SendFunc
}

var _ Notifier = (*SMTPNotifier)(nil)

type SMTPOption func(*SMTPNotifier)

// WithSendFunc replaces smtp.SendMail, for tests.
func WithSendFunc(send SendFunc) SMTPOption {
	return func(n *SMTPNotifier) {
		n.send = send
	}
}

func NewSMTPNotifier(cfg config.MailConfig, composer *Composer, options ...SMTPOption) *SMTPNotifier {
	n := &SMTPNotifier{
		addr:     net.JoinHostPort(cfg.GetSmtpHost(), cfg.GetSmtpPort()),
		from:     cfg.GetMailFrom(),
		auth:     smtp.PlainAuth("", cfg.GetSmtpAccount(), cfg.GetSmtpPassword(), cfg.GetSmtpHost()),
		composer: composer,
		send:     smtp.SendMail,
	}
	for _, opt := range options {
		opt(n)
	}
	return n
}

// SendMagicLink blocks until the relay accepts or rejects the message, or ctx ends. A send
// abandoned by ctx may still complete in the background.
func (n *SMTPNotifier) SendMagicLink(ctx context.Context, toEmail, token string) error {
	msg, err := n.composer.Compose(toEmail, token)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- n.send(n.addr, n.auth, n.from, []string{toEmail}, msg.Bytes(n.from))
	}()

	select {
	case err := <-done:
		if err != nil {
			return errors.Mark(err, errors.ErrDelivery, "[SMTPNotifier.SendMagicLink] %s", toEmail)
		}
		return nil
	case <-ctx.Done():
		return errors.Mark(ctx.Err(), errors.ErrDelivery, "[SMTPNotifier.SendMagicLink] %s", toEmail)
	}
}
