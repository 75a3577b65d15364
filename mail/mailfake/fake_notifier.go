package mailfake

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-magic-auth/internal/errors"
	"github.com/jrsteele09/go-magic-auth/mail"
)

var _ mail.Notifier = (*Notifier)(nil)

type SentMagicLink struct {
	To    string
	Token string
}

// Notifier records magic links instead of sending them. Setting Err makes every send fail.
type Notifier struct {
	lock sync.Mutex
	sent []SentMagicLink
	err  error
}

func NewNotifier() *Notifier {
	return &Notifier{}
}

// FailWith makes subsequent sends fail with err wrapped in errors.ErrDelivery. A nil err
// restores success.
func (n *Notifier) FailWith(err error) {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.err = err
}

func (n *Notifier) SendMagicLink(ctx context.Context, toEmail, token string) error {
	n.lock.Lock()
	defer n.lock.Unlock()

	if n.err != nil {
		return errors.Mark(n.err, errors.ErrDelivery, "[mailfake] %s", toEmail)
	}
	n.sent = append(n.sent, SentMagicLink{To: toEmail, Token: token})
	return nil
}

func (n *Notifier) Sent() []SentMagicLink {
	n.lock.Lock()
	defer n.lock.Unlock()
	return append([]SentMagicLink(nil), n.sent...)
}

// LastToken returns the most recent token sent to toEmail.
func (n *Notifier) LastToken(toEmail string) (string, bool) {
	n.lock.Lock()
	defer n.lock.Unlock()

	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].To == toEmail {
			return n.sent[i].Token, true
		}
	}
	return "", false
}
