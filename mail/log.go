package mail

import (
	"context"

	"github.com/rs/zerolog"
)

// LogNotifier writes the magic link to the log instead of sending it. For local development
// only: the link grants a session to whoever reads the log.
type LogNotifier struct {
	logger   zerolog.Logger
	composer *Composer
}

var _ Notifier = (*LogNotifier)(nil)

func NewLogNotifier(logger zerolog.Logger, composer *Composer) *LogNotifier {
	return &LogNotifier{logger: logger, composer: composer}
}

func (n *LogNotifier) SendMagicLink(ctx context.Context, toEmail, token string) error {
	msg, err := n.composer.Compose(toEmail, token)
	if err != nil {
		return err
	}
	n.logger.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Str("link", n.composer.Link(token)).
		Msg("magic link email (not sent)")
	return nil
}
