// Package mail delivers magic-link emails.
package mail

import "context"

// Notifier sends a magic-link token to a user. SendMagicLink returns only once the delivery
// outcome is known; failures wrap errors.ErrDelivery.
type Notifier interface {
	SendMagicLink(ctx context.Context, toEmail, token string) error
}
