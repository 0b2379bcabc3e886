package library

import (
	"context"

	"go.uber.org/zap"
)

// Mailer delivers account emails (verification and password reset links).
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogMailer writes outgoing mail to the log instead of sending it.
type LogMailer struct {
	Log *zap.Logger
}

func (l LogMailer) Send(_ context.Context, to, subject, body string) error {
	l.Log.Info("mail", zap.String("to", to), zap.String("subject", subject), zap.String("body", body))
	return nil
}
