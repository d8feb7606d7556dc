package forum

import (
	"context"
	"log/slog"
)

// Mailer delivers the activation notice for a freshly registered account.
// Actual delivery is the board's (or an external relay's) concern; the
// gateway only needs a seam to hand the activation key through.
type Mailer interface {
	SendActivation(ctx context.Context, email, username, activationKey string) error
}

// LogMailer is the default Mailer. It records the activation key in the log
// instead of sending mail, which is enough for operators who copy the
// activation link out of the log or let the board re-send it.
type LogMailer struct {
	Logger *slog.Logger
}

func (m *LogMailer) SendActivation(_ context.Context, email, username, activationKey string) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("account activation pending",
		"email", email,
		"username", username,
		"activation_key", activationKey)
	return nil
}
