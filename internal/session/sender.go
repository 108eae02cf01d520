package session

import (
	"context"

	"github.com/rs/zerolog"
)

// CodeSender delivers a password recovery code to the account holder.
type CodeSender interface {
	SendResetCode(ctx context.Context, username, email, code string) error
}

// LogSender writes recovery codes to the log. It is the delivery channel of
// local and headless runs where no mailer is configured.
type LogSender struct {
	log zerolog.Logger
}

func NewLogSender(log zerolog.Logger) *LogSender {
	return &LogSender{log: log.With().Str("component", "recovery").Logger()}
}

func (s *LogSender) SendResetCode(_ context.Context, username, email, code string) error {
	s.log.Info().Str("username", username).Str("email", email).Str("code", code).Msg("Password recovery code issued")
	return nil
}
