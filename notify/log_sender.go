package notify

import (
	"context"

	"github.com/jrsteele09/go-token-authority/users"
	"github.com/rs/zerolog/log"
)

var _ Sender = (*LogSender)(nil)

// LogSender writes links to the log instead of mailing them. Used when no SMTP host is configured.
type LogSender struct {
	baseURL string
}

func NewLogSender(baseURL string) *LogSender {
	return &LogSender{baseURL: baseURL}
}

func (s *LogSender) SendActivationLink(_ context.Context, user *users.User, tokenValue string) error {
	log.Info().
		Str("user_id", user.ID).
		Str("email", user.Email).
		Str("link", Link(s.baseURL, ActivationPath, tokenValue)).
		Msg("activation link")
	return nil
}

func (s *LogSender) SendResetLink(_ context.Context, user *users.User, tokenValue string) error {
	log.Info().
		Str("user_id", user.ID).
		Str("email", user.Email).
		Str("link", Link(s.baseURL, ResetPasswordPath, tokenValue)).
		Msg("password reset link")
	return nil
}
