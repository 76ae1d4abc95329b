// Package account runs the user flows that are driven by action tokens: signup with account
// activation and the forgotten password reset.
package account

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-token-authority/actiontoken"
	autherrors "github.com/jrsteele09/go-token-authority/internal/errors"
	"github.com/jrsteele09/go-token-authority/notify"
	"github.com/jrsteele09/go-token-authority/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// SignupRequest carries the fields a new user registers with.
type SignupRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

type Service struct {
	users    users.UserRepo
	tracker  *actiontoken.Tracker
	notifier notify.Sender
	nowTime  func() time.Time
}

type ServiceOption func(*Service)

func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

func NewService(userRepo users.UserRepo, tracker *actiontoken.Tracker, notifier notify.Sender, options ...ServiceOption) (*Service, error) {
	if userRepo == nil {
		return nil, errors.New("[account.NewService] user repo is required")
	}
	if tracker == nil {
		return nil, errors.New("[account.NewService] action token tracker is required")
	}
	if notifier == nil {
		return nil, errors.New("[account.NewService] notifier is required")
	}

	s := &Service{
		users:    userRepo,
		tracker:  tracker,
		notifier: notifier,
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Signup stores an unverified user and sends them an activation link. Delivery failures are
// logged; the user can ask for the link again with ResendActivation.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (*users.User, error) {
	email := users.NormalizeEmail(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", autherrors.ErrInvalidRequest)
	}
	if err := users.ValidatePasswordStrength(req.Password); err != nil {
		return nil, err
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Signup] GetByEmail")
	}
	if existing != nil {
		return nil, autherrors.ErrUserExists
	}

	hash, err := users.HashPassword(req.Password)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Signup] HashPassword")
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		username = email
	}
	user := &users.User{
		ID:           uuid.New().String(),
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		DateJoined:   s.nowTime(),
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		if errors.Is(err, autherrors.ErrUserExists) {
			// Another signup for the same email won the race.
			return nil, autherrors.ErrUserExists
		}
		return nil, errors.Wrap(err, "[Service.Signup] Upsert")
	}

	if err := s.sendActivation(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ResendActivation issues a fresh activation link. Unknown and already verified emails are
// accepted silently so the endpoint does not reveal which accounts exist.
func (s *Service) ResendActivation(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, users.NormalizeEmail(email))
	if err != nil {
		return errors.Wrap(err, "[Service.ResendActivation] GetByEmail")
	}
	if user == nil || user.Verified {
		return nil
	}
	return s.sendActivation(ctx, user)
}

// Activate consumes an activation token and marks its user verified.
func (s *Service) Activate(ctx context.Context, tokenValue string) error {
	userID, err := s.tracker.ValidateAndConsumeFor(ctx, actiontoken.PurposeActivation, tokenValue)
	if err != nil {
		return err
	}
	if err := s.users.SetVerified(ctx, userID, true); err != nil {
		return errors.Wrapf(err, "[Service.Activate] SetVerified %s", userID)
	}
	log.Info().Str("user_id", userID).Msg("account activated")
	return nil
}

// ForgotPassword sends a reset link when the email belongs to a user. It reports success for
// unknown emails too.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, users.NormalizeEmail(email))
	if err != nil {
		return errors.Wrap(err, "[Service.ForgotPassword] GetByEmail")
	}
	if user == nil || user.Blocked {
		log.Debug().Msg("password reset requested for an unknown or blocked account")
		return nil
	}

	tok, err := s.tracker.Request(ctx, user.ID, actiontoken.PurposePasswordReset)
	if err != nil {
		return errors.Wrap(err, "[Service.ForgotPassword] Request")
	}
	if err := s.notifier.SendResetLink(ctx, user, tok.TokenValue); err != nil {
		log.Err(err).Str("user_id", user.ID).Msg("failed to send password reset link")
	}
	return nil
}

// ResetPassword checks the new password before consuming the token, so a rejected password
// leaves the link usable.
func (s *Service) ResetPassword(ctx context.Context, tokenValue, newPassword string) error {
	if err := users.ValidatePasswordStrength(newPassword); err != nil {
		return err
	}

	userID, err := s.tracker.ValidateAndConsumeFor(ctx, actiontoken.PurposePasswordReset, tokenValue)
	if err != nil {
		return err
	}

	hash, err := users.HashPassword(newPassword)
	if err != nil {
		return errors.Wrap(err, "[Service.ResetPassword] HashPassword")
	}
	if err := s.users.SetPasswordHash(ctx, userID, hash); err != nil {
		return errors.Wrapf(err, "[Service.ResetPassword] SetPasswordHash %s", userID)
	}
	log.Info().Str("user_id", userID).Msg("password reset")
	return nil
}

func (s *Service) sendActivation(ctx context.Context, user *users.User) error {
	tok, err := s.tracker.Request(ctx, user.ID, actiontoken.PurposeActivation)
	if err != nil {
		return errors.Wrap(err, "[Service.sendActivation] Request")
	}
	if err := s.notifier.SendActivationLink(ctx, user, tok.TokenValue); err != nil {
		log.Err(err).Str("user_id", user.ID).Msg("failed to send activation link")
	}
	return nil
}
