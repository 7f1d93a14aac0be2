// Package users resolves Telegram identities to platform accounts and runs
// the registration sequence against the admin API.
package users

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vexa-ai/vexabot/bot/api"
	"github.com/vexa-ai/vexabot/core/logger"
)

// AdminAPI is the slice of the backend client registration depends on.
type AdminAPI interface {
	CreateUser(ctx context.Context, email, name string) (*api.User, error)
	GetUserByEmail(ctx context.Context, email string) (*api.User, error)
	CreateToken(ctx context.Context, userID int64) (*api.Token, error)
}

// Service maps Telegram user IDs to platform identities.
type Service struct {
	store Store
	admin AdminAPI
}

// NewService wires the account store and the admin API client.
func NewService(store Store, admin AdminAPI) *Service {
	return &Service{store: store, admin: admin}
}

// Resolve returns the identity linked to the Telegram user, or (nil, nil)
// when the user is not registered or has no usable token.
func (s *Service) Resolve(ctx context.Context, telegramID int64) (*Identity, error) {
	acc, err := s.store.FindByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, nil
	}

	cred, err := s.store.LatestToken(ctx, acc.ID)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		logger.Debug(ctx, "users", "resolve.no_token",
			slog.Int64("telegram_id", telegramID),
			slog.Int64("account_id", acc.ID),
		)
		return nil, nil
	}

	return &Identity{Account: *acc, Token: cred.Token}, nil
}

// ValidEmail applies the same minimal check the registration screen uses.
func ValidEmail(email string) bool {
	return strings.Contains(email, "@") && strings.Contains(email, ".")
}

// Register creates the platform account, links the Telegram identity to it
// and issues an API token, in that order. Any failure aborts with a
// RegistrationError naming the step; earlier steps are not rolled back.
func (s *Service) Register(ctx context.Context, email string, telegramID int64, username, name string) (*Identity, error) {
	email = strings.TrimSpace(email)
	if !ValidEmail(email) {
		return nil, ErrInvalidEmail
	}

	user, err := s.admin.CreateUser(ctx, email, name)
	if err != nil {
		// The account may already exist; adopt it instead of failing.
		if api.IsStatus(err, 409) {
			user, err = s.admin.GetUserByEmail(ctx, email)
		}
		if err != nil {
			return nil, &RegistrationError{Step: StepCreateAccount, Err: err}
		}
	}

	acc := Account{
		ID:               user.ID,
		Email:            user.Email,
		Name:             user.Name,
		TelegramID:       telegramID,
		TelegramUsername: username,
	}
	if err := s.store.LinkTelegram(ctx, acc); err != nil {
		return nil, &RegistrationError{Step: StepLink, Err: err}
	}

	token, err := s.admin.CreateToken(ctx, user.ID)
	if err != nil {
		return nil, &RegistrationError{Step: StepIssueToken, Err: err}
	}
	if err := s.store.SaveToken(ctx, user.ID, token.Token); err != nil {
		return nil, &RegistrationError{Step: StepIssueToken, Err: fmt.Errorf("persist token: %w", err)}
	}

	logger.Info(ctx, "users", "register.ok",
		slog.Int64("telegram_id", telegramID),
		slog.Int64("account_id", user.ID),
	)
	return &Identity{Account: acc, Token: token.Token}, nil
}
