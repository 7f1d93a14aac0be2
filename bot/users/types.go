package users

import (
	"errors"
	"fmt"
	"time"
)

// Account is a platform account linked to a Telegram user.
type Account struct {
	ID               int64  `db:"id"`
	Email            string `db:"email"`
	Name             string `db:"name"`
	TelegramID       int64  `db:"telegram_id"`
	TelegramUsername string `db:"telegram_username"`
}

// Credential is one issued API token.
type Credential struct {
	UserID    int64     `db:"user_id"`
	Token     string    `db:"token"`
	CreatedAt time.Time `db:"created_at"`
}

// Identity bundles a resolved account with its current API token.
type Identity struct {
	Account Account
	Token   string
}

// ErrInvalidEmail rejects emails without both '@' and '.'.
var ErrInvalidEmail = errors.New("users: invalid email address")

// Step names the sub-operation of registration that failed.
type Step string

const (
	// StepCreateAccount is the remote account creation via the admin API.
	StepCreateAccount Step = "create_account"
	// StepLink is linking the Telegram identity to the account locally.
	StepLink Step = "link"
	// StepIssueToken is requesting a fresh API token.
	StepIssueToken Step = "issue_token"
)

// RegistrationError reports which registration step failed. Registration is
// all-or-nothing: any failing step aborts the whole operation. A remote
// account created before a later step fails is not compensated; the flow
// must restart from the beginning.
type RegistrationError struct {
	Step Step
	Err  error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("users: registration failed at %s: %v", e.Step, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }
