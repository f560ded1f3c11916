package accounts

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	// DefaultResetTokenTTL is how long a reset token stays valid
	DefaultResetTokenTTL = time.Hour
	// ResetTokenBytes is the entropy of issued tokens before encoding
	ResetTokenBytes = 32
)

// PasswordResetFlow issues opaque one-time password reset tokens and redeems
// them. Lookup is by token value, not by a known identity, so the guarded
// store update is what keeps a token single-use. Invalid attempts never
// invalidate a pending token; the correct token works until it expires.
type PasswordResetFlow struct {
	store    UserStore
	mailer   NotificationDispatcher
	tokenTTL time.Duration
	logger   Logger
	clock    func() time.Time
}

// NewPasswordResetFlow creates a flow with the default 1h token lifetime
func NewPasswordResetFlow(store UserStore, mailer NotificationDispatcher) *PasswordResetFlow {
	return &PasswordResetFlow{
		store:    store,
		mailer:   mailer,
		tokenTTL: DefaultResetTokenTTL,
		logger:   defLogger{},
		clock:    time.Now,
	}
}

// WithTokenTTL overrides the token lifetime
func (f *PasswordResetFlow) WithTokenTTL(ttl time.Duration) *PasswordResetFlow {
	if ttl > 0 {
		f.tokenTTL = ttl
	}
	return f
}

// WithLogger overrides the logger used by the flow
func (f *PasswordResetFlow) WithLogger(logger Logger) *PasswordResetFlow {
	if logger != nil {
		f.logger = logger
	}
	return f
}

// WithClock overrides the time source, used by tests to control expiry
func (f *PasswordResetFlow) WithClock(clock func() time.Time) *PasswordResetFlow {
	if clock != nil {
		f.clock = clock
	}
	return f
}

// IssueToken creates a reset token for the account registered under email
// and mails it. Unknown addresses return nil without touching any record, so
// the response never reveals whether an email is registered.
func (f *PasswordResetFlow) IssueToken(ctx context.Context, email string) error {
	user, err := f.store.FindByEmail(ctx, email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			f.logger.Debug("password reset requested for unknown email")
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up user for password reset")
	}

	token, err := generateResetToken()
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate reset token")
	}

	expiresAt := f.clock().Add(f.tokenTTL)

	if _, err := f.store.SetResetToken(ctx, user.ID, token, expiresAt); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist reset token")
	}

	subject := "Reset your password"
	body := fmt.Sprintf("Use this token to reset your password: %s. It expires in %s.", token, f.tokenTTL)

	if err := f.mailer.Send(ctx, user.Email, subject, body); err != nil {
		f.logger.Warn("password reset email dispatch failed for %s: %v", user.Email, err)
	}

	return nil
}

// Reset redeems a token: it finds the record whose stored token matches,
// checks the expiry is still in the future, hashes the new password, and
// writes hash plus token invalidation in one guarded update. Every failure
// path collapses to ErrResetInvalidOrExpired.
func (f *PasswordResetFlow) Reset(ctx context.Context, token, newPassword string) (*User, error) {
	if token == "" {
		return nil, ErrResetInvalidOrExpired
	}

	user, err := f.store.FindByResetToken(ctx, token)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrResetInvalidOrExpired
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up reset token")
	}

	if !user.HasPendingReset() {
		return nil, ErrResetInvalidOrExpired
	}

	if !f.clock().Before(*user.PasswordResetTokenExpiresAt) {
		return nil, ErrResetInvalidOrExpired
	}

	passwordHash, err := HashPassword(newPassword)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
	}

	updated, err := f.store.ResetPassword(ctx, user.ID, token, passwordHash)
	if err != nil {
		if goerrors.IsNotFound(err) {
			// token consumed by a concurrent reset between lookup and update
			return nil, ErrResetInvalidOrExpired
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user password")
	}

	return updated, nil
}

func generateResetToken() (string, error) {
	buf := make([]byte, ResetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
