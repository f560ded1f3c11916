package accounts

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	// DefaultVerificationCodeTTL is how long an issued code stays valid
	DefaultVerificationCodeTTL = 24 * time.Hour
	// VerificationCodeDigits is the length of issued codes
	VerificationCodeDigits = 6
)

// VerificationFlow drives email verification per user:
//
//	Unverified -> CodeIssued -> Verified
//
// IssueCode may be called again while a code is pending; the new code and
// expiry overwrite the old pair. Verified is terminal.
type VerificationFlow struct {
	store   UserStore
	mailer  NotificationDispatcher
	codeTTL time.Duration
	logger  Logger
	clock   func() time.Time
}

// NewVerificationFlow creates a flow with the default 24h code lifetime
func NewVerificationFlow(store UserStore, mailer NotificationDispatcher) *VerificationFlow {
	return &VerificationFlow{
		store:   store,
		mailer:  mailer,
		codeTTL: DefaultVerificationCodeTTL,
		logger:  defLogger{},
		clock:   time.Now,
	}
}

// WithCodeTTL overrides the code lifetime
func (f *VerificationFlow) WithCodeTTL(ttl time.Duration) *VerificationFlow {
	if ttl > 0 {
		f.codeTTL = ttl
	}
	return f
}

// WithLogger overrides the logger used by the flow
func (f *VerificationFlow) WithLogger(logger Logger) *VerificationFlow {
	if logger != nil {
		f.logger = logger
	}
	return f
}

// WithClock overrides the time source, used by tests to control expiry
func (f *VerificationFlow) WithClock(clock func() time.Time) *VerificationFlow {
	if clock != nil {
		f.clock = clock
	}
	return f
}

// IssueCode generates a fresh verification code for the user, persists it
// with its expiry, and emails it. A failed email dispatch is logged and
// reported through the returned user's state but does not fail the call.
// Returns ErrAlreadyVerified for users that completed verification.
func (f *VerificationFlow) IssueCode(ctx context.Context, user *User) (string, error) {
	if user == nil {
		return "", goerrors.New("user must not be nil", goerrors.CategoryInternal)
	}

	if user.IsVerified() {
		return "", ErrAlreadyVerified
	}

	code, err := generateNumericCode(VerificationCodeDigits)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate verification code")
	}

	expiresAt := f.clock().Add(f.codeTTL)

	updated, err := f.store.SetVerificationCode(ctx, user.ID, code, expiresAt)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist verification code")
	}

	*user = *updated

	subject := "Verify your email address"
	body := fmt.Sprintf("Your verification code is %s. It expires in %s.", code, f.codeTTL)

	if err := f.mailer.Send(ctx, user.Email, subject, body); err != nil {
		// delivery is best effort, the caller can resend
		f.logger.Warn("verification email dispatch failed for %s: %v", user.Email, err)
	}

	return code, nil
}

// Confirm validates the submitted code against the pending one and, on
// match, clears the code pair and stamps ValidatedAt in a single guarded
// update. A failed confirm leaves the pending code untouched.
func (f *VerificationFlow) Confirm(ctx context.Context, user *User, submitted string) (*User, error) {
	if user == nil {
		return nil, goerrors.New("user must not be nil", goerrors.CategoryInternal)
	}

	if user.IsVerified() {
		return nil, ErrAlreadyVerified
	}

	if !user.HasPendingVerification() {
		return nil, ErrVerificationNotIssued
	}

	now := f.clock()
	if !now.Before(*user.VerificationCodeExpiresAt) {
		return nil, ErrVerificationExpired
	}

	// exact match only: no trimming, no case folding
	if *user.VerificationCode != submitted {
		return nil, ErrVerificationMismatch
	}

	updated, err := f.store.MarkVerified(ctx, user.ID, submitted, now)
	if err != nil {
		if goerrors.IsNotFound(err) {
			// the guarded update matched nothing: a concurrent confirm or
			// resend consumed the code first
			return nil, ErrVerificationNotIssued
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mark user verified")
	}

	*user = *updated

	return updated, nil
}

// generateNumericCode returns a zero-padded numeric string of n digits drawn
// uniformly from [0, 10^n).
func generateNumericCode(n int) (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)

	v, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%0*d", n, v), nil
}
