package accounts_test

import (
	"testing"

	"github.com/goliatone/go-accounts"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuredErrorProperties(t *testing.T) {
	t.Run("ErrInvalidCredentials", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryAuth, accounts.ErrInvalidCredentials.Category)
		assert.Equal(t, accounts.TextCodeInvalidCreds, accounts.ErrInvalidCredentials.TextCode)
		assert.Equal(t, "the credentials provided are invalid", accounts.ErrInvalidCredentials.Message)
	})

	t.Run("ErrMismatchedHashAndPassword shares the credentials message", func(t *testing.T) {
		assert.Equal(t, accounts.ErrInvalidCredentials.Message, accounts.ErrMismatchedHashAndPassword.Message)
		assert.Equal(t, accounts.ErrInvalidCredentials.TextCode, accounts.ErrMismatchedHashAndPassword.TextCode)
	})

	t.Run("ErrInvalidToken", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryAuth, accounts.ErrInvalidToken.Category)
		assert.Equal(t, accounts.TextCodeInvalidToken, accounts.ErrInvalidToken.TextCode)
	})

	t.Run("ErrDuplicateEmail", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryConflict, accounts.ErrDuplicateEmail.Category)
		assert.Equal(t, accounts.TextCodeDuplicateEmail, accounts.ErrDuplicateEmail.TextCode)
	})

	t.Run("ErrAlreadyVerified", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryConflict, accounts.ErrAlreadyVerified.Category)
		assert.Equal(t, accounts.TextCodeAlreadyVerified, accounts.ErrAlreadyVerified.TextCode)
	})

	t.Run("verification errors", func(t *testing.T) {
		assert.Equal(t, accounts.TextCodeCodeNotIssued, accounts.ErrVerificationNotIssued.TextCode)
		assert.Equal(t, accounts.TextCodeCodeExpired, accounts.ErrVerificationExpired.TextCode)
		assert.Equal(t, accounts.TextCodeCodeMismatch, accounts.ErrVerificationMismatch.TextCode)
	})

	t.Run("ErrResetInvalidOrExpired", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryValidation, accounts.ErrResetInvalidOrExpired.Category)
		assert.Equal(t, accounts.TextCodeResetTokenInvalid, accounts.ErrResetInvalidOrExpired.TextCode)
	})

	t.Run("ErrTooManyLoginAttempts", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryRateLimit, accounts.ErrTooManyLoginAttempts.Category)
		assert.Equal(t, accounts.TextCodeTooManyAttempts, accounts.ErrTooManyLoginAttempts.TextCode)
	})

	t.Run("ErrNoEmptyString", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryValidation, accounts.ErrNoEmptyString.Category)
		assert.Equal(t, accounts.TextCodeEmptyPassword, accounts.ErrNoEmptyString.TextCode)
	})
}

func TestFetchErrorHelpers(t *testing.T) {
	err := accounts.NewFetchError("auth", assert.AnError)

	assert.True(t, accounts.IsFetchError(err))
	assert.False(t, accounts.IsFetchError(nil))
	assert.False(t, accounts.IsFetchError(assert.AnError))
	assert.False(t, accounts.IsFetchError(accounts.ErrInvalidToken))

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, accounts.TextCodeSecretFetchFailed, richErr.TextCode)
	assert.Equal(t, "auth", richErr.Metadata["secret"])
}
