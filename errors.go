package accounts

import (
	"github.com/goliatone/go-errors"
)

// Text codes surfaced to API clients alongside the HTTP-ish error codes.
const (
	TextCodeSecretFetchFailed = "SECRET_FETCH_FAILED"
	TextCodeInvalidToken      = "INVALID_TOKEN"
	TextCodeInvalidCreds      = "INVALID_CREDENTIALS"
	TextCodeEmailNotVerified  = "EMAIL_NOT_VERIFIED"
	TextCodeDuplicateEmail    = "DUPLICATE_EMAIL"
	TextCodeAlreadyVerified   = "ALREADY_VERIFIED"
	TextCodeCodeNotIssued     = "VERIFICATION_NOT_ISSUED"
	TextCodeCodeExpired       = "VERIFICATION_EXPIRED"
	TextCodeCodeMismatch      = "VERIFICATION_MISMATCH"
	TextCodeResetTokenInvalid = "RESET_TOKEN_INVALID_OR_EXPIRED"
	TextCodeTooManyAttempts   = "TOO_MANY_LOGIN_ATTEMPTS"
	TextCodeEmptyPassword     = "EMPTY_PASSWORD"
)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = errors.New("password must not be empty", errors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(errors.CodeBadRequest)

// ErrMismatchedHashAndPassword is returned when a password does not match its
// stored hash. It deliberately shares message and text code with the unknown
// email path so callers cannot probe for registered addresses.
var ErrMismatchedHashAndPassword = errors.New("the credentials provided are invalid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidCredentials collapses unknown email and wrong password on sign in
var ErrInvalidCredentials = errors.New("the credentials provided are invalid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(errors.CodeUnauthorized)

// ErrEmailNotVerified is returned on sign in while the address is pending
// verification.
var ErrEmailNotVerified = errors.New("email address has not been verified", errors.CategoryAuth).
	WithTextCode(TextCodeEmailNotVerified).
	WithCode(errors.CodeForbidden)

// ErrTooManyLoginAttempts is returned when a user exceeds MaxLoginAttempts
// within the cooldown period.
var ErrTooManyLoginAttempts = errors.New("too many failed login attempts", errors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyAttempts)

// ErrDuplicateEmail is returned when signing up with an email that already
// has an account.
var ErrDuplicateEmail = errors.New("an account with this email already exists", errors.CategoryConflict).
	WithTextCode(TextCodeDuplicateEmail).
	WithCode(errors.CodeConflict)

// ErrInvalidToken covers every bearer token failure: malformed, forged,
// expired, or signed with a rotated key. A single error keeps the API from
// acting as a validation oracle.
var ErrInvalidToken = errors.New("invalid authentication token", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidToken).
	WithCode(errors.CodeUnauthorized)

// ErrAlreadyVerified is returned when issuing or confirming a code for a user
// whose email is already verified.
var ErrAlreadyVerified = errors.New("email address is already verified", errors.CategoryConflict).
	WithTextCode(TextCodeAlreadyVerified).
	WithCode(errors.CodeConflict)

// ErrVerificationNotIssued is returned when confirming while no code is
// pending.
var ErrVerificationNotIssued = errors.New("no verification code pending", errors.CategoryBadInput).
	WithTextCode(TextCodeCodeNotIssued).
	WithCode(errors.CodeBadRequest)

// ErrVerificationExpired is returned when the pending code is past its expiry
var ErrVerificationExpired = errors.New("verification code has expired", errors.CategoryValidation).
	WithTextCode(TextCodeCodeExpired).
	WithCode(errors.CodeBadRequest)

// ErrVerificationMismatch is returned when the submitted code differs from
// the pending one.
var ErrVerificationMismatch = errors.New("verification code does not match", errors.CategoryValidation).
	WithTextCode(TextCodeCodeMismatch).
	WithCode(errors.CodeBadRequest)

// ErrResetInvalidOrExpired covers unknown, already used, and expired password
// reset tokens.
var ErrResetInvalidOrExpired = errors.New("invalid or expired password reset token", errors.CategoryValidation).
	WithTextCode(TextCodeResetTokenInvalid).
	WithCode(errors.CodeBadRequest)

// NewFetchError wraps a secret origin failure with the key that triggered it.
// Fetch errors are fatal to the calling request; they are never cached so the
// next caller retries the origin.
func NewFetchError(key string, cause error) *errors.Error {
	return errors.Wrap(cause, errors.CategoryInternal, "failed to fetch secret").
		WithTextCode(TextCodeSecretFetchFailed).
		WithCode(errors.CodeInternal).
		WithMetadata(map[string]any{"secret": key})
}

// IsFetchError checks whether err originated in the secret cache fetch path
func IsFetchError(err error) bool {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == TextCodeSecretFetchFailed
}
