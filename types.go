package accounts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// SecretSource is the origin we fetch externally managed secrets from,
// e.g. AWS Secrets Manager or Vault. Implementations should treat name as
// an opaque identifier.
type SecretSource interface {
	FetchSecret(ctx context.Context, name string) (json.RawMessage, error)
}

// UserStore is the persistence boundary for user records. Every method is
// expected to be atomic per record; the guarded updates (MarkVerified,
// ResetPassword) must only match when the stored code or token still equals
// the supplied value, so a lost-update race surfaces as a not-found error.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByResetToken(ctx context.Context, token string) (*User, error)
	Create(ctx context.Context, user *User) (*User, error)

	SetVerificationCode(ctx context.Context, id uuid.UUID, code string, expiresAt time.Time) (*User, error)
	MarkVerified(ctx context.Context, id uuid.UUID, code string, validatedAt time.Time) (*User, error)

	SetResetToken(ctx context.Context, id uuid.UUID, token string, expiresAt time.Time) (*User, error)
	ResetPassword(ctx context.Context, id uuid.UUID, token, passwordHash string) (*User, error)

	TrackAttemptedLogin(ctx context.Context, user *User) error
	TrackSuccessfulLogin(ctx context.Context, user *User) error
}

// NotificationDispatcher delivers transactional email. Send is fire and
// forget from the flows' perspective: failures are logged and reported but
// never fail the enclosing operation.
type NotificationDispatcher interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Identity holds the attributes of an authenticated identity
type Identity interface {
	ID() string
	Email() string
	Name() string
	Role() string
}

// TokenService mints and validates bearer tokens
type TokenService interface {
	Generate(ctx context.Context, identity Identity) (string, error)
	Validate(ctx context.Context, token string) (AuthClaims, error)
}

// Config holds accounts options
type Config interface {
	GetSigningSecretName() string
	GetTokenExpiration() int
	GetIssuer() string
	GetAudience() []string
}

// SimpleConfig is a plain struct Config implementation for hosts that do not
// carry their own configuration layer.
type SimpleConfig struct {
	SigningSecretName string
	TokenExpiration   int
	Issuer            string
	Audience          []string
}

func (c SimpleConfig) GetSigningSecretName() string {
	if c.SigningSecretName == "" {
		return DefaultSigningSecretName
	}
	return c.SigningSecretName
}

// GetTokenExpiration is the token lifetime in hours
func (c SimpleConfig) GetTokenExpiration() int {
	if c.TokenExpiration <= 0 {
		return DefaultTokenExpiration
	}
	return c.TokenExpiration
}

func (c SimpleConfig) GetIssuer() string { return c.Issuer }

func (c SimpleConfig) GetAudience() []string { return c.Audience }

const (
	// DefaultSigningSecretName is the secret blob holding {"jwt_secret": "..."}
	DefaultSigningSecretName = "auth"
	// DefaultTokenExpiration is 14 days expressed in hours
	DefaultTokenExpiration = 14 * 24
)

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ACCOUNTS "+newline(format), args...)
}

func newline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
