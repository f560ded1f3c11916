package accounts

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/nyaruka/phonenumbers"
)

// MaxLoginAttempts is the maximum number of failed attempts a user gets
// before the cooldown kicks in
var MaxLoginAttempts = 5

// CoolDownPeriod is the window in which failed attempts accumulate
var CoolDownPeriod = "24h"

// Accounts is the composition of the credential components. It is what a
// transport layer (HTTP handlers, GraphQL resolvers) talks to.
type Accounts struct {
	store        UserStore
	mailer       NotificationDispatcher
	secrets      *SecretCache
	tokens       TokenService
	verification *VerificationFlow
	reset        *PasswordResetFlow
	logger       Logger
	clock        func() time.Time
}

// New wires the accounts service. The store, mailer, and secret cache are
// the external collaborators; everything else is built here.
func New(store UserStore, mailer NotificationDispatcher, secrets *SecretCache, cfg Config) *Accounts {
	tokens := NewTokenService(secrets, cfg, defLogger{})

	return &Accounts{
		store:        store,
		mailer:       mailer,
		secrets:      secrets,
		tokens:       tokens,
		verification: NewVerificationFlow(store, mailer),
		reset:        NewPasswordResetFlow(store, mailer),
		logger:       defLogger{},
		clock:        time.Now,
	}
}

// WithLogger overrides the logger for the service and both flows
func (a *Accounts) WithLogger(logger Logger) *Accounts {
	if logger != nil {
		a.logger = logger
		a.verification.WithLogger(logger)
		a.reset.WithLogger(logger)
	}
	return a
}

// WithTokenService overrides the token service, e.g. to change issuer or
// expiry handling
func (a *Accounts) WithTokenService(tokens TokenService) *Accounts {
	if tokens != nil {
		a.tokens = tokens
	}
	return a
}

// WithClock overrides the time source for the service and both flows
func (a *Accounts) WithClock(clock func() time.Time) *Accounts {
	if clock != nil {
		a.clock = clock
		a.verification.WithClock(clock)
		a.reset.WithClock(clock)
	}
	return a
}

// TokenService returns the TokenService instance used by this service
func (a *Accounts) TokenService() TokenService {
	return a.tokens
}

// VerificationFlow returns the verification flow, e.g. to adjust its TTL
func (a *Accounts) VerificationFlow() *VerificationFlow {
	return a.verification
}

// PasswordResetFlow returns the reset flow, e.g. to adjust its TTL
func (a *Accounts) PasswordResetFlow() *PasswordResetFlow {
	return a.reset
}

// SignUpPayload is the input to SignUp
type SignUpPayload struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// Validate checks the payload before any I/O happens
func (p SignUpPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&p.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&p.Phone, validation.By(validateOptionalPhone)),
		validation.Field(&p.Password, validation.Required, validation.Length(8, 100)),
	)
}

func validateOptionalPhone(value any) error {
	phone, _ := value.(string)
	if phone == "" {
		return nil
	}

	parsed, err := phonenumbers.Parse(phone, "US")
	if err != nil {
		return err
	}

	if !phonenumbers.IsValidNumber(parsed) {
		return goerrors.New("invalid phone number", goerrors.CategoryValidation)
	}

	return nil
}

// SignUp creates an account, issues a verification code, and returns a
// signed token with the new user. The account starts unverified; a failed
// verification email does not fail the sign up.
func (a *Accounts) SignUp(ctx context.Context, payload SignUpPayload) (*AuthPayload, error) {
	if err := payload.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid sign up payload")
	}

	hash, err := HashPassword(payload.Password)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	role := UserRole(payload.Role)
	if !role.IsValid() {
		role = RoleMember
	}

	user := &User{
		Name:         payload.Name,
		Email:        payload.Email,
		Phone:        payload.Phone,
		PasswordHash: hash,
		Role:         role,
	}

	if id, err := hashid.NewUUID(payload.Email); err == nil {
		user.ID = id
	}

	created, err := a.store.Create(ctx, user)
	if err != nil {
		if isConflict(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not create user")
	}

	if _, err := a.verification.IssueCode(ctx, created); err != nil {
		// the account exists either way; the user can request a resend
		a.logger.Warn("failed to issue verification code for %s: %v", created.Email, err)
	}

	token, err := a.tokens.Generate(ctx, NewIdentity(created))
	if err != nil {
		return nil, err
	}

	return &AuthPayload{Token: token, User: created}, nil
}

// SignIn authenticates email and password and returns a signed token.
// Unknown email and wrong password are indistinguishable to the caller.
func (a *Accounts) SignIn(ctx context.Context, email, password string) (*AuthPayload, error) {
	user, err := a.store.FindByEmail(ctx, email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user during sign in")
	}

	if user.LoginAttemptAt != nil {
		expired, err := IsOutsideThresholdPeriod(*user.LoginAttemptAt, CoolDownPeriod)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to calculate login attempt cooldown")
		}
		if expired {
			user.LoginAttempts = 0
		}
	}

	if user.LoginAttempts > MaxLoginAttempts {
		return nil, ErrTooManyLoginAttempts
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if err2 := a.store.TrackAttemptedLogin(ctx, user); err2 != nil {
			return nil, goerrors.Wrap(err2, goerrors.CategoryInternal, "failed to track login attempt")
		}
		return nil, ErrInvalidCredentials
	}

	if !user.IsVerified() {
		return nil, ErrEmailNotVerified
	}

	if err := a.store.TrackSuccessfulLogin(ctx, user); err != nil {
		a.logger.Error("failed to track successful login: %v", err)
	}

	token, err := a.tokens.Generate(ctx, NewIdentity(user))
	if err != nil {
		return nil, err
	}

	return &AuthPayload{Token: token, User: user}, nil
}

// SendVerificationEmail issues a fresh code for a pending account. Unknown
// addresses return nil so the endpoint cannot be used to probe for accounts;
// already verified accounts get ErrAlreadyVerified.
func (a *Accounts) SendVerificationEmail(ctx context.Context, email string) error {
	user, err := a.store.FindByEmail(ctx, email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			a.logger.Debug("verification resend requested for unknown email")
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for verification resend")
	}

	_, err = a.verification.IssueCode(ctx, user)
	return err
}

// VerifyEmail confirms the code for the account registered under email and
// returns a fresh token for the now verified user.
func (a *Accounts) VerifyEmail(ctx context.Context, email, code string) (*AuthPayload, error) {
	user, err := a.store.FindByEmail(ctx, email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrVerificationNotIssued
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for verification")
	}

	verified, err := a.verification.Confirm(ctx, user, code)
	if err != nil {
		a.debugRichError("verify email failed", err)
		return nil, err
	}

	token, err := a.tokens.Generate(ctx, NewIdentity(verified))
	if err != nil {
		return nil, err
	}

	return &AuthPayload{Token: token, User: verified}, nil
}

// RequestPasswordReset issues a reset token. Always succeeds for unknown
// addresses.
func (a *Accounts) RequestPasswordReset(ctx context.Context, email string) error {
	return a.reset.IssueToken(ctx, email)
}

// ResetPassword redeems a reset token and sets the new password
func (a *Accounts) ResetPassword(ctx context.Context, token, newPassword string) error {
	_, err := a.reset.Reset(ctx, token, newPassword)
	if err != nil {
		a.debugRichError("password reset failed", err)
	}
	return err
}

func (a *Accounts) debugRichError(msg string, err error) {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		a.logger.Debug("%s: %s %s", msg, richErr.Message, print.MaybePrettyJSON(richErr.Metadata))
		return
	}
	a.logger.Debug("%s: %v", msg, err)
}

func isConflict(err error) bool {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Category == goerrors.CategoryConflict
	}
	return false
}
