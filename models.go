package accounts

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the user's role
type UserRole string

const (
	// RoleGuest is a guest role (ie. view)
	RoleGuest UserRole = "guest"
	// RoleMember is a member (i.e. view, edit)
	RoleMember UserRole = "member"
	// RoleAdmin is an admin role (i.e. view, edit, create)
	RoleAdmin UserRole = "admin"
	// RoleOwner is an admin role (i.e. view, edit, create, delete)
	RoleOwner UserRole = "owner"
)

// User is the user model. The verification code and reset token columns come
// in expiry pairs: both columns are set together when a code or token is
// issued and cleared together in the same statement that consumes them, so a
// record never carries a code without an expiry or vice versa.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`

	ID           uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Role         UserRole  `bun:"user_role,notnull" json:"user_role,omitempty"`
	Name         string    `bun:"name,notnull" json:"name,omitempty"`
	Email        string    `bun:"email,notnull,unique" json:"email,omitempty"`
	Phone        string    `bun:"phone_number" json:"phone_number,omitempty"`
	PasswordHash string    `bun:"password_hash" json:"-"`

	ValidatedAt               *time.Time `bun:"validated_at,nullzero" json:"validated_at,omitempty"`
	VerificationCode          *string    `bun:"verification_code,nullzero" json:"-"`
	VerificationCodeExpiresAt *time.Time `bun:"verification_code_expires_at,nullzero" json:"-"`

	PasswordResetToken          *string    `bun:"password_reset_token,nullzero" json:"-"`
	PasswordResetTokenExpiresAt *time.Time `bun:"password_reset_token_expires_at,nullzero" json:"-"`

	LoginAttempts  int        `bun:"login_attempts" json:"login_attempts,omitempty"`
	LoginAttemptAt *time.Time `bun:"login_attempt_at" json:"login_attempt_at,omitempty"`
	LoggedInAt     *time.Time `bun:"loggedin_at" json:"loggedin_at,omitempty"`

	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// IsVerified reports whether the user completed email verification
func (u *User) IsVerified() bool {
	return u != nil && u.ValidatedAt != nil
}

// HasPendingVerification reports whether a verification code is outstanding
func (u *User) HasPendingVerification() bool {
	return u != nil && u.VerificationCode != nil && u.VerificationCodeExpiresAt != nil
}

// HasPendingReset reports whether a password reset token is outstanding
func (u *User) HasPendingReset() bool {
	return u != nil && u.PasswordResetToken != nil && u.PasswordResetTokenExpiresAt != nil
}

// RegisteredAt is when the account was created
func (u *User) RegisteredAt() *time.Time {
	if u == nil {
		return nil
	}
	return u.CreatedAt
}

// AuthPayload pairs a signed bearer token with the user it identifies. It is
// the return shape of SignUp, SignIn, and VerifyEmail.
type AuthPayload struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}
