package accounts

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// The guarded updates below are the concurrency contract of the store: each
// one matches only while the record still holds the expected code or token,
// so a resend racing a confirm (or two resets racing each other) resolves to
// exactly one winner and the loser sees a not-found error.

var setVerificationCodeSQL = `UPDATE "users" AS "usr"
SET
	"verification_code" = ?,
	"verification_code_expires_at" = ?,
	"updated_at" = CURRENT_TIMESTAMP
WHERE
	"usr"."deleted_at" IS NULL
AND "usr"."validated_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

var markVerifiedSQL = `UPDATE "users" AS "usr"
SET
	"verification_code" = NULL,
	"verification_code_expires_at" = NULL,
	"validated_at" = ?,
	"updated_at" = CURRENT_TIMESTAMP
WHERE
	"usr"."deleted_at" IS NULL
AND "usr"."validated_at" IS NULL
AND "usr"."verification_code" = ?
AND (
	"usr"."id" = ?
) RETURNING *;`

var setResetTokenSQL = `UPDATE "users" AS "usr"
SET
	"password_reset_token" = ?,
	"password_reset_token_expires_at" = ?,
	"updated_at" = CURRENT_TIMESTAMP
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

var resetPasswordSQL = `UPDATE "users" AS "usr"
SET
	"password_hash" = ?,
	"password_reset_token" = NULL,
	"password_reset_token_expires_at" = NULL,
	"updated_at" = CURRENT_TIMESTAMP
WHERE
	"usr"."deleted_at" IS NULL
AND "usr"."password_reset_token" = ?
AND (
	"usr"."id" = ?
) RETURNING *;`

// BunUserStore is the Bun-backed UserStore reference implementation
type BunUserStore struct {
	repo repository.Repository[*User]
	db   *bun.DB
}

var _ UserStore = (*BunUserStore)(nil)

// NewBunUserStore creates a UserStore over the given database handle
func NewBunUserStore(db *bun.DB) *BunUserStore {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &BunUserStore{
		repo: repo,
		db:   db,
	}
}

func (s *BunUserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.findByColumn(ctx, "email", strings.TrimSpace(email))
}

func (s *BunUserStore) FindByResetToken(ctx context.Context, token string) (*User, error) {
	return s.findByColumn(ctx, "password_reset_token", token)
}

func (s *BunUserStore) findByColumn(ctx context.Context, column, value string) (*User, error) {
	record := &User{}

	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias."+column+" = ?", value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, recordNotFound(map[string]any{
				"column": column,
			})
		}
		return nil, err
	}

	return record, nil
}

func (s *BunUserStore) Create(ctx context.Context, record *User) (*User, error) {
	prepareUserDefaults(record)

	created, err := s.repo.CreateTx(ctx, s.db, record)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, goerrors.Wrap(err, goerrors.CategoryConflict, "email is already registered")
		}
		return nil, err
	}

	return created, nil
}

func (s *BunUserStore) SetVerificationCode(ctx context.Context, id uuid.UUID, code string, expiresAt time.Time) (*User, error) {
	return s.guardedUpdate(ctx, id, setVerificationCodeSQL, code, expiresAt, id.String())
}

func (s *BunUserStore) MarkVerified(ctx context.Context, id uuid.UUID, code string, validatedAt time.Time) (*User, error) {
	return s.guardedUpdate(ctx, id, markVerifiedSQL, validatedAt, code, id.String())
}

func (s *BunUserStore) SetResetToken(ctx context.Context, id uuid.UUID, token string, expiresAt time.Time) (*User, error) {
	return s.guardedUpdate(ctx, id, setResetTokenSQL, token, expiresAt, id.String())
}

func (s *BunUserStore) ResetPassword(ctx context.Context, id uuid.UUID, token, passwordHash string) (*User, error) {
	return s.guardedUpdate(ctx, id, resetPasswordSQL, passwordHash, token, id.String())
}

func (s *BunUserStore) guardedUpdate(ctx context.Context, id uuid.UUID, sql string, args ...any) (*User, error) {
	res, err := s.repo.RawTx(ctx, s.db, sql, args...)
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, recordNotFound(map[string]any{
			"id": id.String(),
		})
	}

	return res[0], nil
}

func (s *BunUserStore) TrackSuccessfulLogin(ctx context.Context, user *User) error {
	// NOTE: Updating using the ORM fails due to a bug, it wont reset
	// login_attempt_at, login_attempts fields.
	loggedInAt := time.Now()
	_, err := s.db.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"loggedin_at" = ?,
			"login_attempt_at" = NULL,
			"login_attempts" = 0
		WHERE
			("usr".id = ?)
			AND "usr"."deleted_at" IS NULL;
	`, loggedInAt, user.ID).Exec(ctx)

	return err
}

func (s *BunUserStore) TrackAttemptedLogin(ctx context.Context, user *User) error {
	// Same raw path as TrackSuccessfulLogin, see NOTE above.
	attemptAt := time.Now()
	_, err := s.db.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"login_attempt_at" = ?,
			"login_attempts" = ?
		WHERE
			("usr".id = ?)
			AND "usr"."deleted_at" IS NULL;
	`, attemptAt, user.LoginAttempts+1, user.ID).Exec(ctx)

	return err
}

// recordNotFound builds the miss error every lookup and guarded update
// returns. The flows detect misses through goerrors.IsNotFound, so the
// category has to be the canonical not-found one rather than the repository
// library's own.
func recordNotFound(metadata map[string]any) error {
	return goerrors.New("record not found", goerrors.CategoryNotFound).
		WithTextCode("RECORD_NOT_FOUND").
		WithCode(goerrors.CodeNotFound).
		WithMetadata(metadata)
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if !record.Role.IsValid() {
		record.Role = RoleMember
	}
}

// isUniqueViolation walks the unwrap chain because the repository wraps the
// driver error in its own message, which does not carry the constraint text.
func isUniqueViolation(err error) bool {
	for ; err != nil; err = stderrors.Unwrap(err) {
		msg := err.Error()
		if strings.Contains(msg, "UNIQUE constraint failed") ||
			strings.Contains(msg, "duplicate key value") {
			return true
		}
	}
	return false
}
