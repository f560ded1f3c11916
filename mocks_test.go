package accounts_test

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/goliatone/go-accounts"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

func notFoundErr() error {
	return goerrors.New("record not found", goerrors.CategoryNotFound).
		WithCode(goerrors.CodeNotFound)
}

// memStore is an in-memory UserStore with the same guarded-update semantics
// the Bun implementation provides, so flow tests can exercise multi-step
// scenarios without a database.
type memStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*accounts.User
}

func newMemStore() *memStore {
	return &memStore{users: map[uuid.UUID]*accounts.User{}}
}

func (s *memStore) snapshot(u *accounts.User) *accounts.User {
	clone := *u
	return &clone
}

func (s *memStore) FindByEmail(ctx context.Context, email string) (*accounts.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == email {
			return s.snapshot(u), nil
		}
	}
	return nil, notFoundErr()
}

func (s *memStore) FindByResetToken(ctx context.Context, token string) (*accounts.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.PasswordResetToken != nil && *u.PasswordResetToken == token {
			return s.snapshot(u), nil
		}
	}
	return nil, notFoundErr()
}

func (s *memStore) Create(ctx context.Context, user *accounts.User) (*accounts.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == user.Email {
			return nil, goerrors.New("email is already registered", goerrors.CategoryConflict)
		}
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now()
	user.CreatedAt = &now

	s.users[user.ID] = s.snapshot(user)
	return s.snapshot(user), nil
}

func (s *memStore) SetVerificationCode(ctx context.Context, id uuid.UUID, code string, expiresAt time.Time) (*accounts.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok || u.ValidatedAt != nil {
		return nil, notFoundErr()
	}

	u.VerificationCode = &code
	u.VerificationCodeExpiresAt = &expiresAt
	return s.snapshot(u), nil
}

func (s *memStore) MarkVerified(ctx context.Context, id uuid.UUID, code string, validatedAt time.Time) (*accounts.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok || u.ValidatedAt != nil || u.VerificationCode == nil || *u.VerificationCode != code {
		return nil, notFoundErr()
	}

	u.VerificationCode = nil
	u.VerificationCodeExpiresAt = nil
	u.ValidatedAt = &validatedAt
	return s.snapshot(u), nil
}

func (s *memStore) SetResetToken(ctx context.Context, id uuid.UUID, token string, expiresAt time.Time) (*accounts.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, notFoundErr()
	}

	u.PasswordResetToken = &token
	u.PasswordResetTokenExpiresAt = &expiresAt
	return s.snapshot(u), nil
}

func (s *memStore) ResetPassword(ctx context.Context, id uuid.UUID, token, passwordHash string) (*accounts.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok || u.PasswordResetToken == nil || *u.PasswordResetToken != token {
		return nil, notFoundErr()
	}

	u.PasswordHash = passwordHash
	u.PasswordResetToken = nil
	u.PasswordResetTokenExpiresAt = nil
	return s.snapshot(u), nil
}

func (s *memStore) TrackAttemptedLogin(ctx context.Context, user *accounts.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[user.ID]
	if !ok {
		return notFoundErr()
	}

	u.LoginAttempts = user.LoginAttempts + 1
	now := time.Now()
	u.LoginAttemptAt = &now
	return nil
}

func (s *memStore) TrackSuccessfulLogin(ctx context.Context, user *accounts.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[user.ID]
	if !ok {
		return notFoundErr()
	}

	now := time.Now()
	u.LoggedInAt = &now
	u.LoginAttemptAt = nil
	u.LoginAttempts = 0
	return nil
}

// get returns the live record for assertions on stored state
func (s *memStore) get(id uuid.UUID) *accounts.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil
	}
	return s.snapshot(u)
}

// capturingMailer records outgoing mail and optionally fails every send
type capturingMailer struct {
	mu       sync.Mutex
	sent     []sentMail
	failWith error
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

func (m *capturingMailer) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWith != nil {
		return m.failWith
	}

	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *capturingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *capturingMailer) last() (sentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sent) == 0 {
		return sentMail{}, false
	}
	return m.sent[len(m.sent)-1], true
}

// staticSecretSource serves fixed secret blobs and counts origin fetches
type staticSecretSource struct {
	mu       sync.Mutex
	secrets  map[string]string
	fetches  map[string]int
	failWith error
	delay    time.Duration
}

func newStaticSecretSource(secrets map[string]string) *staticSecretSource {
	return &staticSecretSource{
		secrets: secrets,
		fetches: map[string]int{},
	}
}

func newJWTSecretSource(secret string) *staticSecretSource {
	return newStaticSecretSource(map[string]string{
		accounts.DefaultSigningSecretName: `{"jwt_secret": "` + secret + `"}`,
	})
}

func (s *staticSecretSource) FetchSecret(ctx context.Context, name string) (json.RawMessage, error) {
	s.mu.Lock()
	s.fetches[name]++
	failWith := s.failWith
	blob, ok := s.secrets[name]
	delay := s.delay
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	if failWith != nil {
		return nil, failWith
	}

	if !ok {
		return nil, notFoundErr()
	}

	return json.RawMessage(blob), nil
}

func (s *staticSecretSource) fetchCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches[name]
}

func (s *staticSecretSource) set(name, blob string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[name] = blob
}

func (s *staticSecretSource) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

// MockDispatcher implements accounts.NotificationDispatcher
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Send(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

// silentLogger drops everything, used to keep test output quiet
type silentLogger struct{}

func (silentLogger) Debug(string, ...any) {}
func (silentLogger) Info(string, ...any)  {}
func (silentLogger) Warn(string, ...any)  {}
func (silentLogger) Error(string, ...any) {}

// fakeClock is a controllable time source
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
