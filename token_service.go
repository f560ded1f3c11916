package accounts

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// TokenServiceImpl implements the TokenService interface. The signing key is
// never held on the struct: every sign and validate fetches it through the
// SecretCache, so key rotation at the origin takes effect within the cache
// TTL. We run a single-key policy; tokens signed with a rotated-out key fail
// validation immediately.
type TokenServiceImpl struct {
	secrets    *SecretCache
	secretName string
	expiration time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	logger     Logger
	clock      func() time.Time
}

// NewTokenService creates a new TokenService instance
func NewTokenService(secrets *SecretCache, cfg Config, logger Logger) *TokenServiceImpl {
	if logger == nil {
		logger = defLogger{}
	}

	secretName := DefaultSigningSecretName
	expiration := DefaultTokenExpiration
	issuer := ""
	var audience jwt.ClaimStrings

	if cfg != nil {
		secretName = cfg.GetSigningSecretName()
		if cfg.GetTokenExpiration() > 0 {
			expiration = cfg.GetTokenExpiration()
		}
		issuer = cfg.GetIssuer()
		audience = cfg.GetAudience()
	}

	return &TokenServiceImpl{
		secrets:    secrets,
		secretName: secretName,
		expiration: time.Duration(expiration) * time.Hour,
		issuer:     issuer,
		audience:   audience,
		logger:     logger,
		clock:      time.Now,
	}
}

// WithClock overrides the time source used for the iat and exp claims
func (ts *TokenServiceImpl) WithClock(clock func() time.Time) *TokenServiceImpl {
	if clock != nil {
		ts.clock = clock
	}
	return ts
}

// Generate creates a JWT token for the given identity
func (ts *TokenServiceImpl) Generate(ctx context.Context, identity Identity) (string, error) {
	now := ts.clock()
	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   identity.ID(),
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.expiration)),
		},
		UID:       identity.ID(),
		UserEmail: identity.Email(),
		UserName:  identity.Name(),
		UserRole:  identity.Role(),
	}

	return ts.SignClaims(ctx, claims)
}

// SignClaims signs arbitrary JWT claims using the cached signing key.
func (ts *TokenServiceImpl) SignClaims(ctx context.Context, claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	signingKey, err := ts.secrets.JWTSecret(ctx, ts.secretName)
	if err != nil {
		return "", err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Validate parses and validates a token string, returning structured claims.
// Every failure mode collapses to ErrInvalidToken so callers cannot
// distinguish a forged signature from an expired or malformed token.
func (ts *TokenServiceImpl) Validate(ctx context.Context, tokenString string) (AuthClaims, error) {
	signingKey, err := ts.secrets.JWTSecret(ctx, ts.secretName)
	if err != nil {
		return nil, err
	}

	parserOptions := make([]jwt.ParserOption, 0, 3)
	parserOptions = append(parserOptions, jwt.WithTimeFunc(ts.clock))
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService validate encountered unexpected signing method: %v", t.Header["alg"])
			return nil, ErrInvalidToken
		}
		return signingKey, nil
	}, parserOptions...)

	if err != nil {
		ts.logger.Debug("TokenService validate rejected token: %v", err)
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}

var _ TokenService = (*TokenServiceImpl)(nil)
