package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/clipshare/backend/internal/apperr"
	"github.com/clipshare/backend/internal/logging"
	"github.com/clipshare/backend/internal/models"
	"github.com/clipshare/backend/internal/repositories"
)

var (
	// ErrInvalidToken indicates a malformed token or a signature mismatch.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired indicates a well-formed token past its expiry.
	ErrTokenExpired = errors.New("token expired")
)

// TokenOptions configures signing secrets and token lifetimes.
type TokenOptions struct {
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
}

type accessClaims struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	jwt.RegisteredClaims
}

// TokenService issues, verifies, rotates and revokes access/refresh pairs.
// Only the refresh token is stateful: its current value lives on the account.
type TokenService struct {
	accounts      repositories.AccountRepository
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration

	NowFunc func() time.Time
}

// NewTokenService constructs a TokenService. Both secrets are required and
// must differ so a refresh token can never pass as an access token.
func NewTokenService(accounts repositories.AccountRepository, opts TokenOptions) (*TokenService, error) {
	if accounts == nil {
		return nil, errors.New("auth: account repository must not be nil")
	}
	if opts.AccessSecret == "" || opts.RefreshSecret == "" {
		return nil, errors.New("auth: token secrets must be provided")
	}
	if opts.AccessSecret == opts.RefreshSecret {
		return nil, errors.New("auth: access and refresh secrets must differ")
	}
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 15 * time.Minute
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 240 * time.Hour
	}

	return &TokenService{
		accounts:      accounts,
		accessSecret:  []byte(opts.AccessSecret),
		refreshSecret: []byte(opts.RefreshSecret),
		accessTTL:     opts.AccessTTL,
		refreshTTL:    opts.RefreshTTL,
	}, nil
}

// AccessTTL reports the lifetime of issued access tokens.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL reports the lifetime of issued refresh tokens.
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

// IssuePair mints a fresh pair and records the refresh token on the account,
// replacing whatever was stored before.
func (s *TokenService) IssuePair(ctx context.Context, account models.Account) (models.TokenPair, error) {
	if account.ID == "" {
		return models.TokenPair{}, errors.New("auth: account id must be provided")
	}

	pair, err := s.mint(account)
	if err != nil {
		return models.TokenPair{}, apperr.Internal("failed to sign tokens", err)
	}

	if err := s.accounts.SetRefreshToken(ctx, account.ID, pair.RefreshToken); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.TokenPair{}, apperr.NotFound("account not found")
		}
		return models.TokenPair{}, apperr.Internal("failed to persist refresh token", err)
	}

	return pair, nil
}

// Rotate exchanges a refresh token for a new pair. The presented token is
// consumed atomically: of two concurrent calls with the same token at most
// one succeeds.
func (s *TokenService) Rotate(ctx context.Context, presented string) (pair models.TokenPair, account models.Account, err error) {
	ctx, span := logging.StartSpan(ctx, "tokens.rotate")
	defer func() { span.End(err) }()

	presented = strings.TrimSpace(presented)
	if presented == "" {
		return models.TokenPair{}, models.Account{}, apperr.Unauthorized("no credential")
	}

	var claims jwt.RegisteredClaims
	if err := s.parse(presented, s.refreshSecret, &claims); err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return models.TokenPair{}, models.Account{}, apperr.Unauthorized("expired")
		}
		return models.TokenPair{}, models.Account{}, apperr.Unauthorized("invalid token")
	}

	account, err = s.accounts.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.TokenPair{}, models.Account{}, apperr.Unauthorized("invalid token")
		}
		return models.TokenPair{}, models.Account{}, apperr.Internal("failed to load account", err)
	}

	if subtle.ConstantTimeCompare([]byte(account.RefreshToken), []byte(presented)) != 1 {
		return models.TokenPair{}, models.Account{}, apperr.Unauthorized("expired or already used")
	}

	pair, err = s.mint(account)
	if err != nil {
		return models.TokenPair{}, models.Account{}, apperr.Internal("failed to sign tokens", err)
	}

	swapped, err := s.accounts.SwapRefreshToken(ctx, account.ID, presented, pair.RefreshToken)
	if err != nil {
		return models.TokenPair{}, models.Account{}, apperr.Internal("failed to rotate refresh token", err)
	}
	if !swapped {
		return models.TokenPair{}, models.Account{}, apperr.Unauthorized("expired or already used")
	}

	account.RefreshToken = pair.RefreshToken
	logging.FromContext(ctx).Debug("refresh token rotated", "account_id", account.ID)
	return pair, account, nil
}

// Revoke clears the stored refresh token so it can no longer be rotated.
// Access tokens already issued stay valid until they expire.
func (s *TokenService) Revoke(ctx context.Context, accountID string) error {
	if err := s.accounts.SetRefreshToken(ctx, accountID, ""); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperr.NotFound("account not found")
		}
		return apperr.Internal("failed to revoke refresh token", err)
	}
	return nil
}

// VerifyAccess validates an access token without touching the store.
// It returns ErrTokenExpired or an error wrapping ErrInvalidToken on failure.
func (s *TokenService) VerifyAccess(token string) (models.Identity, error) {
	var claims accessClaims
	if err := s.parse(token, s.accessSecret, &claims); err != nil {
		return models.Identity{}, err
	}

	return models.Identity{
		AccountID: claims.Subject,
		Username:  claims.Username,
		Email:     claims.Email,
		FullName:  claims.FullName,
	}, nil
}

func (s *TokenService) mint(account models.Account) (models.TokenPair, error) {
	now := s.now()
	accessExpires := now.Add(s.accessTTL)
	refreshExpires := now.Add(s.refreshTTL)

	access := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims{
		Username: account.Username,
		Email:    account.Email,
		FullName: account.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExpires),
		},
	})
	accessToken, err := access.SignedString(s.accessSecret)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   account.ID,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(refreshExpires),
	})
	refreshToken, err := refresh.SignedString(s.refreshSecret)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return models.TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpires,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExpires,
	}, nil
}

func (s *TokenService) parse(token string, secret []byte, claims jwt.Claims) error {
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return nil
}

func (s *TokenService) now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc()
	}
	return time.Now().UTC()
}
