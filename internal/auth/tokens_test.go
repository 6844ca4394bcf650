package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/clipshare/backend/internal/apperr"
	"github.com/clipshare/backend/internal/models"
	"github.com/clipshare/backend/internal/repositories"
)

type tokenFixture struct {
	tokens   *TokenService
	accounts repositories.AccountRepository
	account  models.Account
	now      time.Time
}

func newTokenFixture(t *testing.T) *tokenFixture {
	t.Helper()

	accounts := repositories.NewMemoryStore().Accounts()
	account := models.Account{ID: "acct-1", Username: "ada", Email: "a@x.com", FullName: "Ada Lovelace"}
	if err := accounts.Create(context.Background(), account); err != nil {
		t.Fatalf("seed account: %v", err)
	}

	tokens, err := NewTokenService(accounts, TokenOptions{
		AccessSecret:  "access-secret",
		AccessTTL:     15 * time.Minute,
		RefreshSecret: "refresh-secret",
		RefreshTTL:    240 * time.Hour,
	})
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}

	f := &tokenFixture{tokens: tokens, accounts: accounts, account: account, now: time.Unix(1_700_000_000, 0).UTC()}
	tokens.NowFunc = func() time.Time { return f.now }
	return f
}

func (f *tokenFixture) stored(t *testing.T) string {
	t.Helper()
	account, err := f.accounts.FindByID(context.Background(), f.account.ID)
	if err != nil {
		t.Fatalf("find account: %v", err)
	}
	return account.RefreshToken
}

func TestNewTokenServiceValidatesSecrets(t *testing.T) {
	accounts := repositories.NewMemoryStore().Accounts()
	if _, err := NewTokenService(accounts, TokenOptions{AccessSecret: "a"}); err == nil {
		t.Fatal("expected missing refresh secret to fail")
	}
	if _, err := NewTokenService(accounts, TokenOptions{AccessSecret: "s", RefreshSecret: "s"}); err == nil {
		t.Fatal("expected identical secrets to fail")
	}
}

func TestIssuePairPersistsRefreshToken(t *testing.T) {
	f := newTokenFixture(t)

	pair, err := f.tokens.IssuePair(context.Background(), f.account)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" || pair.AccessToken == pair.RefreshToken {
		t.Fatalf("unexpected pair %+v", pair)
	}
	if got := f.stored(t); got != pair.RefreshToken {
		t.Fatalf("stored token mismatch: %q", got)
	}
	if !pair.AccessExpiresAt.Equal(f.now.Add(15*time.Minute)) || !pair.RefreshExpiresAt.Equal(f.now.Add(240*time.Hour)) {
		t.Fatalf("unexpected expiries %+v", pair)
	}

	identity, err := f.tokens.VerifyAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("verify access: %v", err)
	}
	want := models.Identity{AccountID: "acct-1", Username: "ada", Email: "a@x.com", FullName: "Ada Lovelace"}
	if identity != want {
		t.Fatalf("identity = %+v want %+v", identity, want)
	}

	again, err := f.tokens.IssuePair(context.Background(), f.account)
	if err != nil {
		t.Fatalf("reissue: %v", err)
	}
	if again.RefreshToken == pair.RefreshToken || f.stored(t) != again.RefreshToken {
		t.Fatal("second login should replace the stored refresh token")
	}
}

func TestVerifyAccessRejections(t *testing.T) {
	f := newTokenFixture(t)
	pair, err := f.tokens.IssuePair(context.Background(), f.account)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := f.tokens.VerifyAccess(pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh token accepted as access token: %v", err)
	}
	if _, err := f.tokens.VerifyAccess(pair.AccessToken + "x"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected tampered token to be invalid got %v", err)
	}
	if _, err := f.tokens.VerifyAccess("garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected malformed token to be invalid got %v", err)
	}

	f.now = f.now.Add(15 * time.Minute)
	if _, err := f.tokens.VerifyAccess(pair.AccessToken); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected expiry at ttl boundary got %v", err)
	}
}

func TestRotateReplacesTokenOnce(t *testing.T) {
	f := newTokenFixture(t)
	ctx := context.Background()

	first, err := f.tokens.IssuePair(ctx, f.account)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	second, account, err := f.tokens.Rotate(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if account.ID != f.account.ID {
		t.Fatalf("unexpected account %+v", account)
	}
	if second.AccessToken == first.AccessToken || second.RefreshToken == first.RefreshToken {
		t.Fatal("rotation within the same second must still yield different tokens")
	}
	if f.stored(t) != second.RefreshToken {
		t.Fatal("stored token not replaced")
	}

	_, _, err = f.tokens.Rotate(ctx, first.RefreshToken)
	appErr, ok := apperr.As(err)
	if !ok || appErr.Kind != apperr.KindUnauthorized || appErr.Message != "expired or already used" {
		t.Fatalf("expected replay rejection got %v", err)
	}
}

func TestRotateRejections(t *testing.T) {
	f := newTokenFixture(t)
	ctx := context.Background()
	pair, err := f.tokens.IssuePair(ctx, f.account)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	cases := []struct {
		name    string
		token   string
		advance time.Duration
		message string
	}{
		{"empty", "", 0, "no credential"},
		{"accessToken", pair.AccessToken, 0, "invalid token"},
		{"garbage", "not.a.jwt", 0, "invalid token"},
		{"expired", pair.RefreshToken, 240 * time.Hour, "expired"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			saved := f.now
			f.now = f.now.Add(tc.advance)
			defer func() { f.now = saved }()

			_, _, err := f.tokens.Rotate(ctx, tc.token)
			appErr, ok := apperr.As(err)
			if !ok || appErr.Kind != apperr.KindUnauthorized || appErr.Message != tc.message {
				t.Fatalf("expected unauthorized %q got %v", tc.message, err)
			}
		})
	}

	if f.stored(t) != pair.RefreshToken {
		t.Fatal("failed rotations must not touch the stored token")
	}
}

func TestRotateUnknownAccount(t *testing.T) {
	f := newTokenFixture(t)
	ghost := models.Account{ID: "ghost", Username: "ghost"}

	pair, err := f.tokens.mint(ghost)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, _, err := f.tokens.Rotate(context.Background(), pair.RefreshToken); !apperr.Is(err, apperr.KindUnauthorized) {
		t.Fatalf("expected unauthorized got %v", err)
	}
}

func TestRotateConcurrentSingleWinner(t *testing.T) {
	f := newTokenFixture(t)
	ctx := context.Background()
	pair, err := f.tokens.IssuePair(ctx, f.account)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	const callers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []models.TokenPair
	)
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			next, _, err := f.tokens.Rotate(ctx, pair.RefreshToken)
			if err != nil {
				if !apperr.Is(err, apperr.KindUnauthorized) {
					t.Errorf("unexpected error kind: %v", err)
				}
				return
			}
			mu.Lock()
			winners = append(winners, next)
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(winners) != 1 {
		t.Fatalf("expected exactly one successful rotation got %d", len(winners))
	}
	if f.stored(t) != winners[0].RefreshToken {
		t.Fatal("stored token does not belong to the winner")
	}
}

func TestRevoke(t *testing.T) {
	f := newTokenFixture(t)
	ctx := context.Background()
	pair, err := f.tokens.IssuePair(ctx, f.account)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if err := f.tokens.Revoke(ctx, f.account.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if f.stored(t) != "" {
		t.Fatal("expected stored token to be cleared")
	}
	if _, _, err := f.tokens.Rotate(ctx, pair.RefreshToken); !apperr.Is(err, apperr.KindUnauthorized) {
		t.Fatalf("revoked token rotated: %v", err)
	}
	if _, err := f.tokens.VerifyAccess(pair.AccessToken); err != nil {
		t.Fatalf("access token should stay valid until expiry: %v", err)
	}
	if err := f.tokens.Revoke(ctx, "missing"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found got %v", err)
	}
}
