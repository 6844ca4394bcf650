package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/clipshare/backend/internal/config"
)

type fakePool struct{}

func (fakePool) Acquire(context.Context) (*pgxpool.Conn, error) {
	return nil, errors.New("not implemented")
}

func (fakePool) Close() {}

func testConfig() config.Config {
	return config.Config{
		UploadDir:    "/tmp",
		CookieSecure: true,
		TrustProxy:   true,
		Tokens: config.TokenConfig{
			AccessSecret:  "access",
			AccessTTL:     time.Minute,
			RefreshSecret: "refresh",
			RefreshTTL:    time.Hour,
		},
		BcryptCost:  4,
		AuthLimit:   config.RateLimitConfig{Requests: 10, Window: time.Minute, Burst: 5},
		ObjectStore: config.ObjectStoreConfig{Bucket: "test-bucket", Endpoint: "http://localhost:9000", Region: "us-east-1"},
	}
}

func TestBuildDependencies(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	deps, err := buildDependencies(context.Background(), fakePool{}, testConfig(), prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if deps.Credentials == nil || deps.Tokens == nil || deps.Guard == nil {
		t.Fatal("expected authentication services to be configured")
	}
	if deps.Profiles == nil || deps.History == nil {
		t.Fatal("expected aggregators to be configured")
	}
	if deps.Uploader == nil {
		t.Fatal("expected asset uploader to be configured")
	}
	if deps.AuthLimiter == nil || deps.Metrics == nil || deps.MetricsHandler == nil {
		t.Fatal("expected rate limiter and metrics to be configured")
	}
	if deps.Tokens.AccessTTL() != time.Minute || !deps.CookieSecure || !deps.TrustProxy {
		t.Fatalf("configuration not propagated: %+v", deps)
	}
}

func TestBuildDependenciesRejectsBadConfig(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	shared := testConfig()
	shared.Tokens.RefreshSecret = shared.Tokens.AccessSecret
	if _, err := buildDependencies(context.Background(), fakePool{}, shared, prometheus.NewRegistry()); err == nil {
		t.Fatal("expected shared token secret to be rejected")
	}

	noBucket := testConfig()
	noBucket.ObjectStore.Bucket = ""
	if _, err := buildDependencies(context.Background(), fakePool{}, noBucket, prometheus.NewRegistry()); err == nil {
		t.Fatal("expected missing bucket to be rejected")
	}
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	if err := Run(context.Background(), nil); err == nil {
		t.Fatal("expected missing command to fail")
	}
	if err := Run(context.Background(), []string{"launch"}); err == nil {
		t.Fatal("expected unknown command to fail")
	}
}
