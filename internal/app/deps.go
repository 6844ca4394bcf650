package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/clipshare/backend/internal/auth"
	"github.com/clipshare/backend/internal/channels"
	"github.com/clipshare/backend/internal/config"
	"github.com/clipshare/backend/internal/db"
	"github.com/clipshare/backend/internal/handlers"
	"github.com/clipshare/backend/internal/history"
	"github.com/clipshare/backend/internal/media"
	"github.com/clipshare/backend/internal/metrics"
	"github.com/clipshare/backend/internal/middleware"
	"github.com/clipshare/backend/internal/repositories"
	"github.com/clipshare/backend/internal/storage"
)

const assetPrefix = "assets"

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config, registry *prometheus.Registry) (handlers.Dependencies, error) {
	accounts := repositories.NewPostgresAccountRepository(pool)
	videos := repositories.NewPostgresVideoRepository(pool)
	subscriptions := repositories.NewPostgresSubscriptionRepository(pool)

	tokens, err := auth.NewTokenService(accounts, auth.TokenOptions{
		AccessSecret:  cfg.Tokens.AccessSecret,
		AccessTTL:     cfg.Tokens.AccessTTL,
		RefreshSecret: cfg.Tokens.RefreshSecret,
		RefreshTTL:    cfg.Tokens.RefreshTTL,
	})
	if err != nil {
		return handlers.Dependencies{}, fmt.Errorf("configure tokens: %w", err)
	}

	assets, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
	if err != nil {
		return handlers.Dependencies{}, fmt.Errorf("configure asset storage: %w", err)
	}

	collector := metrics.NewCollector(registry)

	return handlers.Dependencies{
		Credentials:    auth.NewCredentialStore(accounts, cfg.BcryptCost),
		Tokens:         tokens,
		Guard:          auth.NewGuard(tokens),
		Profiles:       channels.NewProfileAggregator(accounts, subscriptions),
		History:        history.NewAggregator(accounts, videos),
		Uploader:       media.NewUploader(assets, assetPrefix),
		AuthLimiter:    middleware.NewIPRateLimiter(cfg.AuthLimit.Requests, cfg.AuthLimit.Window, cfg.AuthLimit.Burst, 10*time.Minute),
		Metrics:        collector,
		MetricsHandler: metrics.Handler(registry),
		UploadDir:      cfg.UploadDir,
		CookieSecure:   cfg.CookieSecure,
		TrustProxy:     cfg.TrustProxy,
	}, nil
}
