package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/clipshare/backend/internal/apperr"
	"github.com/clipshare/backend/internal/metrics"
	"github.com/clipshare/backend/internal/middleware"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Logger         *slog.Logger
	Credentials    CredentialService
	Tokens         TokenIssuer
	Guard          Authenticator
	Profiles       ChannelProfiles
	History        WatchHistory
	Uploader       AssetUploader
	AuthLimiter    middleware.RateLimiter
	Metrics        metrics.Recorder
	MetricsHandler http.Handler
	HealthCheck    func(r *http.Request) error
	UploadDir      string
	CookieSecure   bool
	TrustProxy     bool
}

// NewRouter wires every route behind the request logger.
func NewRouter(deps Dependencies) http.Handler {
	accounts := AccountHandler{
		Credentials:  deps.Credentials,
		Tokens:       deps.Tokens,
		Profiles:     deps.Profiles,
		History:      deps.History,
		Uploader:     deps.Uploader,
		Metrics:      deps.Metrics,
		UploadDir:    deps.UploadDir,
		CookieSecure: deps.CookieSecure,
	}
	health := HealthHandler{Check: deps.HealthCheck}
	limited := func(scope string) func(http.Handler) http.Handler {
		return middleware.RateLimit(deps.AuthLimiter, scope, accounts.TooManyRequests)
	}

	r := chi.NewRouter()
	if deps.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.RequestLogger(deps.Logger, deps.Metrics))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, apperr.NotFound("route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respond(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	r.Get("/healthz", health.Handle)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/api/v1/users", func(r chi.Router) {
		r.With(limited("register")).Post("/register", accounts.Register)
		r.With(limited("login")).Post("/login", accounts.Login)
		r.With(limited("refresh")).Post("/refresh-token", accounts.RefreshToken)

		r.Group(func(r chi.Router) {
			r.Use(deps.Guard.Require(respondError))

			r.Post("/logout", accounts.Logout)
			r.Post("/change-password", accounts.ChangePassword)
			r.Patch("/update-account", accounts.UpdateAccount)
			r.Patch("/update-avatar", accounts.UpdateAvatar)
			r.Patch("/update-cover-image", accounts.UpdateCoverImage)
			r.Get("/details", accounts.Details)
			r.Get("/c/{username}", accounts.ChannelProfile)
			r.Get("/history", accounts.WatchHistory)
		})
	})

	return r
}
