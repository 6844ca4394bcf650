package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clipshare/backend/internal/apperr"
	"github.com/clipshare/backend/internal/auth"
	"github.com/clipshare/backend/internal/logging"
	"github.com/clipshare/backend/internal/media"
	"github.com/clipshare/backend/internal/metrics"
	"github.com/clipshare/backend/internal/models"
)

const (
	maxUploadBytes     = 25 << 20
	maxMultipartMemory = 8 << 20
	avatarField        = "avatar"
	coverImageField    = "coverImage"
	outcomeSuccess     = "success"
	outcomeFailure     = "failure"
)

// AccountHandler implements the /api/v1/users endpoints.
type AccountHandler struct {
	Credentials  CredentialService
	Tokens       TokenIssuer
	Profiles     ChannelProfiles
	History      WatchHistory
	Uploader     AssetUploader
	Metrics      metrics.Recorder
	UploadDir    string
	CookieSecure bool
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User         models.PublicAccount `json:"user"`
	AccessToken  string               `json:"accessToken"`
	RefreshToken string               `json:"refreshToken"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type updateAccountRequest struct {
	Username string `json:"username"`
	FullName string `json:"fullName"`
}

// Register handles POST /register (multipart).
func (h AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.parseMultipart(w, r); err != nil {
		h.authFailed(w, r, "register", err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	in := auth.RegisterInput{
		Username: r.FormValue("username"),
		Email:    r.FormValue("email"),
		FullName: r.FormValue("fullName"),
		Password: r.FormValue("password"),
	}.Normalize()
	if err := in.Validate(); err != nil {
		h.authFailed(w, r, "register", err)
		return
	}
	if err := h.Credentials.CheckAvailable(ctx, in.Username, in.Email); err != nil {
		h.authFailed(w, r, "register", err)
		return
	}

	avatarURL, err := h.uploadPart(ctx, r, avatarField, true)
	if err != nil {
		h.authFailed(w, r, "register", err)
		return
	}
	coverURL, err := h.uploadPart(ctx, r, coverImageField, false)
	if err != nil {
		h.authFailed(w, r, "register", err)
		return
	}
	in.AvatarURL, in.CoverURL = avatarURL, coverURL

	account, err := h.Credentials.Register(ctx, in)
	if err != nil {
		h.authFailed(w, r, "register", err)
		return
	}

	h.recorder().RecordAuthEvent("register", outcomeSuccess)
	logging.FromContext(ctx).Info("account registered", "account_id", account.ID)
	respond(ctx, w, http.StatusCreated, "user registered successfully", account)
}

// Login handles POST /login.
func (h AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.authFailed(w, r, "login", err)
		return
	}

	identifier := req.Username
	if strings.TrimSpace(identifier) == "" {
		identifier = req.Email
	}

	account, err := h.Credentials.Authenticate(ctx, identifier, req.Password)
	if err != nil {
		h.authFailed(w, r, "login", err)
		return
	}

	pair, err := h.Tokens.IssuePair(ctx, account)
	if err != nil {
		h.authFailed(w, r, "login", err)
		return
	}

	h.setTokenCookies(w, pair)
	h.recorder().RecordAuthEvent("login", outcomeSuccess)
	respond(ctx, w, http.StatusOK, "user logged in successfully", loginResponse{
		User:         account.Public(),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// Logout handles POST /logout.
func (h AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, _ := auth.IdentityFromContext(ctx)

	if err := h.Tokens.Revoke(ctx, identity.AccountID); err != nil {
		h.authFailed(w, r, "logout", err)
		return
	}

	h.clearTokenCookies(w)
	h.recorder().RecordAuthEvent("logout", outcomeSuccess)
	respond(ctx, w, http.StatusOK, "user logged out", struct{}{})
}

// RefreshToken handles POST /refresh-token. The cookie wins over the body.
func (h AccountHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var presented string
	if cookie, err := r.Cookie(auth.RefreshCookie); err == nil {
		presented = strings.TrimSpace(cookie.Value)
	}
	if presented == "" && r.Body != nil {
		var req refreshRequest
		if err := decodeJSON(r, &req); err == nil {
			presented = strings.TrimSpace(req.RefreshToken)
		}
	}

	pair, _, err := h.Tokens.Rotate(ctx, presented)
	if err != nil {
		h.authFailed(w, r, "refresh", err)
		return
	}

	h.setTokenCookies(w, pair)
	h.recorder().RecordAuthEvent("refresh", outcomeSuccess)
	respond(ctx, w, http.StatusOK, "access token refreshed", refreshResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// ChangePassword handles POST /change-password.
func (h AccountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, _ := auth.IdentityFromContext(ctx)

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	if err := h.Credentials.ChangePassword(ctx, identity.AccountID, req.OldPassword, req.NewPassword); err != nil {
		respondError(w, r, err)
		return
	}

	respond(ctx, w, http.StatusOK, "password changed successfully", struct{}{})
}

// UpdateAccount handles PATCH /update-account.
func (h AccountHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, _ := auth.IdentityFromContext(ctx)

	var req updateAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	account, err := h.Credentials.UpdateDetails(ctx, identity.AccountID, req.Username, req.FullName)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respond(ctx, w, http.StatusOK, "account details updated successfully", account)
}

// UpdateAvatar handles PATCH /update-avatar (multipart).
func (h AccountHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.replaceAsset(w, r, avatarField, h.Credentials.UpdateAvatar, "avatar updated successfully")
}

// UpdateCoverImage handles PATCH /update-cover-image (multipart).
func (h AccountHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.replaceAsset(w, r, coverImageField, h.Credentials.UpdateCover, "cover image updated successfully")
}

// Details handles GET /details.
func (h AccountHandler) Details(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	respond(r.Context(), w, http.StatusOK, "current user fetched successfully", identity)
}

// ChannelProfile handles GET /c/{username}.
func (h AccountHandler) ChannelProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, _ := auth.IdentityFromContext(ctx)

	profile, err := h.Profiles.GetChannelProfile(ctx, chi.URLParam(r, "username"), identity.AccountID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respond(ctx, w, http.StatusOK, "user channel fetched successfully", profile)
}

// WatchHistory handles GET /history.
func (h AccountHandler) WatchHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, _ := auth.IdentityFromContext(ctx)

	entries, err := h.History.GetWatchHistory(ctx, identity.AccountID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respond(ctx, w, http.StatusOK, "watch history fetched successfully", entries)
}

// TooManyRequests renders the rate limiter rejection.
func (h AccountHandler) TooManyRequests(w http.ResponseWriter, r *http.Request) {
	h.recorder().RecordAuthEvent("rate_limit", outcomeFailure)
	respondError(w, r, apperr.TooManyRequests("too many requests, try again later"))
}

func (h AccountHandler) replaceAsset(
	w http.ResponseWriter,
	r *http.Request,
	field string,
	update func(ctx context.Context, accountID, url string) (models.PublicAccount, error),
	message string,
) {
	ctx := r.Context()
	identity, _ := auth.IdentityFromContext(ctx)

	if err := h.parseMultipart(w, r); err != nil {
		respondError(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	url, err := h.uploadPart(ctx, r, field, true)
	if err != nil {
		respondError(w, r, err)
		return
	}

	account, err := update(ctx, identity.AccountID, url)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respond(ctx, w, http.StatusOK, message, account)
}

func (h AccountHandler) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.Validation("upload exceeds size limit")
		}
		return apperr.Validation("invalid multipart body")
	}
	return nil
}

// uploadPart stages the named file part on disk and hands it to the uploader.
// It returns "" with no error when an optional part is absent.
func (h AccountHandler) uploadPart(ctx context.Context, r *http.Request, field string, required bool) (string, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		if required {
			return "", apperr.Validation(field + " file is required")
		}
		return "", nil
	}
	if err != nil {
		return "", apperr.Validation("invalid " + field + " upload")
	}
	defer file.Close()

	local, err := media.SaveTemp(h.UploadDir, header.Filename, file)
	if err != nil {
		return "", apperr.Internal("failed to stage upload", err)
	}

	url, err := h.Uploader.UploadAsset(ctx, local)
	if err != nil {
		logging.FromContext(ctx).Warn("asset upload failed", "field", field, "error", err)
		return "", apperr.Validation("error while uploading " + field)
	}
	return url, nil
}

func (h AccountHandler) authFailed(w http.ResponseWriter, r *http.Request, event string, err error) {
	h.recorder().RecordAuthEvent(event, outcomeFailure)
	respondError(w, r, err)
}

func (h AccountHandler) setTokenCookies(w http.ResponseWriter, pair models.TokenPair) {
	http.SetCookie(w, h.cookie(auth.AccessCookie, pair.AccessToken, h.Tokens.AccessTTL()))
	http.SetCookie(w, h.cookie(auth.RefreshCookie, pair.RefreshToken, h.Tokens.RefreshTTL()))
}

func (h AccountHandler) clearTokenCookies(w http.ResponseWriter) {
	http.SetCookie(w, h.cookie(auth.AccessCookie, "", -1))
	http.SetCookie(w, h.cookie(auth.RefreshCookie, "", -1))
}

func (h AccountHandler) cookie(name, value string, ttl time.Duration) *http.Cookie {
	maxAge := int(ttl / time.Second)
	if ttl < 0 {
		maxAge = -1
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (h AccountHandler) recorder() metrics.Recorder {
	if h.Metrics == nil {
		return metrics.Nop{}
	}
	return h.Metrics
}
