package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/clipshare/backend/internal/auth"
	"github.com/clipshare/backend/internal/models"
)

// CredentialService captures the account operations required by the handlers.
type CredentialService interface {
	CheckAvailable(ctx context.Context, username, email string) error
	Register(ctx context.Context, in auth.RegisterInput) (models.PublicAccount, error)
	Authenticate(ctx context.Context, identifier, password string) (models.Account, error)
	ChangePassword(ctx context.Context, accountID, oldPassword, newPassword string) error
	UpdateDetails(ctx context.Context, accountID, username, fullName string) (models.PublicAccount, error)
	UpdateAvatar(ctx context.Context, accountID, avatarURL string) (models.PublicAccount, error)
	UpdateCover(ctx context.Context, accountID, coverURL string) (models.PublicAccount, error)
}

// TokenIssuer issues, rotates and revokes token pairs.
type TokenIssuer interface {
	IssuePair(ctx context.Context, account models.Account) (models.TokenPair, error)
	Rotate(ctx context.Context, presented string) (models.TokenPair, models.Account, error)
	Revoke(ctx context.Context, accountID string) error
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}

// Authenticator guards routes that need a caller identity.
type Authenticator interface {
	Require(onError auth.ErrorWriter) func(http.Handler) http.Handler
}

// ChannelProfiles resolves public channel views.
type ChannelProfiles interface {
	GetChannelProfile(ctx context.Context, username, viewerID string) (models.ChannelProfile, error)
}

// WatchHistory resolves an account's watch history.
type WatchHistory interface {
	GetWatchHistory(ctx context.Context, accountID string) ([]models.VideoWithOwner, error)
}

// AssetUploader moves a local file into the asset store and returns its URL.
type AssetUploader interface {
	UploadAsset(ctx context.Context, localPath string) (string, error)
}
