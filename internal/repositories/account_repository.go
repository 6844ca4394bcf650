package repositories

import (
	"context"

	"github.com/clipshare/backend/internal/models"
)

// AccountRepository defines the data access contract for accounts.
type AccountRepository interface {
	// Create inserts the account; ErrConflict when the username or email is taken.
	Create(ctx context.Context, account models.Account) error
	FindByID(ctx context.Context, id string) (models.Account, error)
	FindByUsername(ctx context.Context, username string) (models.Account, error)
	FindByEmail(ctx context.Context, email string) (models.Account, error)
	UpdateDetails(ctx context.Context, id, username, fullName string) (models.Account, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateAvatar(ctx context.Context, id, avatarURL string) (models.Account, error)
	UpdateCover(ctx context.Context, id, coverURL string) (models.Account, error)
	// SetRefreshToken overwrites the stored refresh token. An empty token clears it.
	SetRefreshToken(ctx context.Context, id, token string) error
	// SwapRefreshToken replaces the stored refresh token only when it still
	// equals expected. It reports whether the swap happened.
	SwapRefreshToken(ctx context.Context, id, expected, next string) (bool, error)
	// WatchHistory returns the account's video references in stored order.
	WatchHistory(ctx context.Context, id string) ([]string, error)
}
