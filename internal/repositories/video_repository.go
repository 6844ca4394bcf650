package repositories

import (
	"context"

	"github.com/clipshare/backend/internal/models"
)

// VideoRepository exposes data access for uploaded videos.
type VideoRepository interface {
	Create(ctx context.Context, video models.Video) error
	// ResolveWithOwners loads the referenced videos joined with their owners,
	// keyed by video id. Unknown ids are absent from the result.
	ResolveWithOwners(ctx context.Context, ids []string) (map[string]models.VideoWithOwner, error)
}
