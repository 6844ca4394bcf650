package repositories

import (
	"context"

	"github.com/clipshare/backend/internal/models"
)

// SubscriptionRepository exposes read access to subscription edges.
type SubscriptionRepository interface {
	// Create stores an edge; ErrConflict when the ordered pair already exists.
	Create(ctx context.Context, edge models.SubscriptionEdge) error
	CountSubscribers(ctx context.Context, channelID string) (int64, error)
	CountSubscriptions(ctx context.Context, subscriberID string) (int64, error)
	IsSubscribed(ctx context.Context, subscriberID, channelID string) (bool, error)
}
