// Package history assembles an account's watch history for display.
package history

import (
	"context"
	"errors"

	"github.com/clipshare/backend/internal/apperr"
	"github.com/clipshare/backend/internal/logging"
	"github.com/clipshare/backend/internal/models"
	"github.com/clipshare/backend/internal/repositories"
)

// Aggregator resolves stored video references into videos with owners.
type Aggregator struct {
	accounts repositories.AccountRepository
	videos   repositories.VideoRepository
}

// NewAggregator constructs an Aggregator.
func NewAggregator(accounts repositories.AccountRepository, videos repositories.VideoRepository) *Aggregator {
	return &Aggregator{accounts: accounts, videos: videos}
}

// GetWatchHistory returns the account's watched videos in stored order.
// References to videos that no longer resolve are skipped. The result is
// never nil.
func (a *Aggregator) GetWatchHistory(ctx context.Context, accountID string) (entries []models.VideoWithOwner, err error) {
	ctx, span := logging.StartSpan(ctx, "history.watch")
	defer func() { span.End(err) }()

	refs, err := a.accounts.WatchHistory(ctx, accountID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperr.NotFound("account not found")
		}
		return nil, apperr.Internal("failed to load watch history", err)
	}

	entries = make([]models.VideoWithOwner, 0, len(refs))
	if len(refs) == 0 {
		return entries, nil
	}

	resolved, err := a.videos.ResolveWithOwners(ctx, refs)
	if err != nil {
		return nil, apperr.Internal("failed to resolve watch history", err)
	}

	for _, id := range refs {
		if entry, ok := resolved[id]; ok {
			entries = append(entries, entry)
		}
	}

	if skipped := len(refs) - len(entries); skipped > 0 {
		logging.FromContext(ctx).Debug("skipped unresolved history entries", "account_id", accountID, "skipped", skipped)
	}
	return entries, nil
}
