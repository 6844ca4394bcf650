// Package channels builds the public channel view of an account.
package channels

import (
	"context"
	"errors"
	"strings"

	"github.com/clipshare/backend/internal/apperr"
	"github.com/clipshare/backend/internal/logging"
	"github.com/clipshare/backend/internal/models"
	"github.com/clipshare/backend/internal/repositories"
)

// ProfileAggregator joins an account with its subscription figures.
type ProfileAggregator struct {
	accounts      repositories.AccountRepository
	subscriptions repositories.SubscriptionRepository
}

// NewProfileAggregator constructs a ProfileAggregator.
func NewProfileAggregator(accounts repositories.AccountRepository, subscriptions repositories.SubscriptionRepository) *ProfileAggregator {
	return &ProfileAggregator{accounts: accounts, subscriptions: subscriptions}
}

// GetChannelProfile resolves username to a channel profile. An empty
// viewerID is an anonymous viewer, for whom IsSubscribed is always false.
func (p *ProfileAggregator) GetChannelProfile(ctx context.Context, username, viewerID string) (profile models.ChannelProfile, err error) {
	ctx, span := logging.StartSpan(ctx, "channels.profile")
	defer func() { span.End(err) }()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return models.ChannelProfile{}, apperr.Validation("username is missing")
	}

	account, err := p.accounts.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.ChannelProfile{}, apperr.NotFound("channel does not exist")
		}
		return models.ChannelProfile{}, apperr.Internal("failed to load channel", err)
	}

	subscribers, err := p.subscriptions.CountSubscribers(ctx, account.ID)
	if err != nil {
		return models.ChannelProfile{}, apperr.Internal("failed to count subscribers", err)
	}
	subscribedTo, err := p.subscriptions.CountSubscriptions(ctx, account.ID)
	if err != nil {
		return models.ChannelProfile{}, apperr.Internal("failed to count subscriptions", err)
	}

	var isSubscribed bool
	if viewerID != "" {
		isSubscribed, err = p.subscriptions.IsSubscribed(ctx, viewerID, account.ID)
		if err != nil {
			return models.ChannelProfile{}, apperr.Internal("failed to check subscription", err)
		}
	}

	return models.ChannelProfile{
		FullName:                  account.FullName,
		Username:                  account.Username,
		Email:                     account.Email,
		AvatarURL:                 account.AvatarURL,
		CoverURL:                  account.CoverURL,
		SubscribersCount:          subscribers,
		ChannelsSubscribedToCount: subscribedTo,
		IsSubscribed:              isSubscribed,
	}, nil
}
