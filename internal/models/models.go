package models

import "time"

// Account represents a registered user and the channel they publish under.
type Account struct {
	ID           string
	Username     string
	Email        string
	FullName     string
	PasswordHash string
	AvatarURL    string
	CoverURL     string
	WatchHistory []string
	RefreshToken string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Public strips credentials from the account.
func (a Account) Public() PublicAccount {
	return PublicAccount{
		ID:        a.ID,
		Username:  a.Username,
		Email:     a.Email,
		FullName:  a.FullName,
		AvatarURL: a.AvatarURL,
		CoverURL:  a.CoverURL,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// PublicAccount is the account shape returned to clients.
type PublicAccount struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	AvatarURL string    `json:"avatar"`
	CoverURL  string    `json:"coverImage"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Video is an uploaded media item owned by a single account.
type Video struct {
	ID           string    `json:"id"`
	FileURL      string    `json:"videoFile"`
	ThumbnailURL string    `json:"thumbnail"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Duration     float64   `json:"duration"`
	Views        int64     `json:"views"`
	IsPublished  bool      `json:"isPublished"`
	OwnerID      string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// SubscriptionEdge records that Subscriber follows Channel.
type SubscriptionEdge struct {
	SubscriberID string
	ChannelID    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OwnerSummary is the flattened owner projection attached to history entries.
type OwnerSummary struct {
	FullName  string `json:"fullName"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar"`
}

// VideoWithOwner is a video joined with its owner's public summary.
type VideoWithOwner struct {
	Video
	Owner OwnerSummary `json:"owner"`
}

// ChannelProfile is an account viewed as a channel, with subscription figures.
type ChannelProfile struct {
	FullName                  string `json:"fullName"`
	Username                  string `json:"username"`
	Email                     string `json:"email"`
	AvatarURL                 string `json:"avatar"`
	CoverURL                  string `json:"coverImage"`
	SubscribersCount          int64  `json:"subscribersCount"`
	ChannelsSubscribedToCount int64  `json:"channelSubscribedToCount"`
	IsSubscribed              bool   `json:"isSubscribed"`
}

// Identity is the caller identity carried by an access token.
type Identity struct {
	AccountID string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FullName  string `json:"fullName"`
}

// TokenPair groups the bearer credentials issued to authenticated accounts.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}
