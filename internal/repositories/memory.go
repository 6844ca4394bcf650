package repositories

import (
	"context"
	"sync"
	"time"

	"github.com/clipshare/backend/internal/models"
)

type edgeKey struct {
	subscriber string
	channel    string
}

// MemoryStore implements every repository over in-memory maps. It is used by
// tests and by local development without a database. All check-then-write
// sequences run under a single lock.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]models.Account
	videos   map[string]models.Video
	edges    map[edgeKey]models.SubscriptionEdge
	now      func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]models.Account),
		videos:   make(map[string]models.Video),
		edges:    make(map[edgeKey]models.SubscriptionEdge),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Accounts returns the store viewed as an AccountRepository.
func (s *MemoryStore) Accounts() AccountRepository { return memoryAccounts{s} }

// Videos returns the store viewed as a VideoRepository.
func (s *MemoryStore) Videos() VideoRepository { return memoryVideos{s} }

// Subscriptions returns the store viewed as a SubscriptionRepository.
func (s *MemoryStore) Subscriptions() SubscriptionRepository { return memorySubscriptions{s} }

// AppendWatchHistory records a view at the end of the account's history.
func (s *MemoryStore) AppendWatchHistory(accountID, videoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return ErrNotFound
	}
	account.WatchHistory = append(append([]string(nil), account.WatchHistory...), videoID)
	s.accounts[accountID] = account
	return nil
}

type memoryAccounts struct{ s *MemoryStore }

func (m memoryAccounts) Create(_ context.Context, account models.Account) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, exists := m.s.accounts[account.ID]; exists {
		return ErrConflict
	}
	for _, existing := range m.s.accounts {
		if existing.Username == account.Username || existing.Email == account.Email {
			return ErrConflict
		}
	}
	account.WatchHistory = append([]string(nil), account.WatchHistory...)
	m.s.accounts[account.ID] = account
	return nil
}

func (m memoryAccounts) FindByID(_ context.Context, id string) (models.Account, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	account, ok := m.s.accounts[id]
	if !ok {
		return models.Account{}, ErrNotFound
	}
	return account, nil
}

func (m memoryAccounts) FindByUsername(_ context.Context, username string) (models.Account, error) {
	return m.findBy(func(a models.Account) bool { return a.Username == username })
}

func (m memoryAccounts) FindByEmail(_ context.Context, email string) (models.Account, error) {
	return m.findBy(func(a models.Account) bool { return a.Email == email })
}

func (m memoryAccounts) findBy(match func(models.Account) bool) (models.Account, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	for _, account := range m.s.accounts {
		if match(account) {
			return account, nil
		}
	}
	return models.Account{}, ErrNotFound
}

func (m memoryAccounts) UpdateDetails(_ context.Context, id, username, fullName string) (models.Account, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	account, ok := m.s.accounts[id]
	if !ok {
		return models.Account{}, ErrNotFound
	}
	for otherID, other := range m.s.accounts {
		if otherID != id && other.Username == username {
			return models.Account{}, ErrConflict
		}
	}
	account.Username = username
	account.FullName = fullName
	account.UpdatedAt = m.s.now()
	m.s.accounts[id] = account
	return account, nil
}

func (m memoryAccounts) UpdatePassword(_ context.Context, id, passwordHash string) error {
	_, err := m.mutate(id, func(a *models.Account) { a.PasswordHash = passwordHash })
	return err
}

func (m memoryAccounts) UpdateAvatar(_ context.Context, id, avatarURL string) (models.Account, error) {
	return m.mutate(id, func(a *models.Account) { a.AvatarURL = avatarURL })
}

func (m memoryAccounts) UpdateCover(_ context.Context, id, coverURL string) (models.Account, error) {
	return m.mutate(id, func(a *models.Account) { a.CoverURL = coverURL })
}

func (m memoryAccounts) mutate(id string, apply func(*models.Account)) (models.Account, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	account, ok := m.s.accounts[id]
	if !ok {
		return models.Account{}, ErrNotFound
	}
	apply(&account)
	account.UpdatedAt = m.s.now()
	m.s.accounts[id] = account
	return account, nil
}

func (m memoryAccounts) SetRefreshToken(_ context.Context, id, token string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	account, ok := m.s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	account.RefreshToken = token
	m.s.accounts[id] = account
	return nil
}

func (m memoryAccounts) SwapRefreshToken(_ context.Context, id, expected, next string) (bool, error) {
	if expected == "" {
		return false, nil
	}

	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	account, ok := m.s.accounts[id]
	if !ok || account.RefreshToken != expected {
		return false, nil
	}
	account.RefreshToken = next
	m.s.accounts[id] = account
	return true, nil
}

func (m memoryAccounts) WatchHistory(_ context.Context, id string) ([]string, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	account, ok := m.s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]string{}, account.WatchHistory...), nil
}

type memoryVideos struct{ s *MemoryStore }

func (m memoryVideos) Create(_ context.Context, video models.Video) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, exists := m.s.videos[video.ID]; exists {
		return ErrConflict
	}
	if _, ok := m.s.accounts[video.OwnerID]; !ok {
		return ErrNotFound
	}
	m.s.videos[video.ID] = video
	return nil
}

func (m memoryVideos) ResolveWithOwners(_ context.Context, ids []string) (map[string]models.VideoWithOwner, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	resolved := make(map[string]models.VideoWithOwner, len(ids))
	for _, id := range ids {
		video, ok := m.s.videos[id]
		if !ok {
			continue
		}
		owner, ok := m.s.accounts[video.OwnerID]
		if !ok {
			continue
		}
		resolved[id] = models.VideoWithOwner{
			Video: video,
			Owner: models.OwnerSummary{
				FullName:  owner.FullName,
				Username:  owner.Username,
				AvatarURL: owner.AvatarURL,
			},
		}
	}
	return resolved, nil
}

type memorySubscriptions struct{ s *MemoryStore }

func (m memorySubscriptions) Create(_ context.Context, edge models.SubscriptionEdge) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	key := edgeKey{subscriber: edge.SubscriberID, channel: edge.ChannelID}
	if _, exists := m.s.edges[key]; exists {
		return ErrConflict
	}
	if _, ok := m.s.accounts[edge.SubscriberID]; !ok {
		return ErrNotFound
	}
	if _, ok := m.s.accounts[edge.ChannelID]; !ok {
		return ErrNotFound
	}
	m.s.edges[key] = edge
	return nil
}

func (m memorySubscriptions) CountSubscribers(_ context.Context, channelID string) (int64, error) {
	return m.count(func(k edgeKey) bool { return k.channel == channelID }), nil
}

func (m memorySubscriptions) CountSubscriptions(_ context.Context, subscriberID string) (int64, error) {
	return m.count(func(k edgeKey) bool { return k.subscriber == subscriberID }), nil
}

func (m memorySubscriptions) count(match func(edgeKey) bool) int64 {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	var n int64
	for key := range m.s.edges {
		if match(key) {
			n++
		}
	}
	return n
}

func (m memorySubscriptions) IsSubscribed(_ context.Context, subscriberID, channelID string) (bool, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	_, ok := m.s.edges[edgeKey{subscriber: subscriberID, channel: channelID}]
	return ok, nil
}

var _ AccountRepository = memoryAccounts{}
var _ VideoRepository = memoryVideos{}
var _ SubscriptionRepository = memorySubscriptions{}
