package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RevocationStore remembers signed-out tokens and accounts whose existing
// sessions were cut off. Entries only need to outlive the token TTL.
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	// RevokeUser invalidates every token of the user issued at or before at.
	RevokeUser(ctx context.Context, userID uuid.UUID, at, until time.Time) error
	// UserRevokedAt returns the cut-off recorded by RevokeUser, if any.
	UserRevokedAt(ctx context.Context, userID uuid.UUID) (time.Time, bool, error)
}

var (
	_ RevocationStore = (*TokenRevocationStore)(nil)
	_ RevocationStore = (*RedisRevocationStore)(nil)
)

type userCutoff struct {
	at    time.Time
	until time.Time
}

// TokenRevocationStore is the in-process RevocationStore used by single
// instance deployments. Thread-safe.
type TokenRevocationStore struct {
	mu      sync.RWMutex
	entries map[string]time.Time // JTI -> expiry
	users   map[uuid.UUID]userCutoff
	done    chan struct{}
	once    sync.Once
}

// NewTokenRevocationStore creates a store and starts a goroutine that drops
// expired entries every interval.
func NewTokenRevocationStore(interval time.Duration) *TokenRevocationStore {
	s := &TokenRevocationStore{
		entries: make(map[string]time.Time),
		users:   make(map[uuid.UUID]userCutoff),
		done:    make(chan struct{}),
	}
	go s.cleanupLoop(interval)
	return s
}

func (s *TokenRevocationStore) Revoke(_ context.Context, jti string, expiresAt time.Time) error {
	if jti == "" {
		return nil
	}
	s.mu.Lock()
	s.entries[jti] = expiresAt
	s.mu.Unlock()
	return nil
}

func (s *TokenRevocationStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[jti]
	return ok, nil
}

func (s *TokenRevocationStore) RevokeUser(_ context.Context, userID uuid.UUID, at, until time.Time) error {
	s.mu.Lock()
	s.users[userID] = userCutoff{at: at, until: until}
	s.mu.Unlock()
	return nil
}

func (s *TokenRevocationStore) UserRevokedAt(_ context.Context, userID uuid.UUID) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.users[userID]
	return c.at, ok, nil
}

func (s *TokenRevocationStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries) + len(s.users)
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (s *TokenRevocationStore) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *TokenRevocationStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.cleanup(now)
		}
	}
}

func (s *TokenRevocationStore) cleanup(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for jti, exp := range s.entries {
		if now.After(exp) {
			delete(s.entries, jti)
		}
	}
	for id, c := range s.users {
		if now.After(c.until) {
			delete(s.users, id)
		}
	}
}

// sessionRevoked reports whether the token behind claims has been signed out
// or predates a cut-off for its user.
func sessionRevoked(ctx context.Context, store RevocationStore, claims *Claims, userID uuid.UUID) (bool, error) {
	revoked, err := store.IsRevoked(ctx, claims.ID)
	if err != nil || revoked {
		return revoked, err
	}
	cutoff, ok, err := store.UserRevokedAt(ctx, userID)
	if err != nil || !ok {
		return false, err
	}
	if claims.IssuedAt == nil {
		return true, nil
	}
	return !claims.IssuedAt.Time.After(cutoff), nil
}
