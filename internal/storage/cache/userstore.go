// Package cache adds a Redis read-aside layer on top of the Firestore user
// store, so token lookups for chatty rides don't hammer the users collection.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tinywideclouds/go-ride-notifier/pkg/dispatch"
)

// CacheClient defines the subset of Redis commands we need.
type CacheClient interface {
	// Get returns the value or a specific error if not found.
	Get(ctx context.Context, key string, dest interface{}) error
	// Set stores the value with a TTL.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Del removes the keys.
	Del(ctx context.Context, keys ...string) error
}

// cachedToken distinguishes "user has no token" (cacheable) from a cache miss.
type cachedToken struct {
	Token string `json:"token"`
}

// CachedUserStore is a Decorator that adds Read-Aside caching to any UserStore.
type CachedUserStore struct {
	realStore dispatch.UserStore
	cache     CacheClient
	ttl       time.Duration
}

// NewCachedUserStore creates the decorator.
func NewCachedUserStore(realStore dispatch.UserStore, cache CacheClient, ttl time.Duration) *CachedUserStore {
	return &CachedUserStore{
		realStore: realStore,
		cache:     cache,
		ttl:       ttl,
	}
}

// --- READ PATH (Read-Aside) ---

func (s *CachedUserStore) FCMToken(ctx context.Context, userID string) (string, error) {
	key := s.cacheKey(userID)

	// 1. Try Cache
	var cached cachedToken
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		if cached.Token == "" {
			return "", dispatch.ErrNoToken
		}
		return cached.Token, nil
	}

	// 2. Fallback to Real Store (Firestore)
	token, err := s.realStore.FCMToken(ctx, userID)
	if err != nil && !errors.Is(err, dispatch.ErrNoToken) {
		return "", err
	}

	// 3. Populate Cache (Fire and Forget)
	// The no-token case is cached too; it is the common state for users who
	// never enabled push. Caching is an optimization, not a transaction,
	// so a Set failure is ignored and we just serve from the DB next time.
	_ = s.cache.Set(ctx, key, cachedToken{Token: token}, s.ttl)

	return token, err
}

// --- WRITE PATH (Invalidate-on-Write) ---

// RemoveToken clears the token in the source of truth, then purges the cache
// entries for every affected user so a dead token stops being addressed
// immediately rather than at TTL expiry.
func (s *CachedUserStore) RemoveToken(ctx context.Context, token string) ([]string, error) {
	userIDs, err := s.realStore.RemoveToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if len(userIDs) == 0 {
		return nil, nil
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = s.cacheKey(id)
	}
	if err := s.cache.Del(ctx, keys...); err != nil {
		return userIDs, fmt.Errorf("purge cached tokens: %w", err)
	}
	return userIDs, nil
}

func (s *CachedUserStore) cacheKey(userID string) string {
	return fmt.Sprintf("ridenotify:token:%s", userID)
}
