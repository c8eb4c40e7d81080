package repository

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const refreshKeyPrefix = "refresh:"

// RefreshTokenRepository tracks outstanding refresh token versions per account.
type RefreshTokenRepository interface {
	Store(ctx context.Context, accountID, version string, ttl time.Duration) error
	// Consume removes version and reports whether it was outstanding.
	Consume(ctx context.Context, accountID, version string) (bool, error)
	RevokeAll(ctx context.Context, accountID string) error
}

type redisRefreshTokenRepository struct {
	client redis.UniversalClient
}

// NewRedisRefreshTokenRepository constructs a Redis-backed registry.
func NewRedisRefreshTokenRepository(client redis.UniversalClient) RefreshTokenRepository {
	return &redisRefreshTokenRepository{client: client}
}

func (r *redisRefreshTokenRepository) Store(ctx context.Context, accountID, version string, ttl time.Duration) error {
	key := refreshKeyPrefix + accountID
	pipe := r.client.TxPipeline()
	pipe.SAdd(ctx, key, version)
	pipe.Expire(ctx, key, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *redisRefreshTokenRepository) Consume(ctx context.Context, accountID, version string) (bool, error) {
	removed, err := r.client.SRem(ctx, refreshKeyPrefix+accountID, version).Result()
	if err != nil {
		return false, err
	}
	return removed == 1, nil
}

func (r *redisRefreshTokenRepository) RevokeAll(ctx context.Context, accountID string) error {
	return r.client.Del(ctx, refreshKeyPrefix+accountID).Err()
}

type memoryRefreshTokenRepository struct {
	mu       sync.Mutex
	versions map[string]map[string]time.Time
	now      func() time.Time
}

// NewMemoryRefreshTokenRepository returns a process-local registry.
func NewMemoryRefreshTokenRepository(now func() time.Time) RefreshTokenRepository {
	if now == nil {
		now = time.Now
	}
	return &memoryRefreshTokenRepository{
		versions: make(map[string]map[string]time.Time),
		now:      now,
	}
}

func (r *memoryRefreshTokenRepository) Store(_ context.Context, accountID, version string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	r.pruneLocked(now)
	set, ok := r.versions[accountID]
	if !ok {
		set = make(map[string]time.Time)
		r.versions[accountID] = set
	}
	set[version] = now.Add(ttl)
	return nil
}

// pruneLocked drops expired versions and the accounts left without any.
func (r *memoryRefreshTokenRepository) pruneLocked(now time.Time) {
	for accountID, set := range r.versions {
		for version, expiresAt := range set {
			if !now.Before(expiresAt) {
				delete(set, version)
			}
		}
		if len(set) == 0 {
			delete(r.versions, accountID)
		}
	}
}

func (r *memoryRefreshTokenRepository) Consume(_ context.Context, accountID, version string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.versions[accountID]
	if !ok {
		return false, nil
	}
	expiresAt, ok := set[version]
	if !ok {
		return false, nil
	}
	delete(set, version)
	if len(set) == 0 {
		delete(r.versions, accountID)
	}
	return r.now().Before(expiresAt), nil
}

func (r *memoryRefreshTokenRepository) RevokeAll(_ context.Context, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.versions, accountID)
	return nil
}
