package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/course-reg-api/internal/models"
)

// InboxLimit caps how many notifications are kept per user.
const InboxLimit = 100

func inboxKey(username string) string {
	return "inbox:" + username
}

// RedisInboxRepository keeps each inbox as a Redis list, newest first.
type RedisInboxRepository struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisInboxRepository constructs a Redis-backed inbox.
func NewRedisInboxRepository(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisInboxRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisInboxRepository{client: client, ttl: ttl, logger: logger}
}

// Push prepends n to its user's inbox and refreshes the expiry.
func (r *RedisInboxRepository) Push(ctx context.Context, n models.Notification) error {
	if r.client == nil {
		return nil
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification %s: %w", n.ID, err)
	}

	key := inboxKey(n.Username)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, payload)
		pipe.LTrim(ctx, key, 0, InboxLimit-1)
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis push %s: %w", key, err)
	}
	return nil
}

// List returns one page of a user's inbox and the inbox size.
func (r *RedisInboxRepository) List(ctx context.Context, username string, offset, limit int) ([]models.Notification, int, error) {
	if r.client == nil {
		return []models.Notification{}, 0, nil
	}

	key := inboxKey(username)
	total, err := r.client.LLen(ctx, key).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("redis llen %s: %w", key, err)
	}
	if offset >= int(total) || limit <= 0 {
		return []models.Notification{}, int(total), nil
	}

	raw, err := r.client.LRange(ctx, key, int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("redis lrange %s: %w", key, err)
	}

	items := make([]models.Notification, 0, len(raw))
	for _, entry := range raw {
		var n models.Notification
		if err := json.Unmarshal([]byte(entry), &n); err != nil {
			r.logger.Warn("skip unreadable notification", zap.String("key", key), zap.Error(err))
			continue
		}
		items = append(items, n)
	}
	return items, int(total), nil
}

// Close releases the underlying Redis connection if present.
func (r *RedisInboxRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

// MemoryInboxRepository keeps inboxes in process memory. Entries expire
// together with their inbox after the configured TTL.
type MemoryInboxRepository struct {
	mu    sync.Mutex
	cache *gocache.Cache
	ttl   time.Duration
}

// NewMemoryInboxRepository constructs an in-process inbox.
func NewMemoryInboxRepository(ttl time.Duration) *MemoryInboxRepository {
	expiration := ttl
	if expiration <= 0 {
		expiration = gocache.NoExpiration
	}
	cleanup := expiration
	if cleanup <= 0 || cleanup > 30*time.Minute {
		cleanup = 30 * time.Minute
	}
	return &MemoryInboxRepository{
		cache: gocache.New(expiration, cleanup),
		ttl:   expiration,
	}
}

// Push prepends n to its user's inbox and refreshes the expiry.
func (r *MemoryInboxRepository) Push(_ context.Context, n models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := inboxKey(n.Username)
	current := r.load(key)
	next := make([]models.Notification, 0, min(len(current)+1, InboxLimit))
	next = append(next, n)
	for _, old := range current {
		if len(next) == InboxLimit {
			break
		}
		next = append(next, old)
	}
	r.cache.Set(key, next, r.ttl)
	return nil
}

// List returns one page of a user's inbox and the inbox size.
func (r *MemoryInboxRepository) List(_ context.Context, username string, offset, limit int) ([]models.Notification, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.load(inboxKey(username))
	total := len(current)
	if offset >= total || limit <= 0 {
		return []models.Notification{}, total, nil
	}
	end := min(offset+limit, total)
	page := make([]models.Notification, end-offset)
	copy(page, current[offset:end])
	return page, total, nil
}

func (r *MemoryInboxRepository) load(key string) []models.Notification {
	value, found := r.cache.Get(key)
	if !found {
		return nil
	}
	items, ok := value.([]models.Notification)
	if !ok {
		return nil
	}
	return items
}
