package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/confirming/marketplace/internal/domain"
)

// SubmissionLock guards a short critical section keyed by name.
// Acquire fails with domain.ErrConcurrentModification when the key is already held.
type SubmissionLock interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// releaseScript deletes the key only if it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisSubmissionLock is a lock shared by every server instance
type RedisSubmissionLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSubmissionLock connects to Redis and verifies the connection
func NewRedisSubmissionLock(redisURL string, ttl time.Duration) (*RedisSubmissionLock, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisSubmissionLock{client: client, ttl: ttl}, nil
}

// Acquire sets key with NX and a TTL so a crashed holder cannot block submissions forever
func (l *RedisSubmissionLock) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	redisKey := "lock:" + key

	ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s is locked", domain.ErrConcurrentModification, key)
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err()
	}, nil
}

// Ping reports whether Redis is reachable
func (l *RedisSubmissionLock) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (l *RedisSubmissionLock) Close() error {
	return l.client.Close()
}

// LocalSubmissionLock is an in-process lock for single-instance deployments and tests
type LocalSubmissionLock struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalSubmissionLock creates an empty in-process lock table
func NewLocalSubmissionLock() *LocalSubmissionLock {
	return &LocalSubmissionLock{held: make(map[string]struct{})}
}

func (l *LocalSubmissionLock) Acquire(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[key]; ok {
		return nil, fmt.Errorf("%w: %s is locked", domain.ErrConcurrentModification, key)
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}

func submissionLockKey(invoiceID, financierID uuid.UUID) string {
	return fmt.Sprintf("offer:%s:%s", invoiceID, financierID)
}
