package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// consumeScript deletes the key only when it still holds the presented token.
var consumeScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0`)

const tokenKeyPrefix = "upload_token:"

// RedisTokenStore keeps one-shot submission tokens in Redis.
type RedisTokenStore struct {
	client *redis.Client
}

// NewRedisTokenStore constructs a Redis backed token store.
func NewRedisTokenStore(client *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{client: client}
}

// Put stores the token for the key, replacing any previous one.
func (s *RedisTokenStore) Put(ctx context.Context, key, token string, ttl time.Duration) error {
	if s.client == nil {
		return fmt.Errorf("redis token store: client not configured")
	}
	if err := s.client.Set(ctx, tokenKeyPrefix+key, token, ttl).Err(); err != nil {
		return fmt.Errorf("redis set token: %w", err)
	}
	return nil
}

// Consume atomically removes the token when it matches and reports whether it did.
func (s *RedisTokenStore) Consume(ctx context.Context, key, token string) (bool, error) {
	if s.client == nil {
		return false, fmt.Errorf("redis token store: client not configured")
	}
	deleted, err := consumeScript.Run(ctx, s.client, []string{tokenKeyPrefix + key}, token).Int()
	if err != nil {
		return false, fmt.Errorf("redis consume token: %w", err)
	}
	return deleted == 1, nil
}

type memoryToken struct {
	value   string
	expires time.Time
}

// MemoryTokenStore is the in-process token store used when Redis is disabled.
type MemoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]memoryToken
	now    func() time.Time
}

// NewMemoryTokenStore constructs an empty in-memory token store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: make(map[string]memoryToken), now: time.Now}
}

// Put stores the token for the key, replacing any previous one.
func (s *MemoryTokenStore) Put(_ context.Context, key, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, t := range s.tokens {
		if now.After(t.expires) {
			delete(s.tokens, k)
		}
	}
	s.tokens[key] = memoryToken{value: token, expires: now.Add(ttl)}
	return nil
}

// Consume removes the token when it matches and has not expired.
func (s *MemoryTokenStore) Consume(_ context.Context, key, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.tokens[key]
	if !ok || stored.value != token {
		return false, nil
	}
	delete(s.tokens, key)
	if s.now().After(stored.expires) {
		return false, nil
	}
	return true, nil
}
