package contentcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"coursemind/internal/models"
)

// RedisStore is an optional shared fast backend, selected when REDIS_URL is
// configured so multiple server instances share extraction work. Errors are
// returned to the Manager, which degrades them to misses.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func redisKey(kind models.SourceKind, key string) string {
	return "coursemind:cache:" + string(kind) + ":" + key
}

// Get fetches and decodes one entry.
func (s *RedisStore) Get(kind models.SourceKind, key string) (Entry, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	data, err := s.client.Get(ctx, redisKey(kind, key)).Bytes()
	if err == redis.Nil {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Entry{}, false, fmt.Errorf("corrupt cache entry: %w", err)
	}
	return entry, true, nil
}

// Set stores the entry with the kind TTL as Redis expiration.
func (s *RedisStore) Set(entry Entry, ttl time.Duration) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return s.client.Set(ctx, redisKey(entry.Kind, entry.Key), data, ttl).Err()
}

// Delete removes one entry.
func (s *RedisStore) Delete(kind models.SourceKind, key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return s.client.Del(ctx, redisKey(kind, key)).Err()
}

// Purge removes every entry of a kind by pattern scan.
func (s *RedisStore) Purge(kind models.SourceKind) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	iter := s.client.Scan(ctx, 0, "coursemind:cache:"+string(kind)+":*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
