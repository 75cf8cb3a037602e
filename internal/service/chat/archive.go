package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nutrigraph/nutribot/backend/internal/model/chat"
)

const (
	archivePrefix     = "nutribot:transcript:"
	defaultArchiveTTL = 24 * time.Hour
)

// Archive mirrors transcripts outside the process. Failures never affect the
// in-memory transcript.
type Archive interface {
	Append(ctx context.Context, msg chat.Message) error
	Load(ctx context.Context, sessionID string) ([]chat.Message, error)
}

// NoopArchive discards everything.
type NoopArchive struct{}

func (NoopArchive) Append(context.Context, chat.Message) error { return nil }

func (NoopArchive) Load(context.Context, string) ([]chat.Message, error) { return nil, nil }

// RedisArchive stores each transcript as a JSON list under
// nutribot:transcript:{sessionID}, refreshing the TTL on every append.
type RedisArchive struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisArchive connects to redisURL and checks the connection.
func NewRedisArchive(ctx context.Context, redisURL string, ttl time.Duration) (*RedisArchive, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisArchiveWithClient(rdb, ttl), nil
}

// NewRedisArchiveWithClient wraps an existing client.
func NewRedisArchiveWithClient(rdb *redis.Client, ttl time.Duration) *RedisArchive {
	if ttl <= 0 {
		ttl = defaultArchiveTTL
	}
	return &RedisArchive{rdb: rdb, ttl: ttl}
}

func archiveKey(sessionID string) string {
	return archivePrefix + sessionID
}

// Append pushes msg to the end of its session list.
func (a *RedisArchive) Append(ctx context.Context, msg chat.Message) error {
	if msg.SessionID == "" {
		return ErrSessionNotFound
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	key := archiveKey(msg.SessionID)
	pipe := a.rdb.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, a.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to archive message: %w", err)
	}
	return nil
}

// Load returns the archived transcript in order. A missing key is an empty
// transcript.
func (a *RedisArchive) Load(ctx context.Context, sessionID string) ([]chat.Message, error) {
	items, err := a.rdb.LRange(ctx, archiveKey(sessionID), 0, -1).Result()
	if errors.Is(err, redis.Nil) {
		return []chat.Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load archive: %w", err)
	}

	messages := make([]chat.Message, 0, len(items))
	for _, item := range items {
		var msg chat.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal archived message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Close releases the redis connection pool.
func (a *RedisArchive) Close() error {
	return a.rdb.Close()
}
