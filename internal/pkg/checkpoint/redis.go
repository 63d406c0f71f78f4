package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Vodeneev/matchscraper/internal/pkg/models"
)

// RedisStore keeps the checkpoint under a single key, for runs whose
// working directory does not survive a restart.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// RedisConfig locates the server and names the key.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Key is derived from the output file name, e.g. "checkpoint:soccer_england_championship-2025-2026".
	Key string
	// TTL of zero keeps the checkpoint until it is deleted.
	TTL time.Duration
}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client, key: cfg.Key, ttl: cfg.TTL}, nil
}

// KeyFor is the checkpoint key of an output file base name.
func KeyFor(fileName string) string {
	return "checkpoint:" + fileName
}

func (s *RedisStore) Load(ctx context.Context) (*models.Checkpoint, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checkpoint: %w", err)
	}

	var cp models.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint %s: %w", s.key, err)
	}
	return &cp, nil
}

func (s *RedisStore) Save(ctx context.Context, cp models.Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	return s.client.Set(ctx, s.key, data, s.ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}

// Close closes the connection with Redis
func (s *RedisStore) Close() error {
	return s.client.Close()
}
