package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fodder-analyzer/internal/config"
)

const latestKey = "upload:latest"

// RedisStore keeps uploads in Redis so every instance behind a load
// balancer sees the same preview
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(cfg config.RedisConfig, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "fodder:"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}, nil
}

// Save stores r under its ID and as the latest upload
func (s *RedisStore) Save(ctx context.Context, r *Result) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode upload: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.prefix+"upload:"+r.ID, data, s.ttl)
		pipe.Set(ctx, s.prefix+latestKey, data, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Latest(ctx context.Context) (*Result, error) {
	data, err := s.client.Get(ctx, s.prefix+latestKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoUpload
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("corrupt upload in redis: %w", err)
	}
	return &r, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
