package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/pricewatch/pkg/types"
)

// RedisProvider implements Database on a Redis server. Each record is a JSON
// string value under a prefixed key.
type RedisProvider struct {
	client *redis.Client
	url    string
	prefix string
}

// NewRedisProvider returns a RedisProvider using an existing client.
func NewRedisProvider(client *redis.Client, prefix string) *RedisProvider {
	return &RedisProvider{
		client: client,
		prefix: prefix,
	}
}

func configuredRedis() *RedisProvider {
	url := lflag.String("redis-url", "redis://localhost:6379/0", "Redis connection URL (redis storage)")
	prefix := lflag.String("redis-key-prefix", "pricewatch:", "Prefix for redis keys")

	r := &RedisProvider{}
	lflag.Do(func() {
		r.url = *url
		r.prefix = *prefix
	})
	return r
}

// Validate checks if the provider is properly configured.
func (r *RedisProvider) Validate() error {
	if r.url == "" {
		return errors.New("redis-url is required")
	}
	if _, err := redis.ParseURL(r.url); err != nil {
		return fmt.Errorf("invalid redis-url: %w", err)
	}
	return nil
}

// Init connects to redis and verifies the connection with a ping.
func (r *RedisProvider) Init(ctx context.Context) error {
	opts, err := redis.ParseURL(r.url)
	if err != nil {
		return fmt.Errorf("invalid redis-url: %w", err)
	}
	r.client = redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		r.client.Close()
		return fmt.Errorf("failed to connect to redis (%s): %w", opts.Addr, err)
	}
	return nil
}

// Close closes the redis client.
func (r *RedisProvider) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func (r *RedisProvider) get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return b, nil
}

func (r *RedisProvider) set(ctx context.Context, key string, b []byte) error {
	if err := r.client.Set(ctx, r.prefix+key, b, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// GetState reads the state key.
func (r *RedisProvider) GetState(ctx context.Context) (types.State, error) {
	b, err := r.get(ctx, "state")
	if err != nil || b == nil {
		return types.State{}, err
	}
	return unmarshalState(b)
}

// SetState writes the state key.
func (r *RedisProvider) SetState(ctx context.Context, state types.State) error {
	b, err := marshalState(state)
	if err != nil {
		return err
	}
	return r.set(ctx, "state", b)
}

// GetSettings reads the settings key.
func (r *RedisProvider) GetSettings(ctx context.Context) (types.Settings, int, error) {
	b, err := r.get(ctx, "settings")
	if err != nil || b == nil {
		return types.Settings{}, 0, err
	}
	return unmarshalSettings(b)
}

// SetSettings writes the settings key.
func (r *RedisProvider) SetSettings(ctx context.Context, settings types.Settings, version int) error {
	b, err := marshalSettings(settings, version)
	if err != nil {
		return err
	}
	return r.set(ctx, "settings", b)
}
