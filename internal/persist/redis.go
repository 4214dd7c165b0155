package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/phobologic/docreflect/internal/model"
)

// Redis persists metadata records as Redis string values under a key prefix.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis wraps an existing client. A zero ttl stores records without
// expiry.
func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

// DialRedis connects to addr and verifies the connection.
func DialRedis(ctx context.Context, addr string, db int, prefix string, ttl time.Duration) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return NewRedis(client, prefix, ttl), nil
}

// Load returns the record stored for className.
func (r *Redis) Load(ctx context.Context, className string) (*model.ClassMetadata, bool, error) {
	data, err := r.client.Get(ctx, r.prefix+key(className)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load %s: %w", className, err)
	}
	meta, err := Decode(data)
	if err != nil {
		return nil, false, err
	}
	return meta, true, nil
}

// Save stores meta, replacing any earlier record for the class.
func (r *Redis) Save(ctx context.Context, meta *model.ClassMetadata) error {
	data, err := Encode(meta)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.prefix+key(meta.Name), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("save %s: %w", meta.Name, err)
	}
	return nil
}

// Clear removes every record under the prefix.
func (r *Redis) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}
