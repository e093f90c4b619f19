package csrf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps attempts in Redis with a native TTL. Consume uses GETDEL
// so two concurrent callbacks cannot both read the same attempt.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "oauth-attempt:",
	}
}

func (r *RedisStore) key(attemptID string) string {
	return r.prefix + attemptID
}

func (r *RedisStore) Save(ctx context.Context, attemptID string, a Attempt, ttl time.Duration) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("csrf: failed to marshal attempt: %w", err)
	}

	if err := r.client.Set(ctx, r.key(attemptID), data, ttl).Err(); err != nil {
		return unavailable("save", err)
	}
	return nil
}

func (r *RedisStore) Consume(ctx context.Context, attemptID string) (*Attempt, error) {
	val, err := r.client.GetDel(ctx, r.key(attemptID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("consume", err)
	}

	var a Attempt
	if err := json.Unmarshal([]byte(val), &a); err != nil {
		return nil, fmt.Errorf("csrf: failed to unmarshal attempt: %w", err)
	}
	return &a, nil
}
