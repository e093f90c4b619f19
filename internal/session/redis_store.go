package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"bff-service/internal/auth"
)

const maxTxRetries = 5

var errDecode = errors.New("session: failed to unmarshal")

type RedisStore struct {
	client      *redis.Client
	prefix      string
	ownerPrefix string
	now         func() time.Time
}

// NewRedisStore creates a Redis-backed session store. Session keys carry a
// native TTL; a per-owner set indexes session ids for DeleteAllForOwner.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client:      client,
		prefix:      "session:",
		ownerPrefix: "session-owner:",
		now:         time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (r *RedisStore) WithClock(now func() time.Time) *RedisStore {
	r.now = now
	return r
}

func (r *RedisStore) key(sessionID string) string {
	return r.prefix + sessionID
}

func (r *RedisStore) ownerKey(ownerID string) string {
	return r.ownerPrefix + ownerID
}

func (r *RedisStore) Create(ctx context.Context, owner auth.Identity, expiresAt time.Time) (*Session, error) {
	if owner.ID == "" {
		return nil, fmt.Errorf("session: missing owner id")
	}

	id, err := GenerateID()
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:        id,
		OwnerID:   owner.ID,
		Identity:  owner,
		CreatedAt: r.now(),
		ExpiresAt: expiresAt,
	}

	// An already expired session is never readable, so there is nothing to store.
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return s, nil
	}

	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("session: failed to marshal: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key(id), data, ttl)
		pipe.SAdd(ctx, r.ownerKey(owner.ID), id)
		return nil
	})
	if err != nil {
		return nil, unavailable("create", err)
	}

	return s, nil
}

func (r *RedisStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	s, err := r.load(ctx, r.client, sessionID)
	if err != nil || s == nil {
		return nil, err
	}

	if s.Expired(r.now()) {
		if _, err := r.Delete(ctx, sessionID); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return s, nil
}

func (r *RedisStore) Update(ctx context.Context, sessionID string, patch Patch) (*Session, error) {
	var out *Session

	err := r.watch(ctx, "update", func(tx *redis.Tx) error {
		out = nil

		s, err := r.load(ctx, tx, sessionID)
		if err != nil || s == nil {
			return err
		}
		if s.Expired(r.now()) {
			return r.remove(ctx, tx, s)
		}

		patch.apply(s)
		ttl := s.ExpiresAt.Sub(r.now())
		if ttl <= 0 {
			return r.remove(ctx, tx, s)
		}

		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("session: failed to marshal: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.key(sessionID), data, ttl)
			return nil
		})
		if err == nil {
			out = s
		}
		return err
	}, r.key(sessionID))
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (r *RedisStore) Delete(ctx context.Context, sessionID string) (bool, error) {
	deleted := false

	err := r.watch(ctx, "delete", func(tx *redis.Tx) error {
		deleted = false

		s, err := r.load(ctx, tx, sessionID)
		if err != nil || s == nil {
			return err
		}
		if err := r.remove(ctx, tx, s); err != nil {
			return err
		}
		deleted = true
		return nil
	}, r.key(sessionID))
	if err != nil {
		return false, err
	}

	return deleted, nil
}

// DeleteAllForOwner runs under WATCH on the owner index, so a session
// created for the same owner mid-call forces a retry instead of being
// left live and unindexed.
func (r *RedisStore) DeleteAllForOwner(ctx context.Context, ownerID string) (bool, error) {
	ownerKey := r.ownerKey(ownerID)
	revoked := false

	err := r.watch(ctx, "delete owner sessions", func(tx *redis.Tx) error {
		revoked = false

		ids, err := tx.SMembers(ctx, ownerKey).Result()
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		dels := make([]*redis.IntCmd, 0, len(ids))
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, id := range ids {
				dels = append(dels, pipe.Del(ctx, r.key(id)))
			}
			pipe.Del(ctx, ownerKey)
			return nil
		})
		if err != nil {
			return err
		}

		// Keys Redis already expired are not counted as revoked.
		for _, del := range dels {
			if del.Val() > 0 {
				revoked = true
			}
		}
		return nil
	}, ownerKey)
	if err != nil {
		return false, err
	}

	return revoked, nil
}

// SweepExpired drops owner index entries whose session key has expired.
// Session keys themselves are expired by Redis through their TTL.
func (r *RedisStore) SweepExpired(ctx context.Context) (int, error) {
	count := 0
	iter := r.client.Scan(ctx, 0, r.ownerPrefix+"*", 100).Iterator()

	for iter.Next(ctx) {
		ownerKey := iter.Val()

		ids, err := r.client.SMembers(ctx, ownerKey).Result()
		if err != nil {
			return count, unavailable("sweep", err)
		}

		var stale []any
		for _, id := range ids {
			n, err := r.client.Exists(ctx, r.key(id)).Result()
			if err != nil {
				return count, unavailable("sweep", err)
			}
			if n == 0 {
				stale = append(stale, id)
			}
		}
		if len(stale) == 0 {
			continue
		}

		removed, err := r.client.SRem(ctx, ownerKey, stale...).Result()
		if err != nil {
			return count, unavailable("sweep", err)
		}
		count += int(removed)
	}
	if err := iter.Err(); err != nil {
		return count, unavailable("sweep", err)
	}

	return count, nil
}

func (r *RedisStore) load(ctx context.Context, c redis.Cmdable, sessionID string) (*Session, error) {
	val, err := c.Get(ctx, r.key(sessionID)).Result()
	if err == redis.Nil {
		return nil, nil // not found
	}
	if err != nil {
		return nil, unavailable("get", err)
	}

	var s Session
	if err := json.Unmarshal([]byte(val), &s); err != nil {
		return nil, fmt.Errorf("%w: %w", errDecode, err)
	}

	return &s, nil
}

func (r *RedisStore) remove(ctx context.Context, tx *redis.Tx, s *Session) error {
	_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key(s.ID))
		pipe.SRem(ctx, r.ownerKey(s.OwnerID), s.ID)
		return nil
	})
	return err
}

// watch runs fn in an optimistic transaction on keys, retrying when a
// concurrent writer touched them.
func (r *RedisStore) watch(ctx context.Context, op string, fn func(*redis.Tx) error, keys ...string) error {
	var err error
	for i := 0; i < maxTxRetries; i++ {
		err = r.client.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		break
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrUnavailable), errors.Is(err, errDecode):
		return err
	default:
		return unavailable(op, err)
	}
}
