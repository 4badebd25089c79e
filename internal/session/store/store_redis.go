package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"storefront/internal/session/models"
	id "storefront/pkg/domain"
	"storefront/pkg/platform/sentinel"
)

var (
	redisOpDurationMs = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_session_store_redis_duration_ms",
		Help:    "Latency of Redis session store operations in milliseconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50},
	}, []string{"op"})
)

const (
	// Redis key prefix for session state
	sessionKeyPrefix = "sf:session:"
)

// RedisStore shares session state between gateway instances. Writes use
// WATCH/MULTI so the version check and the write are atomic.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func sessionKey(sid id.BrowserSessionID) string {
	return sessionKeyPrefix + sid.String()
}

func (s *RedisStore) Load(ctx context.Context, sid id.BrowserSessionID) (models.State, error) {
	defer observe("load", time.Now())

	data, err := s.client.Get(ctx, sessionKey(sid)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.State{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.State{}, fmt.Errorf("load session: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
	return decodeState(data)
}

// Save stores state if the stored version still equals expectedVersion
// (0 for "no state yet") and returns it with the bumped version.
func (s *RedisStore) Save(ctx context.Context, sid id.BrowserSessionID, state models.State, expectedVersion uint64) (models.State, error) {
	defer observe("save", time.Now())

	key := sessionKey(sid)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		var current uint64
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			stored, err := decodeState(data)
			if err != nil {
				return err
			}
			current = stored.Version
		}
		if current != expectedVersion {
			return sentinel.ErrConflict
		}

		state.Version = expectedVersion + 1
		encoded, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, s.ttl)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return state, nil
	case errors.Is(err, sentinel.ErrConflict), errors.Is(err, redis.TxFailedErr):
		return models.State{}, sentinel.ErrConflict
	default:
		return models.State{}, fmt.Errorf("save session: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
}

// Touch restarts the key TTL so active sessions slide forward.
func (s *RedisStore) Touch(ctx context.Context, sid id.BrowserSessionID) error {
	defer observe("touch", time.Now())

	ok, err := s.client.Expire(ctx, sessionKey(sid), s.ttl).Result()
	if err != nil {
		return fmt.Errorf("touch session: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
	if !ok {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, sid id.BrowserSessionID) error {
	defer observe("delete", time.Now())

	if err := s.client.Del(ctx, sessionKey(sid)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
	return nil
}

func decodeState(data []byte) (models.State, error) {
	var state models.State
	if err := json.Unmarshal(data, &state); err != nil {
		return models.State{}, fmt.Errorf("decode session: %w", err)
	}
	return state, nil
}

func observe(op string, start time.Time) {
	redisOpDurationMs.WithLabelValues(op).Observe(float64(time.Since(start).Microseconds()) / 1000.0)
}
