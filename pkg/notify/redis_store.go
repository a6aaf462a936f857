package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on top of Redis. The global and per-recipient
// logs are Redis lists maintained with LPUSH+LTRIM inside a transaction, so
// append-then-trim is atomic per key and Redis itself is the serialization
// point for concurrent writers. The sliding expiration of recipient logs
// maps to EXPIRE, reset on every write. Counters live in a single hash.
type RedisStore struct {
	client       redis.UniversalClient
	keyPrefix    string
	globalCap    int
	recipientCap int
	recipientTTL time.Duration
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithKeyPrefix overrides the key namespace, default "notifyhub:".
func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.keyPrefix = prefix
		}
	}
}

// WithRedisGlobalCap overrides the global log capacity.
func WithRedisGlobalCap(n int) RedisStoreOption {
	return func(s *RedisStore) {
		if n > 0 {
			s.globalCap = n
		}
	}
}

// WithRedisRecipientCap overrides the per-recipient log capacity.
func WithRedisRecipientCap(n int) RedisStoreOption {
	return func(s *RedisStore) {
		if n > 0 {
			s.recipientCap = n
		}
	}
}

// WithRedisRecipientTTL overrides the sliding expiration window.
func WithRedisRecipientTTL(d time.Duration) RedisStoreOption {
	return func(s *RedisStore) {
		if d > 0 {
			s.recipientTTL = d
		}
	}
}

// NewRedisStore creates a Redis-backed notification store.
func NewRedisStore(client redis.UniversalClient, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{
		client:       client,
		keyPrefix:    "notifyhub:",
		globalCap:    DefaultGlobalCap,
		recipientCap: DefaultRecipientCap,
		recipientTTL: DefaultRecipientTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) globalKey() string             { return s.keyPrefix + "feed:global" }
func (s *RedisStore) recipientKey(id string) string { return s.keyPrefix + "feed:recipient:" + id }
func (s *RedisStore) statsKey() string              { return s.keyPrefix + "stats" }

// storeErr marks backend failures as ErrStoreUnavailable so callers can
// distinguish an unreachable store from domain errors.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	return errors.Join(ErrStoreUnavailable, err)
}

func (s *RedisStore) AppendGlobal(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, s.globalKey(), payload)
	pipe.LTrim(ctx, s.globalKey(), 0, int64(s.globalCap)-1)
	_, err = pipe.Exec(ctx)
	return storeErr(err)
}

func (s *RedisStore) AppendRecipient(ctx context.Context, recipientID string, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}

	key := s.recipientKey(recipientID)
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, int64(s.recipientCap)-1)
	pipe.Expire(ctx, key, s.recipientTTL)
	_, err = pipe.Exec(ctx)
	return storeErr(err)
}

func (s *RedisStore) RecentGlobal(ctx context.Context, limit int) ([]Notification, error) {
	if limit <= 0 || limit > s.globalCap {
		limit = s.globalCap
	}
	return s.readLog(ctx, s.globalKey(), limit)
}

func (s *RedisStore) RecentForRecipient(ctx context.Context, recipientID string, limit int) ([]Notification, error) {
	if limit <= 0 || limit > s.recipientCap {
		limit = s.recipientCap
	}
	// An expired key simply no longer exists; LRANGE on a missing key reads
	// as an empty list, which is exactly the silent-expiration contract.
	return s.readLog(ctx, s.recipientKey(recipientID), limit)
}

func (s *RedisStore) readLog(ctx context.Context, key string, limit int) ([]Notification, error) {
	raw, err := s.client.LRange(ctx, key, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, storeErr(err)
	}

	out := make([]Notification, 0, len(raw))
	for _, item := range raw {
		var n Notification
		if err := json.Unmarshal([]byte(item), &n); err != nil {
			return nil, errors.Join(ErrCorruptRecord, err)
		}
		out = append(out, n)
	}
	return out, nil
}

// markReadRetries bounds optimistic-lock retries when a concurrent append
// invalidates the watched key.
const markReadRetries = 3

func (s *RedisStore) MarkRead(ctx context.Context, recipientID string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	idSet := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		idSet[id] = struct{}{}
	}
	key := s.recipientKey(recipientID)

	update := func(tx *redis.Tx) error {
		raw, err := tx.LRange(ctx, key, 0, -1).Result()
		if err != nil {
			return err
		}

		type change struct {
			index   int64
			payload string
		}
		var changes []change
		for i, item := range raw {
			var n Notification
			if err := json.Unmarshal([]byte(item), &n); err != nil {
				return errors.Join(ErrCorruptRecord, err)
			}
			if _, ok := idSet[n.ID]; !ok || n.Read {
				continue
			}
			n.Read = true
			payload, err := json.Marshal(n)
			if err != nil {
				return err
			}
			changes = append(changes, change{index: int64(i), payload: string(payload)})
		}
		if len(changes) == 0 {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, c := range changes {
				pipe.LSet(ctx, key, c.index, c.payload)
			}
			return nil
		})
		return err
	}

	var err error
	for range markReadRetries {
		err = s.client.Watch(ctx, update, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr):
		// The watched key kept changing under concurrent appends. The
		// backend is fine; the caller lost the race and may retry.
		return errors.Join(ErrWriteConflict, err)
	case errors.Is(err, ErrCorruptRecord):
		return err
	default:
		return storeErr(err)
	}
}

func (s *RedisStore) CountUnread(ctx context.Context, recipientID string) (int, error) {
	entries, err := s.readLog(ctx, s.recipientKey(recipientID), s.recipientCap)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, n := range entries {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

func (s *RedisStore) IncrCounter(ctx context.Context, key string) error {
	return storeErr(s.client.HIncrBy(ctx, s.statsKey(), key, 1).Err())
}

func (s *RedisStore) Counters(ctx context.Context) (map[string]int64, error) {
	raw, err := s.client.HGetAll(ctx, s.statsKey()).Result()
	if err != nil {
		return nil, storeErr(err)
	}

	out := make(map[string]int64, len(raw))
	for k, v := range raw {
		count, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, errors.Join(ErrCorruptRecord, err)
		}
		out[k] = count
	}
	return out, nil
}

func (s *RedisStore) Healthcheck(ctx context.Context) error {
	return storeErr(s.client.Ping(ctx).Err())
}
