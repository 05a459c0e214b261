package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/visit-trip-linker/internal/models"
)

// RedisStore keeps recent runs in Redis: a hash with the run metadata and a
// list of JSON records in emission order, both expiring after ttl.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(addr, password, prefix string, ttl time.Duration) *RedisStore {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisStore{client: c, prefix: prefix, ttl: ttl}
}

func (r *RedisStore) SaveRun(ctx context.Context, run models.Run, records []models.MatchRecord) error {
	values := make([]interface{}, 0, len(records))
	for _, rec := range records {
		b, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		values = append(values, b)
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.runKey(run.ID), map[string]interface{}{
			"source":     run.Source,
			"visits":     run.Visits,
			"trip_legs":  run.TripLegs,
			"created_at": run.CreatedAt.Format(time.RFC3339),
		})
		pipe.Del(ctx, r.recordsKey(run.ID))
		if len(values) > 0 {
			pipe.RPush(ctx, r.recordsKey(run.ID), values...)
		}
		if r.ttl > 0 {
			pipe.Expire(ctx, r.runKey(run.ID), r.ttl)
			pipe.Expire(ctx, r.recordsKey(run.ID), r.ttl)
		}
		return nil
	})
	return err
}

func (r *RedisStore) Records(ctx context.Context, runID string) ([]models.MatchRecord, error) {
	n, err := r.client.Exists(ctx, r.runKey(runID)).Result()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrRunNotFound
	}
	raw, err := r.client.LRange(ctx, r.recordsKey(runID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.MatchRecord, 0, len(raw))
	for i, s := range raw {
		var rec models.MatchRecord
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			return nil, fmt.Errorf("decode record %d of run %s: %w", i, runID, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *RedisStore) Ping(ctx context.Context) error { return r.client.Ping(ctx).Err() }

func (r *RedisStore) Close() error { return r.client.Close() }

func (r *RedisStore) runKey(id string) string { return fmt.Sprintf("%s:run:%s", r.prefix, id) }
func (r *RedisStore) recordsKey(id string) string {
	return fmt.Sprintf("%s:run:%s:records", r.prefix, id)
}
