package audit

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRepo appends events to a capped Redis stream.
type RedisRepo struct {
	rdb    *redis.Client
	stream string
	maxLen int64
}

func NewRedisRepo(rdb *redis.Client, stream string, maxLen int64) (*RedisRepo, error) {
	if rdb == nil {
		return nil, errors.New("audit: redis client is nil")
	}
	if stream == "" {
		return nil, errors.New("audit: stream key required")
	}
	if maxLen <= 0 {
		maxLen = 100_000
	}
	return &RedisRepo{rdb: rdb, stream: stream, maxLen: maxLen}, nil
}

func (r *RedisRepo) Append(ctx context.Context, e Event) error {
	return r.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		MaxLen: r.maxLen,
		Approx: true,
		Values: streamValues(e),
	}).Err()
}

func streamValues(e Event) map[string]any {
	v := map[string]any{
		"id":         e.ID,
		"type":       string(e.Type),
		"created_at": e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	set := func(k, val string) {
		if val != "" {
			v[k] = val
		}
	}
	set("identity", e.Identity)
	set("call_sid", e.CallSID)
	set("to", e.To)
	set("from", e.From)
	set("status", e.Status)
	set("ip_address", e.IPAddress)
	set("request_id", e.RequestID)
	set("message", e.Message)
	return v
}
