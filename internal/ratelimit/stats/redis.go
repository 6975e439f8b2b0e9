// Package stats persists rate limit decision counters outside the process.
// It is used for reporting only; admission decisions never read from it.
package stats

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"throttle/internal/ratelimit"

	"github.com/redis/go-redis/v9"
)

// Bucket granularities for time series counters.
const (
	BucketMinute = "minute"
	BucketNone   = "none"
)

// RedisRecorder counts allowed and denied decisions in Redis hashes:
//
//	<prefix>:total                 allowed / denied, never expires
//	<prefix>:minute:<yyyymmddhhmm> allowed / denied per minute
//	<prefix>:route                 "<METHOD> <path>:allowed|denied"
//	<prefix>:key:<client>          allowed / denied per client (opt-in)
type RedisRecorder struct {
	rdb redis.Cmdable

	prefix    string
	ttl       time.Duration
	bucket    string
	trackKeys bool
	timeout   time.Duration
}

// RedisOption configures a RedisRecorder.
type RedisOption func(*RedisRecorder)

// WithPrefix sets the key prefix. Surrounding colons are trimmed.
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisRecorder) {
		if p := strings.Trim(prefix, ":"); p != "" {
			s.prefix = p
		}
	}
}

// WithTTL sets the expiry of time series and per-client hashes.
func WithTTL(d time.Duration) RedisOption {
	return func(s *RedisRecorder) { s.ttl = d }
}

// WithBucket selects BucketMinute or BucketNone.
func WithBucket(bucket string) RedisOption {
	return func(s *RedisRecorder) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

// WithTrackKeys enables per-client counters. Cardinality grows with the
// number of distinct clients.
func WithTrackKeys(track bool) RedisOption {
	return func(s *RedisRecorder) { s.trackKeys = track }
}

// WithTimeout bounds each Record call.
func WithTimeout(d time.Duration) RedisOption {
	return func(s *RedisRecorder) { s.timeout = d }
}

// NewRedisRecorder creates a recorder writing through rdb.
func NewRedisRecorder(rdb redis.Cmdable, opts ...RedisOption) *RedisRecorder {
	s := &RedisRecorder{
		rdb:     rdb,
		prefix:  "ratelimit:stats",
		ttl:     24 * time.Hour,
		bucket:  BucketMinute,
		timeout: 250 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record implements ratelimit.Recorder.
func (s *RedisRecorder) Record(ctx context.Context, ev ratelimit.Event) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	field := "denied"
	if ev.Allowed {
		field = "allowed"
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
	}

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.TotalKey(), field, 1)

	if s.bucket == BucketMinute {
		bucketKey := s.MinuteKey(at)
		pipe.HIncrBy(ctx, bucketKey, field, 1)
		if s.ttl > 0 {
			pipe.Expire(ctx, bucketKey, s.ttl)
		}
	}

	if route := strings.TrimSpace(strings.TrimSpace(ev.Method) + " " + strings.TrimSpace(ev.Path)); route != "" {
		pipe.HIncrBy(ctx, s.prefix+":route", route+":"+field, 1)
	}

	if s.trackKeys {
		if k := strings.TrimSpace(string(ev.Key)); k != "" {
			keyKey := s.prefix + ":key:" + k
			pipe.HIncrBy(ctx, keyKey, field, 1)
			if s.ttl > 0 {
				pipe.Expire(ctx, keyKey, s.ttl)
			}
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record rate limit stats: %w", err)
	}
	return nil
}

// Totals returns the cumulative allowed and denied counters.
func (s *RedisRecorder) Totals(ctx context.Context) (allowed, denied int64, err error) {
	vals, err := s.rdb.HMGet(ctx, s.TotalKey(), "allowed", "denied").Result()
	if err != nil {
		return 0, 0, fmt.Errorf("read rate limit totals: %w", err)
	}
	return toInt64(vals[0]), toInt64(vals[1]), nil
}

// TotalKey is the hash holding cumulative counters.
func (s *RedisRecorder) TotalKey() string {
	return s.prefix + ":total"
}

// MinuteKey is the hash holding counters for the minute containing at.
func (s *RedisRecorder) MinuteKey(at time.Time) string {
	return fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
}

func toInt64(v interface{}) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
