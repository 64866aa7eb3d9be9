package grantlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrStorage = errors.New("grantlog: storage failure")

// RedisConfig configures RedisLog.
type RedisConfig struct {
	KeyPrefix string        `env:"GRANTLOG_KEY_PREFIX" envDefault:"iap:granted:"`
	TTL       time.Duration `env:"GRANTLOG_TTL" envDefault:"720h"`
}

// RedisLog keeps one list per user so a reinstalled app can still report
// purchases granted before it was killed.
type RedisLog struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

var _ Log = (*RedisLog)(nil)

// NewRedisLog stores entries for userID under cfg.KeyPrefix+userID.
func NewRedisLog(client redis.UniversalClient, userID string, cfg RedisConfig) *RedisLog {
	return &RedisLog{
		client: client,
		key:    cfg.KeyPrefix + userID,
		ttl:    cfg.TTL,
	}
}

// Key returns the list key.
func (l *RedisLog) Key() string { return l.key }

func (l *RedisLog) Append(ctx context.Context, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	_, err = l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, l.key, data)
		if l.ttl > 0 {
			pipe.Expire(ctx, l.key, l.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return nil
}

func (l *RedisLog) Peek(ctx context.Context) ([]Entry, error) {
	raw, err := l.client.LRange(ctx, l.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return decode(raw)
}

func (l *RedisLog) Drain(ctx context.Context) ([]Entry, error) {
	var rng *redis.StringSliceCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		rng = pipe.LRange(ctx, l.key, 0, -1)
		pipe.Del(ctx, l.key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return decode(rng.Val())
}

func decode(raw []string) ([]Entry, error) {
	out := make([]Entry, 0, len(raw))
	for _, s := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			return out, fmt.Errorf("%w: corrupt entry: %w", ErrStorage, err)
		}
		out = append(out, e)
	}
	return out, nil
}
