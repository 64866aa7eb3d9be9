package grantlog_test

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/iapkit/pkg/grant"
	"github.com/dmitrymomot/iapkit/pkg/grantlog"
	"github.com/dmitrymomot/iapkit/pkg/redis"
)

func entry(t *testing.T, product string) grantlog.Entry {
	t.Helper()
	var resp grant.Response
	require.NoError(t, json.Unmarshal([]byte(`{"coins":100}`), &resp))
	return grantlog.Entry{
		ProductID:     product,
		TransactionID: "GPA." + product,
		PurchaseToken: "tok-" + product,
		Grant:         &resp,
		GrantedAt:     time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func exercise(t *testing.T, log grantlog.Log) {
	t.Helper()
	ctx := context.Background()

	got, err := log.Drain(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, log.Append(ctx, entry(t, "coins_100")))
	require.NoError(t, log.Append(ctx, entry(t, "coins_500")))

	peeked, err := log.Peek(ctx)
	require.NoError(t, err)
	require.Len(t, peeked, 2)
	assert.Equal(t, "coins_100", peeked[0].ProductID)

	drained, err := log.Drain(ctx)
	require.NoError(t, err)
	require.Len(t, drained, 2)
	assert.Equal(t, "coins_500", drained[1].ProductID)
	assert.Equal(t, "tok-coins_500", drained[1].PurchaseToken)

	var coins int
	assert.True(t, drained[0].Grant.Field("coins", &coins))
	assert.Equal(t, 100, coins)

	again, err := log.Drain(ctx)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestMemoryLog(t *testing.T) {
	t.Parallel()
	exercise(t, grantlog.NewMemoryLog())
}

func TestMemoryLogPeekIsCopy(t *testing.T) {
	t.Parallel()

	log := grantlog.NewMemoryLog()
	require.NoError(t, log.Append(context.Background(), entry(t, "a")))
	peeked, _ := log.Peek(context.Background())
	peeked[0].ProductID = "changed"

	again, _ := log.Peek(context.Background())
	assert.Equal(t, "a", again[0].ProductID)
}

func TestRedisLog(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	ctx := context.Background()

	client, err := redis.Connect(ctx, redis.Config{ConnectionURL: url, RetryAttempts: 1})
	require.NoError(t, err)
	defer client.Close()

	log := grantlog.NewRedisLog(client, uuid.NewString(), grantlog.RedisConfig{KeyPrefix: "iapkit:test:", TTL: time.Minute})
	defer client.Del(ctx, log.Key())

	exercise(t, log)

	require.NoError(t, client.RPush(ctx, log.Key(), "not json").Err())
	_, err = log.Peek(ctx)
	assert.ErrorIs(t, err, grantlog.ErrStorage)
}
