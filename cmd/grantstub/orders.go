package main

import (
	"context"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// orderStore remembers granted transactions. Claim reports false when the
// transaction was granted before.
type orderStore interface {
	Claim(ctx context.Context, transactionID, orderID string) (bool, error)
}

type memoryOrders struct {
	mu   sync.Mutex
	seen map[string]string
}

func newMemoryOrders() *memoryOrders {
	return &memoryOrders{seen: make(map[string]string)}
}

func (m *memoryOrders) Claim(_ context.Context, txn, orderID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[txn]; ok {
		return false, nil
	}
	m.seen[txn] = orderID
	return true, nil
}

const orderKeyPrefix = "grantstub:order:"

type redisOrders struct {
	client goredis.UniversalClient
	ttl    time.Duration
}

func newRedisOrders(client goredis.UniversalClient, ttl time.Duration) *redisOrders {
	return &redisOrders{client: client, ttl: ttl}
}

func (r *redisOrders) Claim(ctx context.Context, txn, orderID string) (bool, error) {
	return r.client.SetNX(ctx, orderKeyPrefix+txn, orderID, r.ttl).Result()
}
