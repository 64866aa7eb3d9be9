package nats_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/iapkit/pkg/logger"
	"github.com/dmitrymomot/iapkit/pkg/nats"
)

func TestConnectValidation(t *testing.T) {
	t.Parallel()

	_, err := nats.Connect(context.Background(), nats.Config{}, logger.Discard())
	assert.ErrorIs(t, err, nats.ErrEmptyURL)
}

func TestConnectUnreachable(t *testing.T) {
	t.Parallel()

	cfg := nats.Config{
		URL:            "nats://127.0.0.1:1",
		RetryAttempts:  2,
		RetryInterval:  time.Millisecond,
		ConnectTimeout: 100 * time.Millisecond,
	}
	_, err := nats.Connect(context.Background(), cfg, logger.Discard())
	assert.ErrorIs(t, err, nats.ErrNATSNotReady)
}

func TestHealthcheckNilConn(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, nats.Healthcheck(nil)(context.Background()), nats.ErrHealthcheckFailed)
}
