package nats

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/dmitrymomot/iapkit/pkg/logger"
)

// Publisher publishes raw messages on a subject.
type Publisher interface {
	Publish(subject string, data []byte) error
}

var _ Publisher = (*nats.Conn)(nil)

// Connect dials the server, retrying cfg.RetryAttempts times.
func Connect(ctx context.Context, cfg Config, log *slog.Logger) (*nats.Conn, error) {
	if cfg.URL == "" {
		return nil, ErrEmptyURL
	}
	if log == nil {
		log = slog.Default()
	}

	opts := []nats.Option{
		nats.Name(cfg.ClientName),
		nats.Timeout(cfg.ConnectTimeout),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", logger.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
	}

	attempts := max(cfg.RetryAttempts, 1)
	var lastErr error
	for i := range attempts {
		conn, err := nats.Connect(cfg.URL, opts...)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		log.WarnContext(ctx, "nats connect failed", slog.Int("attempt", i+1), logger.Error(err))

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrNATSNotReady, ctx.Err())
		case <-time.After(cfg.RetryInterval):
		}
	}
	return nil, errors.Join(ErrNATSNotReady, lastErr)
}

// Healthcheck reports whether conn is connected.
func Healthcheck(conn *nats.Conn) func(context.Context) error {
	return func(context.Context) error {
		if conn == nil || !conn.IsConnected() {
			return ErrHealthcheckFailed
		}
		return nil
	}
}
