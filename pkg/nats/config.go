package nats

import "time"

type Config struct {
	URL            string        `env:"NATS_URL" envDefault:"nats://127.0.0.1:4222"`
	ClientName     string        `env:"NATS_CLIENT_NAME" envDefault:"iapkit"`
	ReconnectWait  time.Duration `env:"NATS_RECONNECT_WAIT" envDefault:"2s"`
	MaxReconnects  int           `env:"NATS_MAX_RECONNECTS" envDefault:"10"`
	RetryAttempts  int           `env:"NATS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"NATS_RETRY_INTERVAL" envDefault:"2s"`
	ConnectTimeout time.Duration `env:"NATS_CONNECT_TIMEOUT" envDefault:"5s"`
	EventsSubject  string        `env:"NATS_EVENTS_SUBJECT" envDefault:"iap.events"`
	MetricsSubject string        `env:"NATS_ANALYTICS_SUBJECT" envDefault:"iap.analytics"`
}
