package nats

import "errors"

var (
	ErrEmptyURL          = errors.New("empty nats URL")
	ErrNATSNotReady      = errors.New("nats did not become ready within the given time period")
	ErrHealthcheckFailed = errors.New("nats healthcheck failed")
)
