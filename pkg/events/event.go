package events

import (
	"context"
	"time"
)

// Name identifies an event.
type Name string

const (
	Initialized           Name = "initialized"
	PurchaseStart         Name = "purchase_start"
	PurchaseComplete      Name = "purchase_complete"
	PackageFetchSuccess   Name = "package_fetch_success"
	PackageFetchFail      Name = "package_fetch_fail"
	PlayPassStatusUpdated Name = "play_pass_status_updated"
	SilentPurchaseSuccess Name = "silent_purchase_success"
)

// Event is a dispatched notification.
type Event struct {
	Name    Name      `json:"name"`
	Payload any       `json:"payload,omitempty"`
	At      time.Time `json:"at"`
}

// Handler receives events.
type Handler func(ctx context.Context, e Event)
