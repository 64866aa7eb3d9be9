// Package grantlog buffers purchases that were granted without a visible
// purchase flow, so the UI can tell the user about them later.
//
// The log is append-only and drained by take-and-clear: Drain returns the
// entries and empties the log in one step, so an entry is reported once.
package grantlog

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dmitrymomot/iapkit/pkg/grant"
)

// Entry is a silently granted purchase.
type Entry struct {
	ProductID     string          `json:"productId"`
	TransactionID string          `json:"transactionID,omitempty"`
	PurchaseToken string          `json:"purchaseToken,omitempty"`
	Grant         *grant.Response `json:"grant,omitempty"`
	GrantedAt     time.Time       `json:"grantedAt"`
}

// Log stores silently granted purchases.
type Log interface {
	Append(ctx context.Context, e Entry) error
	// Peek returns the entries without removing them.
	Peek(ctx context.Context) ([]Entry, error)
	// Drain returns the entries and clears the log atomically.
	Drain(ctx context.Context) ([]Entry, error)
}

// MemoryLog is a process-local Log.
type MemoryLog struct {
	mu      sync.Mutex
	entries []Entry
}

var _ Log = (*MemoryLog)(nil)

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

func (l *MemoryLog) Append(_ context.Context, e Entry) error {
	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()
	return nil
}

func (l *MemoryLog) Peek(context.Context) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.entries), nil
}

func (l *MemoryLog) Drain(context.Context) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.entries
	l.entries = nil
	return out, nil
}
