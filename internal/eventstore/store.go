package eventstore

import (
	"context"
	"time"
)

// Store persists and retrieves unit history.
type Store interface {
	// Append adds an event; the timestamp is assigned by the store.
	Append(ctx context.Context, unit, eventType string, payload []byte, metadata map[string]string) error

	// GetByUnit retrieves all events of one unit, oldest first.
	GetByUnit(ctx context.Context, unit string) ([]Event, error)

	// GetRange retrieves events within a time range, oldest first.
	GetRange(ctx context.Context, start, end time.Time) ([]Event, error)

	// Close closes the store and releases resources.
	Close() error
}

// Record appends ev to s. A nil store records nothing.
func Record(ctx context.Context, s Store, ev Event) error {
	if s == nil || ev == nil {
		return nil
	}
	return s.Append(ctx, ev.Unit(), ev.Type(), ev.Payload(), ev.Metadata())
}
