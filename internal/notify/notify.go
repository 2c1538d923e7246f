// Package notify publishes merge unit notifications: new TODO arrivals and
// status moves.
package notify

import (
	"context"
	"sync"
	"time"
)

// NewUnit announces a unit discovered in the todo folder.
type NewUnit struct {
	Unit       string    `json:"unit"`
	Host       string    `json:"host"`
	Repository string    `json:"repository"`
	Date       time.Time `json:"date"`
	Timestamp  time.Time `json:"timestamp"`
}

// Moved announces a status change.
type Moved struct {
	Unit      string    `json:"unit"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	AttemptID string    `json:"attempt_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher delivers notifications. Implementations must be safe for concurrent use.
type Publisher interface {
	PublishNew(ctx context.Context, msg NewUnit) error
	PublishMoved(ctx context.Context, msg Moved) error
	Close() error
}

// NoopPublisher drops every notification (default when notify is not configured).
type NoopPublisher struct{}

func (NoopPublisher) PublishNew(context.Context, NewUnit) error { return nil }
func (NoopPublisher) PublishMoved(context.Context, Moved) error { return nil }
func (NoopPublisher) Close() error                              { return nil }

// OrNoop returns p, or NoopPublisher when p is nil.
func OrNoop(p Publisher) Publisher {
	if p == nil {
		return NoopPublisher{}
	}
	return p
}

// MemoryPublisher keeps notifications in memory, for tests and dry runs.
type MemoryPublisher struct {
	mu    sync.Mutex
	news  []NewUnit
	moves []Moved
}

func (m *MemoryPublisher) PublishNew(_ context.Context, msg NewUnit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.news = append(m.news, msg)
	return nil
}

func (m *MemoryPublisher) PublishMoved(_ context.Context, msg Moved) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.moves = append(m.moves, msg)
	return nil
}

func (m *MemoryPublisher) Close() error { return nil }

// News returns a copy of the published arrivals.
func (m *MemoryPublisher) News() []NewUnit {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]NewUnit(nil), m.news...)
}

// Moves returns a copy of the published moves.
func (m *MemoryPublisher) Moves() []Moved {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Moved(nil), m.moves...)
}
