// Package eventstore records the history of merge units in SQLite and derives
// per-unit summaries from it.
package eventstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// UnitSummary is a read model of one unit's history.
type UnitSummary struct {
	Unit         string    `json:"unit"`
	Status       string    `json:"status"`
	DiscoveredAt time.Time `json:"discovered_at,omitzero"`
	LastEventAt  time.Time `json:"last_event_at"`
	Attempts     int       `json:"attempts"`
	Failures     int       `json:"failures"`
	LastStrategy string    `json:"last_strategy,omitempty"`
	LastOutcome  string    `json:"last_outcome,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
}

// UnitHistoryProjection maintains an in-memory view of unit histories,
// reconstructed from events in the store.
type UnitHistoryProjection struct {
	mu       sync.RWMutex
	store    Store
	units    map[string]*UnitSummary
	lastSync time.Time
}

// NewUnitHistoryProjection creates a projection backed by store.
func NewUnitHistoryProjection(store Store) *UnitHistoryProjection {
	return &UnitHistoryProjection{store: store, units: make(map[string]*UnitSummary)}
}

// Rebuild reconstructs the projection from all events in the store.
func (p *UnitHistoryProjection) Rebuild(ctx context.Context) error {
	events, err := p.store.GetRange(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.units = make(map[string]*UnitSummary)
	for _, event := range events {
		p.applyEventLocked(event)
	}
	p.lastSync = time.Now()
	return nil
}

// Apply processes a single event.
func (p *UnitHistoryProjection) Apply(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyEventLocked(event)
}

func (p *UnitHistoryProjection) applyEventLocked(event Event) {
	unit := event.Unit()
	if unit == "" {
		return
	}
	summary, ok := p.units[unit]
	if !ok {
		summary = &UnitSummary{Unit: unit}
		p.units[unit] = summary
	}
	summary.LastEventAt = event.Timestamp()

	switch event.Type() {
	case TypeUnitDiscovered:
		summary.DiscoveredAt = event.Timestamp()
		var payload struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.Status = payload.Status
		}

	case TypeUnitMoved:
		var payload struct {
			To string `json:"to"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.Status = payload.To
		}

	case TypeMergeAttempted:
		summary.Attempts++
		var payload struct {
			Strategy string `json:"strategy"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.LastStrategy = payload.Strategy
		}

	case TypeMergeCompleted:
		var payload struct {
			Outcome string `json:"outcome"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.LastOutcome = payload.Outcome
		}

	case TypeMergeFailed:
		summary.Failures++
		summary.LastOutcome = "failed"
		var payload struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.LastError = payload.Error
		}
	}
}

// Get returns a copy of the summary for unit.
func (p *UnitHistoryProjection) Get(unit string) (*UnitSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	summary, ok := p.units[unit]
	if !ok {
		return nil, false
	}
	cp := *summary
	return &cp, true
}

// Summaries returns copies of all summaries, most recently active first.
func (p *UnitHistoryProjection) Summaries() []*UnitSummary {
	p.mu.RLock()
	out := make([]*UnitSummary, 0, len(p.units))
	for _, s := range p.units {
		cp := *s
		out = append(out, &cp)
	}
	p.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].LastEventAt.After(out[j].LastEventAt) })
	return out
}

// LastSyncTime returns when the projection was last rebuilt.
func (p *UnitHistoryProjection) LastSyncTime() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSync
}
