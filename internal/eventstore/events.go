package eventstore

import (
	"encoding/json"
	"time"

	"git.home.luguber.info/inful/mergekeeper/internal/foundation/errors"
)

// Event type names.
const (
	TypeUnitDiscovered = "UnitDiscovered"
	TypeUnitMoved      = "UnitMoved"
	TypeMergeAttempted = "MergeAttempted"
	TypeMergeCompleted = "MergeCompleted"
	TypeMergeFailed    = "MergeFailed"
)

func newEvent(unit, eventType string, payload any) (BaseEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return BaseEvent{}, errors.EventStoreError("failed to marshal "+eventType+" payload").
			WithCause(err).
			WithContext("unit", unit).
			Build()
	}
	return BaseEvent{
		EventUnit:      unit,
		EventType:      eventType,
		EventTimestamp: time.Now(),
		EventPayload:   data,
	}, nil
}

// UnitDiscovered is emitted when a refresh finds a unit it did not know.
type UnitDiscovered struct {
	BaseEvent `json:"-"`
	Status     string    `json:"status"`
	Host       string    `json:"host"`
	Repository string    `json:"repository"`
	Date       time.Time `json:"date"`
}

// NewUnitDiscovered creates a UnitDiscovered event.
func NewUnitDiscovered(unit, status, host, repository string, date time.Time) (*UnitDiscovered, error) {
	e := &UnitDiscovered{Status: status, Host: host, Repository: repository, Date: date}
	base, err := newEvent(unit, TypeUnitDiscovered, e)
	if err != nil {
		return nil, err
	}
	e.BaseEvent = base
	return e, nil
}

// UnitMoved is emitted after a descriptor changed status.
type UnitMoved struct {
	BaseEvent `json:"-"`
	From      string `json:"from"`
	To        string `json:"to"`
	AttemptID string `json:"attempt_id,omitempty"`
}

// NewUnitMoved creates a UnitMoved event. attemptID may be empty for moves
// outside a merge attempt.
func NewUnitMoved(unit, from, to, attemptID string) (*UnitMoved, error) {
	e := &UnitMoved{From: from, To: to, AttemptID: attemptID}
	base, err := newEvent(unit, TypeUnitMoved, e)
	if err != nil {
		return nil, err
	}
	e.BaseEvent = base
	return e, nil
}

// MergeAttempted is emitted when a merge attempt starts.
type MergeAttempted struct {
	BaseEvent `json:"-"`
	AttemptID string `json:"attempt_id"`
	Strategy  string `json:"strategy"`
	Automatic bool   `json:"automatic,omitempty"`
}

// NewMergeAttempted creates a MergeAttempted event.
func NewMergeAttempted(unit, attemptID, strategy string, automatic bool) (*MergeAttempted, error) {
	e := &MergeAttempted{AttemptID: attemptID, Strategy: strategy, Automatic: automatic}
	base, err := newEvent(unit, TypeMergeAttempted, e)
	if err != nil {
		return nil, err
	}
	e.BaseEvent = base
	return e, nil
}

// MergeCompleted is emitted when an attempt ends without error.
type MergeCompleted struct {
	BaseEvent `json:"-"`
	AttemptID string        `json:"attempt_id"`
	Outcome   string        `json:"outcome"`
	Revision  int64         `json:"revision,omitempty"`
	Duration  time.Duration `json:"duration_ms"`
}

// NewMergeCompleted creates a MergeCompleted event.
func NewMergeCompleted(unit, attemptID, outcome string, revision int64, duration time.Duration) (*MergeCompleted, error) {
	e := &MergeCompleted{AttemptID: attemptID, Outcome: outcome, Revision: revision, Duration: duration}
	base, err := newEvent(unit, TypeMergeCompleted, map[string]any{
		"attempt_id":  attemptID,
		"outcome":     outcome,
		"revision":    revision,
		"duration_ms": duration.Milliseconds(),
	})
	if err != nil {
		return nil, err
	}
	e.BaseEvent = base
	return e, nil
}

// MergeFailed is emitted when an attempt ends with an error.
type MergeFailed struct {
	BaseEvent `json:"-"`
	AttemptID string `json:"attempt_id"`
	Stage     string `json:"stage"`
	Error     string `json:"error"`
}

// NewMergeFailed creates a MergeFailed event.
func NewMergeFailed(unit, attemptID, stage string, cause error) (*MergeFailed, error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	e := &MergeFailed{AttemptID: attemptID, Stage: stage, Error: msg}
	base, err := newEvent(unit, TypeMergeFailed, e)
	if err != nil {
		return nil, err
	}
	e.BaseEvent = base
	return e, nil
}
