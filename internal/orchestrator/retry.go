package orchestrator

// State of the workspace merge retry loop.
type State int

const (
	StateAttempting State = iota
	StateAwaitingChoice
	StateSucceeded
	StateAbandoned
)

func (s State) String() string {
	switch s {
	case StateAttempting:
		return "attempting"
	case StateAwaitingChoice:
		return "awaiting_choice"
	case StateSucceeded:
		return "succeeded"
	case StateAbandoned:
		return "abandoned"
	}
	return "unknown"
}

// Terminal reports whether the loop ends in s.
func (s State) Terminal() bool { return s == StateSucceeded || s == StateAbandoned }

// Event drives the retry loop.
type Event int

const (
	EventMergeSucceeded Event = iota
	EventMergeFailed
	EventRetry
	EventAbandon
)

// Next returns the state following s on e. Events that do not apply in s
// leave it unchanged and report false.
func Next(s State, e Event) (State, bool) {
	switch s {
	case StateAttempting:
		switch e {
		case EventMergeSucceeded:
			return StateSucceeded, true
		case EventMergeFailed:
			return StateAwaitingChoice, true
		}
	case StateAwaitingChoice:
		switch e {
		case EventRetry:
			return StateAttempting, true
		case EventAbandon:
			return StateAbandoned, true
		}
	}
	return s, false
}
