package engine

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// State is the round lifecycle state. Settlement legality is carried by the
// state itself: only StateRunning can settle, and the settling transition
// happens under the engine lock, so a second settlement of the same round
// is unrepresentable.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateRunning
	StateCashedOut
	StateCrashed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching_entropy"
	case StateRunning:
		return "running"
	case StateCashedOut:
		return "cashed_out"
	case StateCrashed:
		return "crashed"
	default:
		return "unknown"
	}
}

type OutcomeKind string

const (
	OutcomeCashedOut OutcomeKind = "cashed_out"
	OutcomeCrashed   OutcomeKind = "crashed"
)

// Outcome is the terminal result of one settled round.
type Outcome struct {
	RoundID    uuid.UUID       `json:"round_id"`
	Kind       OutcomeKind     `json:"kind"`
	Multiplier float64         `json:"multiplier"`
	CrashPoint float64         `json:"crash_point"`
	Payout     decimal.Decimal `json:"payout"`
	Quantum    bool            `json:"quantum"`
	Elapsed    float64         `json:"elapsed"`
}

type EventType string

const (
	EventState      EventType = "state"
	EventMultiplier EventType = "multiplier"
	EventSettled    EventType = "settled"
)

// Event is a published engine notification. Collaborators only ever read
// these; they never write engine state back.
type Event struct {
	Type       EventType       `json:"type"`
	RoundID    uuid.UUID       `json:"round_id"`
	State      State           `json:"-"`
	StateName  string          `json:"state"`
	Multiplier float64         `json:"multiplier"`
	Balance    decimal.Decimal `json:"balance"`
	Outcome    *Outcome        `json:"outcome,omitempty"`
}

// Sink receives engine events. It is invoked outside the engine lock and
// must not call back into the engine synchronously from the same goroutine
// if it wants to avoid self-serialization; reads through Snapshot are safe.
type Sink func(Event)
