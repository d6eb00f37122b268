package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/qubitplay/quantum-crash-go/internal/config"
	"github.com/qubitplay/quantum-crash-go/internal/entropy"
)

var (
	ErrRoundInProgress     = errors.New("round already in progress")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNoActiveRound       = errors.New("no active round")
	ErrWrongRound          = errors.New("round id does not match the live round")
)

// Source draws one 16-bit entropy sample per round. Draw never fails.
type Source interface {
	Draw(ctx context.Context) entropy.Sample
}

// Engine owns the per-round state machine: it drives the asynchronous crash
// threshold derivation, advances the live multiplier, and arbitrates the
// race between cash-out and crash with at-most-once settlement.
//
// All mutable round state is owned exclusively by the engine and guarded by
// mu. The crash threshold is fixed before StateRunning is entered, so ticks
// and cash-out requests always observe a stable threshold.
type Engine struct {
	cfg    config.Game
	k      float64
	source Source
	log    *slog.Logger
	sink   Sink

	mu         sync.Mutex
	state      State
	generation uint64
	balance    decimal.Decimal

	roundID    uuid.UUID
	crashPoint float64
	elapsed    float64
	current    float64
	quantum    bool
	lastOut    *Outcome
}

// Snapshot is a point-in-time read of published engine state.
type Snapshot struct {
	State      State           `json:"-"`
	StateName  string          `json:"state"`
	Balance    decimal.Decimal `json:"balance"`
	RoundID    uuid.UUID       `json:"round_id,omitempty"`
	Multiplier float64         `json:"multiplier"`
	Elapsed    float64         `json:"elapsed"`
	Outcome    *Outcome        `json:"last_outcome,omitempty"`
}

func New(cfg config.Game, source Source, log *slog.Logger, sink Sink) *Engine {
	if sink == nil {
		sink = func(Event) {}
	}

	return &Engine{
		cfg:     cfg,
		k:       GrowthRate(cfg.TargetMultiplier, cfg.TargetTime),
		source:  source,
		log:     log,
		sink:    sink,
		state:   StateIdle,
		balance: cfg.StartingBalance,
		current: 1.0,
	}
}

// RequestStart begins a new round: debits the wager and kicks off the
// asynchronous entropy draw. Rejected when a round is live or the balance
// cannot cover the wager; rejection leaves the engine untouched.
func (e *Engine) RequestStart(ctx context.Context) (uuid.UUID, error) {
	const op = "engine.RequestStart"

	e.mu.Lock()

	if e.state != StateIdle {
		e.mu.Unlock()
		return uuid.Nil, ErrRoundInProgress
	}

	if e.balance.LessThan(e.cfg.WagerCost) {
		e.mu.Unlock()
		return uuid.Nil, ErrInsufficientBalance
	}

	e.balance = e.balance.Sub(e.cfg.WagerCost)
	e.generation++
	gen := e.generation

	e.roundID = uuid.New()
	e.state = StateFetching
	e.crashPoint = 0
	e.elapsed = 0
	e.current = 1.0
	e.lastOut = nil

	id := e.roundID
	ev := e.stateEventLocked()
	e.mu.Unlock()

	e.log.Info("round started, fetching entropy",
		slog.String("op", op), slog.String("round_id", id.String()))

	e.emit(ev)

	// The fetch must outlive the caller's request context: cancellation of
	// the start request does not abort the round, the generation guard
	// alone decides whether the result still applies.
	go e.fetch(context.WithoutCancel(ctx), gen)

	return id, nil
}

// fetch draws the round's entropy and applies it under the generation
// guard. The draw is floored to MinFetchDelay so a fast local fallback does
// not make the fetching phase feel instantaneous.
func (e *Engine) fetch(ctx context.Context, gen uint64) {
	started := time.Now()
	sample := e.source.Draw(ctx)

	if wait := e.cfg.MinFetchDelay - time.Since(started); wait > 0 {
		time.Sleep(wait)
	}

	e.applyEntropy(gen, sample)
}

// applyEntropy installs the crash threshold and enters StateRunning, unless
// the round that issued the fetch has been superseded: a stale result is
// discarded, never applied.
func (e *Engine) applyEntropy(gen uint64, sample entropy.Sample) {
	const op = "engine.applyEntropy"

	e.mu.Lock()

	if e.generation != gen || e.state != StateFetching {
		e.mu.Unlock()
		e.log.Debug("discarding stale entropy result", slog.String("op", op))
		return
	}

	e.crashPoint = CrashPoint(sample.Value, e.cfg.HouseEdge, e.cfg.MaxMultiplier)
	e.quantum = sample.Quantum
	e.elapsed = 0
	e.current = 1.0
	e.state = StateRunning

	ev := e.stateEventLocked()
	e.mu.Unlock()

	e.log.Info("round running",
		slog.String("op", op), slog.Bool("quantum", sample.Quantum))

	e.emit(ev)
}

// Tick advances the live multiplier by dt seconds. Outside StateRunning it
// is a no-op. Crossing the crash threshold settles the round in the same
// tick, with the visible multiplier pinned to the threshold; any cash-out
// in the same time step serializes after the transition and is rejected.
func (e *Engine) Tick(dt float64) {
	e.mu.Lock()

	if e.state != StateRunning {
		e.mu.Unlock()
		return
	}

	e.elapsed += dt
	m := Multiplier(e.elapsed, e.k, e.cfg.MaxMultiplier)

	if m >= e.crashPoint {
		e.current = e.crashPoint
		out := e.settleLocked(OutcomeCrashed, decimal.Zero)
		events := []Event{e.multiplierEventLocked(), e.settledEventLocked(out)}
		e.mu.Unlock()

		e.emit(events...)
		return
	}

	e.current = m
	ev := e.multiplierEventLocked()
	e.mu.Unlock()

	e.emit(ev)
}

// RequestCashOut settles the live round in the player's favor at the
// current multiplier. Rejected outside StateRunning — in particular after a
// crash has already settled the same round.
func (e *Engine) RequestCashOut(roundID uuid.UUID) (*Outcome, error) {
	const op = "engine.RequestCashOut"

	e.mu.Lock()

	if e.state != StateRunning {
		e.mu.Unlock()
		return nil, ErrNoActiveRound
	}

	if roundID != uuid.Nil && roundID != e.roundID {
		e.mu.Unlock()
		return nil, ErrWrongRound
	}

	payout := e.cfg.WagerCost.Mul(decimal.NewFromFloat(e.current)).Round(2)
	out := e.settleLocked(OutcomeCashedOut, payout)
	ev := e.settledEventLocked(out)
	e.mu.Unlock()

	e.log.Info("round cashed out",
		slog.String("op", op),
		slog.Float64("multiplier", out.Multiplier),
		slog.String("payout", out.Payout.String()))

	e.emit(ev)

	return out, nil
}

// settleLocked performs the single settlement transition for the live
// round: credits the payout, records the outcome, and schedules the
// display-interval return to StateIdle. Callers hold e.mu and have already
// verified StateRunning.
func (e *Engine) settleLocked(kind OutcomeKind, payout decimal.Decimal) *Outcome {
	e.balance = e.balance.Add(payout)

	out := &Outcome{
		RoundID:    e.roundID,
		Kind:       kind,
		Multiplier: e.current,
		CrashPoint: e.crashPoint,
		Payout:     payout,
		Quantum:    e.quantum,
		Elapsed:    e.elapsed,
	}
	e.lastOut = out

	if kind == OutcomeCashedOut {
		e.state = StateCashedOut
	} else {
		e.state = StateCrashed
	}

	gen := e.generation
	time.AfterFunc(e.cfg.SettleDisplay, func() {
		e.resetAfterSettle(gen)
	})

	return out
}

// resetAfterSettle returns a settled round to StateIdle once the display
// interval elapses. Guarded by generation so a timer from a superseded
// round cannot reset a later one.
func (e *Engine) resetAfterSettle(gen uint64) {
	e.mu.Lock()

	if e.generation != gen || (e.state != StateCashedOut && e.state != StateCrashed) {
		e.mu.Unlock()
		return
	}

	e.state = StateIdle
	e.roundID = uuid.Nil
	e.crashPoint = 0
	e.elapsed = 0
	e.current = 1.0

	ev := e.stateEventLocked()
	e.mu.Unlock()

	e.emit(ev)
}

// Run drives ticks at the configured interval until ctx is cancelled. The
// per-tick update is the only writer of elapsed/current, so collaborators
// only ever observe whole time steps.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			e.Tick(now.Sub(last).Seconds())
			last = now
		}
	}
}

// Snapshot returns the current published state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Snapshot{
		State:      e.state,
		StateName:  e.state.String(),
		Balance:    e.balance,
		RoundID:    e.roundID,
		Multiplier: e.current,
		Elapsed:    e.elapsed,
		Outcome:    e.lastOut,
	}
}

// Balance returns the current session balance.
func (e *Engine) Balance() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.balance
}

func (e *Engine) stateEventLocked() Event {
	return Event{
		Type:       EventState,
		RoundID:    e.roundID,
		State:      e.state,
		StateName:  e.state.String(),
		Multiplier: e.current,
		Balance:    e.balance,
	}
}

func (e *Engine) multiplierEventLocked() Event {
	return Event{
		Type:       EventMultiplier,
		RoundID:    e.roundID,
		State:      e.state,
		StateName:  e.state.String(),
		Multiplier: e.current,
		Balance:    e.balance,
	}
}

func (e *Engine) settledEventLocked(out *Outcome) Event {
	return Event{
		Type:       EventSettled,
		RoundID:    out.RoundID,
		State:      e.state,
		StateName:  e.state.String(),
		Multiplier: e.current,
		Balance:    e.balance,
		Outcome:    out,
	}
}

func (e *Engine) emit(events ...Event) {
	for _, ev := range events {
		e.sink(ev)
	}
}
