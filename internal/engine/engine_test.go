package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/qubitplay/quantum-crash-go/internal/config"
	"github.com/qubitplay/quantum-crash-go/internal/entropy"
)

// stubSource returns a fixed draw, optionally after a delay.
type stubSource struct {
	value   uint16
	quantum bool
	delay   time.Duration
}

func (s *stubSource) Draw(ctx context.Context) entropy.Sample {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return entropy.Sample{Value: s.value, Quantum: s.quantum}
}

// eventRecorder collects emitted events for assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) sink() Sink {
	return func(ev Event) {
		r.mu.Lock()
		r.events = append(r.events, ev)
		r.mu.Unlock()
	}
}

func (r *eventRecorder) settledCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, ev := range r.events {
		if ev.Type == EventSettled {
			n++
		}
	}
	return n
}

func testGame() config.Game {
	cfg := config.DefaultGame()
	cfg.MinFetchDelay = 0
	cfg.SettleDisplay = 30 * time.Millisecond
	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitForState(t *testing.T, e *Engine, want State) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if e.Snapshot().State == want {
			return
		}
		time.Sleep(time.Millisecond)
	}

	t.Fatalf("engine never reached state %s, stuck in %s", want, e.Snapshot().State)
}

func TestStartDebitsWagerAndRuns(t *testing.T) {
	e := New(testGame(), &stubSource{value: 0, quantum: true}, discardLogger(), nil)

	id, err := e.RequestStart(context.Background())
	if err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	if id == uuid.Nil {
		t.Fatal("start returned a nil round id")
	}

	waitForState(t, e, StateRunning)

	snap := e.Snapshot()
	if !snap.Balance.Equal(decimal.NewFromInt(90)) {
		t.Errorf("wager not debited: balance %s", snap.Balance)
	}
	if snap.Multiplier != 1.0 {
		t.Errorf("round should start at 1.0x, got %f", snap.Multiplier)
	}
	if e.crashPoint != 25.0 {
		t.Errorf("draw 0 should derive the capped crash point, got %f", e.crashPoint)
	}
}

func TestStartRejectedWhenInsufficientBalance(t *testing.T) {
	cfg := testGame()
	cfg.StartingBalance = decimal.NewFromInt(5)

	e := New(cfg, &stubSource{}, discardLogger(), nil)

	if _, err := e.RequestStart(context.Background()); err != ErrInsufficientBalance {
		t.Fatalf("want ErrInsufficientBalance, got %v", err)
	}

	snap := e.Snapshot()
	if snap.State != StateIdle {
		t.Errorf("rejected start must not transition, state %s", snap.State)
	}
	if !snap.Balance.Equal(decimal.NewFromInt(5)) {
		t.Errorf("rejected start must not debit, balance %s", snap.Balance)
	}
}

func TestStartRejectedWhileRoundLive(t *testing.T) {
	e := New(testGame(), &stubSource{value: 0}, discardLogger(), nil)

	if _, err := e.RequestStart(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	if _, err := e.RequestStart(context.Background()); err != ErrRoundInProgress {
		t.Fatalf("want ErrRoundInProgress, got %v", err)
	}
}

func TestCrashSettlement(t *testing.T) {
	// Draw 0 derives the capped 25.00x threshold; the player never cashes
	// out, the round crashes, the debit stands and the payout is zero.
	rec := &eventRecorder{}
	e := New(testGame(), &stubSource{value: 0, quantum: true}, discardLogger(), rec.sink())

	if _, err := e.RequestStart(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	waitForState(t, e, StateRunning)

	// One giant step is far past ln(25)/k; the crash settles in this tick.
	e.Tick(1000)

	snap := e.Snapshot()
	if snap.State != StateCrashed {
		t.Fatalf("want crashed, got %s", snap.State)
	}
	if snap.Multiplier != 25.0 {
		t.Errorf("visible multiplier must pin to the crash point, got %f", snap.Multiplier)
	}
	if !snap.Balance.Equal(decimal.NewFromInt(90)) {
		t.Errorf("crash pays nothing, balance %s", snap.Balance)
	}
	if snap.Outcome == nil || snap.Outcome.Kind != OutcomeCrashed {
		t.Fatalf("missing crashed outcome: %+v", snap.Outcome)
	}
	if !snap.Outcome.Payout.IsZero() {
		t.Errorf("crash payout must be zero, got %s", snap.Outcome.Payout)
	}
	if !snap.Outcome.Quantum {
		t.Errorf("outcome should record quantum provenance")
	}
	if rec.settledCount() != 1 {
		t.Errorf("want exactly one settlement event, got %d", rec.settledCount())
	}
}

func TestCashOutSettlement(t *testing.T) {
	// Draw 12320 derives a ~5.00x threshold; cashing out at ~2.00x pays
	// 10 x 2.00 and the balance lands at 110.
	e := New(testGame(), &stubSource{value: 12320, quantum: true}, discardLogger(), nil)

	id, err := e.RequestStart(context.Background())
	if err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	waitForState(t, e, StateRunning)

	// Advance to the time where the curve reads ~2.00x: t = ln(2)/k.
	e.Tick(11.3316)

	snap := e.Snapshot()
	if snap.Multiplier < 1.99 || snap.Multiplier > 2.01 {
		t.Fatalf("expected ~2.00x before cashout, got %f", snap.Multiplier)
	}

	out, err := e.RequestCashOut(id)
	if err != nil {
		t.Fatalf("unexpected cashout error: %v", err)
	}

	if out.Kind != OutcomeCashedOut {
		t.Errorf("want cashed_out outcome, got %s", out.Kind)
	}

	wantPayout := decimal.NewFromInt(10).Mul(decimal.NewFromFloat(snap.Multiplier)).Round(2)
	if !out.Payout.Equal(wantPayout) {
		t.Errorf("unexpected payout, want %s, got %s", wantPayout, out.Payout)
	}

	wantBalance := decimal.NewFromInt(90).Add(wantPayout)
	if !e.Balance().Equal(wantBalance) {
		t.Errorf("unexpected balance, want %s, got %s", wantBalance, e.Balance())
	}
}

func TestCrashWinsTies(t *testing.T) {
	// Once a tick has crossed the threshold, a cash-out in the same time
	// step must lose the race: exactly one settlement, and it is the crash.
	rec := &eventRecorder{}
	e := New(testGame(), &stubSource{value: 12320}, discardLogger(), rec.sink())

	id, err := e.RequestStart(context.Background())
	if err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	waitForState(t, e, StateRunning)

	e.Tick(1000) // crosses the ~5.00x threshold

	if _, err := e.RequestCashOut(id); err != ErrNoActiveRound {
		t.Fatalf("cashout after crash must be rejected, got %v", err)
	}

	snap := e.Snapshot()
	if snap.State != StateCrashed {
		t.Fatalf("want crashed, got %s", snap.State)
	}
	if rec.settledCount() != 1 {
		t.Errorf("want exactly one settlement, got %d", rec.settledCount())
	}
	if !snap.Balance.Equal(decimal.NewFromInt(90)) {
		t.Errorf("losing cashout must not credit, balance %s", snap.Balance)
	}
}

func TestCashOutRejectedForWrongRound(t *testing.T) {
	e := New(testGame(), &stubSource{value: 12320}, discardLogger(), nil)

	if _, err := e.RequestStart(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	waitForState(t, e, StateRunning)

	if _, err := e.RequestCashOut(uuid.New()); err != ErrWrongRound {
		t.Fatalf("want ErrWrongRound, got %v", err)
	}
}

func TestStaleEntropyDiscarded(t *testing.T) {
	e := New(testGame(), &stubSource{value: 0, delay: time.Hour}, discardLogger(), nil)

	if _, err := e.RequestStart(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	// A result issued under a previous generation must not apply.
	e.applyEntropy(0, entropy.Sample{Value: 0, Quantum: true})
	if e.Snapshot().State != StateFetching {
		t.Fatalf("stale entropy must be discarded, state %s", e.Snapshot().State)
	}

	// The result for the live generation applies normally.
	e.applyEntropy(1, entropy.Sample{Value: 0, Quantum: true})
	if e.Snapshot().State != StateRunning {
		t.Fatalf("live entropy must apply, state %s", e.Snapshot().State)
	}

	// Re-applying the same generation is also stale: the round left
	// StateFetching already.
	before := e.Snapshot()
	e.applyEntropy(1, entropy.Sample{Value: 12320, Quantum: false})
	after := e.Snapshot()
	if after.State != StateRunning || e.crashPoint != CrashPoint(0, e.cfg.HouseEdge, e.cfg.MaxMultiplier) {
		t.Fatalf("duplicate entropy must not rewrite the threshold: before %+v after %+v", before, after)
	}
}

func TestSettledRoundReturnsToIdle(t *testing.T) {
	e := New(testGame(), &stubSource{value: 0}, discardLogger(), nil)

	if _, err := e.RequestStart(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	waitForState(t, e, StateRunning)

	e.Tick(1000)
	waitForState(t, e, StateIdle)

	// The engine is reusable for a fresh round.
	if _, err := e.RequestStart(context.Background()); err != nil {
		t.Fatalf("restart after settle failed: %v", err)
	}
	waitForState(t, e, StateRunning)

	if !e.Balance().Equal(decimal.NewFromInt(80)) {
		t.Errorf("second wager not debited, balance %s", e.Balance())
	}
}

func TestFallbackEntropyCompletesRound(t *testing.T) {
	// Even when every remote draw fails, the round must complete with
	// fallback provenance recorded.
	e := New(testGame(), &stubSource{value: 777, quantum: false}, discardLogger(), nil)

	if _, err := e.RequestStart(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	waitForState(t, e, StateRunning)

	e.Tick(1000)

	snap := e.Snapshot()
	if snap.State != StateCrashed {
		t.Fatalf("want crashed, got %s", snap.State)
	}
	if snap.Outcome.Quantum {
		t.Errorf("fallback draw must record quantum=false")
	}
}

func TestMinFetchDelayFloorsFastDraws(t *testing.T) {
	cfg := testGame()
	cfg.MinFetchDelay = 80 * time.Millisecond

	e := New(cfg, &stubSource{value: 0}, discardLogger(), nil)

	started := time.Now()
	if _, err := e.RequestStart(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	waitForState(t, e, StateRunning)

	if elapsed := time.Since(started); elapsed < cfg.MinFetchDelay {
		t.Errorf("fetch finished in %s, below the %s floor", elapsed, cfg.MinFetchDelay)
	}
}
