package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/qubitplay/quantum-crash-go/internal/config"
	"github.com/qubitplay/quantum-crash-go/internal/engine"
	"github.com/qubitplay/quantum-crash-go/internal/lib/logger/sl"
	"github.com/qubitplay/quantum-crash-go/internal/store"
	"github.com/qubitplay/quantum-crash-go/internal/ws"
)

const (
	sessionTTL  = 30 * time.Minute
	sweepPeriod = 10 * time.Minute
)

// Session is one play session: a dedicated engine with its own balance and
// tick loop.
type Session struct {
	ID        uuid.UUID
	Engine    *engine.Engine
	CreatedAt time.Time
	cancel    context.CancelFunc
}

// Manager owns the live sessions. Sessions idle past their TTL are evicted
// and their tick loops stopped; balances die with the session by design.
type Manager struct {
	cfg      config.Game
	source   engine.Source
	db       store.DB
	hub      *ws.Hub
	log      *slog.Logger
	sessions *cache.Cache
}

func NewManager(cfg config.Game, source engine.Source, db store.DB, hub *ws.Hub, log *slog.Logger) *Manager {
	m := &Manager{
		cfg:      cfg,
		source:   source,
		db:       db,
		hub:      hub,
		log:      log,
		sessions: cache.New(sessionTTL, sweepPeriod),
	}

	m.sessions.OnEvicted(func(_ string, v interface{}) {
		if s, ok := v.(*Session); ok {
			s.cancel()
		}
	})

	return m
}

// Create builds a session with a fresh engine and starts its tick loop.
func (m *Manager) Create() *Session {
	id := uuid.New()

	log := m.log.With(slog.String("session_id", id.String()))
	eng := engine.New(m.cfg, m.source, log, m.sinkFor(id))

	ctx, cancel := context.WithCancel(context.Background())
	go eng.Run(ctx)

	s := &Session{
		ID:        id,
		Engine:    eng,
		CreatedAt: time.Now(),
		cancel:    cancel,
	}

	m.sessions.Set(id.String(), s, cache.DefaultExpiration)
	log.Info("session created")

	return s
}

// Get looks a session up and refreshes its TTL.
func (m *Manager) Get(id uuid.UUID) (*Session, bool) {
	v, found := m.sessions.Get(id.String())
	if !found {
		return nil, false
	}

	s := v.(*Session)
	m.sessions.Set(id.String(), s, cache.DefaultExpiration)

	return s, true
}

// sinkFor adapts engine events for one session: broadcast to the session's
// hub channel, and archive settled rounds.
func (m *Manager) sinkFor(sessionID uuid.UUID) engine.Sink {
	return func(ev engine.Event) {
		if m.hub != nil {
			m.hub.Publish(ws.Message{
				Channel: sessionID.String(),
				Event:   string(ev.Type),
				Data:    ev,
			})
		}

		if ev.Type != engine.EventSettled || ev.Outcome == nil || m.db == nil {
			return
		}

		rec := store.RoundRecord{
			ID:         ev.Outcome.RoundID,
			SessionID:  sessionID,
			CrashPoint: ev.Outcome.CrashPoint,
			Outcome:    string(ev.Outcome.Kind),
			Multiplier: ev.Outcome.Multiplier,
			Payout:     ev.Outcome.Payout,
			Quantum:    ev.Outcome.Quantum,
			DurationMs: int64(ev.Outcome.Elapsed * 1000),
			CreatedAt:  time.Now().UTC(),
		}

		if err := m.db.RecordRound(rec); err != nil {
			m.log.Error("failed to archive round", sl.Err(err))
		}
	}
}
