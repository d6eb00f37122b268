package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RoundRecord is one settled round, archived for the history rail and for
// fairness auditing. Balances are deliberately not persisted.
type RoundRecord struct {
	ID         uuid.UUID       `json:"id"`
	SessionID  uuid.UUID       `json:"session_id"`
	CrashPoint float64         `json:"crash_point"`
	Outcome    string          `json:"outcome"`
	Multiplier float64         `json:"multiplier"`
	Payout     decimal.Decimal `json:"payout"`
	Quantum    bool            `json:"quantum"`
	DurationMs int64           `json:"duration_ms"`
	CreatedAt  time.Time       `json:"created_at"`
}

// DB is the round archive interface.
type DB interface {
	Migrate() error
	RecordRound(rec RoundRecord) error
	RecentRounds(sessionID uuid.UUID, limit int) ([]RoundRecord, error)
	Close() error
}
