package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// SQLiteDB implements the DB interface using SQLite
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB creates a new SQLite database connection
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	return &SQLiteDB{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *SQLiteDB) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS rounds (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			crash_point REAL NOT NULL,
			outcome TEXT NOT NULL,
			multiplier REAL NOT NULL,
			payout TEXT NOT NULL,
			quantum INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rounds_session ON rounds(session_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_rounds_created_at ON rounds(created_at DESC)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// RecordRound archives one settled round.
func (s *SQLiteDB) RecordRound(rec RoundRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO rounds (id, session_id, crash_point, outcome, multiplier, payout, quantum, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(),
		rec.SessionID.String(),
		rec.CrashPoint,
		rec.Outcome,
		rec.Multiplier,
		rec.Payout.String(),
		boolToInt(rec.Quantum),
		rec.DurationMs,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record round: %w", err)
	}

	return nil
}

// RecentRounds returns the latest settled rounds for a session, newest
// first.
func (s *SQLiteDB) RecentRounds(sessionID uuid.UUID, limit int) ([]RoundRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := s.db.Query(
		`SELECT id, session_id, crash_point, outcome, multiplier, payout, quantum, duration_ms, created_at
		 FROM rounds WHERE session_id = ? ORDER BY created_at DESC LIMIT ?`,
		sessionID.String(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query rounds: %w", err)
	}
	defer rows.Close()

	var records []RoundRecord
	for rows.Next() {
		var (
			rec       RoundRecord
			id        string
			sessID    string
			payout    string
			quantum   int
			createdAt time.Time
		)

		if err := rows.Scan(&id, &sessID, &rec.CrashPoint, &rec.Outcome,
			&rec.Multiplier, &payout, &quantum, &rec.DurationMs, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan round: %w", err)
		}

		rec.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("invalid round id %q: %w", id, err)
		}

		rec.SessionID, err = uuid.Parse(sessID)
		if err != nil {
			return nil, fmt.Errorf("invalid session id %q: %w", sessID, err)
		}

		rec.Payout, err = decimal.NewFromString(payout)
		if err != nil {
			return nil, fmt.Errorf("invalid payout %q: %w", payout, err)
		}

		rec.Quantum = quantum != 0
		rec.CreatedAt = createdAt

		records = append(records, rec)
	}

	return records, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
