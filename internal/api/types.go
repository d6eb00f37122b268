package api

import (
	"github.com/shopspring/decimal"

	"github.com/qubitplay/quantum-crash-go/internal/engine"
	"github.com/qubitplay/quantum-crash-go/internal/store"
)

type SessionResponse struct {
	SessionID string          `json:"session_id"`
	State     string          `json:"state"`
	Balance   decimal.Decimal `json:"balance"`
}

type SnapshotResponse struct {
	SessionID string `json:"session_id"`
	engine.Snapshot
}

type StartResponse struct {
	SessionID string          `json:"session_id"`
	RoundID   string          `json:"round_id"`
	State     string          `json:"state"`
	Balance   decimal.Decimal `json:"balance"`
}

type CashOutRequest struct {
	RoundID string `json:"round_id" validate:"required,uuid4"`
}

type CashOutResponse struct {
	SessionID string          `json:"session_id"`
	Outcome   *engine.Outcome `json:"outcome"`
	Balance   decimal.Decimal `json:"balance"`
}

type HistoryResponse struct {
	SessionID string              `json:"session_id"`
	Rounds    []store.RoundRecord `json:"rounds"`
}
