package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/qubitplay/quantum-crash-go/internal/engine"
	resp "github.com/qubitplay/quantum-crash-go/internal/lib/api/response"
	"github.com/qubitplay/quantum-crash-go/internal/lib/logger/sl"
	"github.com/qubitplay/quantum-crash-go/internal/session"
)

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Create()
	snap := sess.Engine.Snapshot()

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, SessionResponse{
		SessionID: sess.ID.String(),
		State:     snap.StateName,
		Balance:   snap.Balance,
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	render.JSON(w, r, SnapshotResponse{
		SessionID: sess.ID.String(),
		Snapshot:  sess.Engine.Snapshot(),
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	const op = "api.handleStart"

	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	log := s.log.With(slog.String("op", op), slog.String("session_id", sess.ID.String()))

	roundID, err := sess.Engine.RequestStart(r.Context())
	switch {
	case errors.Is(err, engine.ErrRoundInProgress):
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, resp.Error("round already in progress", http.StatusConflict))
		return
	case errors.Is(err, engine.ErrInsufficientBalance):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, resp.Error("insufficient balance", http.StatusBadRequest))
		return
	case err != nil:
		log.Error("failed to start round", sl.Err(err))

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, resp.Error("failed to start round", http.StatusInternalServerError))
		return
	}

	log.Info("round start accepted", slog.String("round_id", roundID.String()))

	snap := sess.Engine.Snapshot()

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, StartResponse{
		SessionID: sess.ID.String(),
		RoundID:   roundID.String(),
		State:     snap.StateName,
		Balance:   snap.Balance,
	})
}

func (s *Server) handleCashOut(w http.ResponseWriter, r *http.Request) {
	const op = "api.handleCashOut"

	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	log := s.log.With(slog.String("op", op), slog.String("session_id", sess.ID.String()))

	var req CashOutRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, resp.Error("failed to decode request body", http.StatusBadRequest))
		return
	}

	if err := s.validate.Struct(req); err != nil {
		var validateErrs validator.ValidationErrors
		if errors.As(err, &validateErrs) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErrs))
			return
		}

		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, resp.Error("invalid request", http.StatusBadRequest))
		return
	}

	roundID, err := uuid.Parse(req.RoundID)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, resp.Error("invalid round id", http.StatusBadRequest))
		return
	}

	outcome, err := sess.Engine.RequestCashOut(roundID)
	switch {
	case errors.Is(err, engine.ErrNoActiveRound):
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, resp.Error("no active round to cash out", http.StatusConflict))
		return
	case errors.Is(err, engine.ErrWrongRound):
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, resp.Error("round id does not match the live round", http.StatusConflict))
		return
	case err != nil:
		log.Error("failed to cash out", sl.Err(err))

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, resp.Error("failed to cash out", http.StatusInternalServerError))
		return
	}

	render.JSON(w, r, CashOutResponse{
		SessionID: sess.ID.String(),
		Outcome:   outcome,
		Balance:   sess.Engine.Balance(),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	const op = "api.handleHistory"

	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	rounds, err := s.db.RecentRounds(sess.ID, limit)
	if err != nil {
		s.log.Error("failed to load round history",
			slog.String("op", op), sl.Err(err))

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, resp.Error("failed to load round history", http.StatusInternalServerError))
		return
	}

	render.JSON(w, r, HistoryResponse{
		SessionID: sess.ID.String(),
		Rounds:    rounds,
	})
}

// lookupSession resolves the sessionID path parameter, writing the error
// response itself when the session is missing or the id malformed.
func (s *Server) lookupSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, resp.Error("invalid session id", http.StatusBadRequest))
		return nil, false
	}

	sess, found := s.sessions.Get(id)
	if !found {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, resp.Error("session not found", http.StatusNotFound))
		return nil, false
	}

	return sess, true
}
