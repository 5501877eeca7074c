package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/veritasnet/veritas/internal/api/middleware"
	"github.com/veritasnet/veritas/internal/domain"
	"github.com/veritasnet/veritas/internal/service"
)

type SessionHandler struct {
	voting    *service.VotingService
	lifecycle *service.LifecycleService
}

func NewSessionHandler(voting *service.VotingService, lifecycle *service.LifecycleService) *SessionHandler {
	return &SessionHandler{voting: voting, lifecycle: lifecycle}
}

func (h *SessionHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	session, err := h.voting.GetSession(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get session")
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// GetByClaim returns the open voting session for a claim, so callers can
// follow a needs_vote claim to its session without tracking IDs themselves.
func (h *SessionHandler) GetByClaim(w http.ResponseWriter, r *http.Request) {
	claimID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid claim id")
		return
	}

	session, err := h.voting.GetSessionByClaim(r.Context(), claimID)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "no open session for claim")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get session")
		return
	}

	writeJSON(w, http.StatusOK, session)
}

type castVoteRequest struct {
	Choice string  `json:"choice"`
	Amount float64 `json:"amount"`
}

func (h *SessionHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	var req castVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	vote, err := h.voting.CastVote(r.Context(), id, user.ID, domain.Verdict(req.Choice), req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrInvalidChoice),
			errors.Is(err, service.ErrCannotStakeUnclear),
			errors.Is(err, service.ErrInvalidAmount):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrAlreadyVoted),
			errors.Is(err, service.ErrSessionNotOpen),
			errors.Is(err, service.ErrVotingWindowClosed):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrInsufficientFunds):
			writeError(w, http.StatusPaymentRequired, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to cast vote")
		}
		return
	}

	writeJSON(w, http.StatusCreated, vote)
}

// Finalize drives an expired session through tally, resolution and
// settlement on demand, without waiting for the background sweep.
func (h *SessionHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	if err := h.lifecycle.FinalizeVoting(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrSessionStillOpen):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrSessionNotOpen):
			writeError(w, http.StatusConflict, "session already finalized")
		default:
			writeError(w, http.StatusInternalServerError, "failed to finalize session")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "finalized"})
}
