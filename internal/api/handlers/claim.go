package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/veritasnet/veritas/internal/api/middleware"
	"github.com/veritasnet/veritas/internal/domain"
	"github.com/veritasnet/veritas/internal/service"
	"go.uber.org/zap"
)

const processTimeout = 5 * time.Minute

type ClaimHandler struct {
	lifecycle *service.LifecycleService
	query     *service.ClaimQueryService
	logger    *zap.Logger
}

func NewClaimHandler(lifecycle *service.LifecycleService, query *service.ClaimQueryService, logger *zap.Logger) *ClaimHandler {
	return &ClaimHandler{lifecycle: lifecycle, query: query, logger: logger}
}

type submitClaimRequest struct {
	Text           string   `json:"text"`
	RawInput       string   `json:"raw_input,omitempty"`
	Type           string   `json:"type,omitempty"`
	Platform       string   `json:"platform,omitempty"`
	PlatformPostID string   `json:"platform_post_id,omitempty"`
	PlatformAuthor string   `json:"platform_author,omitempty"`
	PlatformURL    string   `json:"platform_url,omitempty"`
	ExtractedURLs  []string `json:"extracted_urls,omitempty"`
	MediaImages    []string `json:"media_images,omitempty"`
	MediaVideos    []string `json:"media_videos,omitempty"`
}

// Submit registers the claim and starts evaluation in the background. The
// response carries the claim in pending_ai; callers poll GET /claims/{id}
// for the outcome.
func (h *ClaimHandler) Submit(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req submitClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Type != "" && !domain.ValidClaimType(req.Type) {
		writeError(w, http.StatusBadRequest, "invalid claim type")
		return
	}
	if req.Platform != "" && !domain.ValidPlatform(req.Platform) {
		writeError(w, http.StatusBadRequest, "invalid platform")
		return
	}

	claim := &domain.Claim{
		SubmitterID:    user.ID,
		RawInput:       req.RawInput,
		NormalizedText: req.Text,
		Type:           domain.ClaimType(req.Type),
		Platform:       domain.Platform(req.Platform),
		PlatformPostID: req.PlatformPostID,
		PlatformAuthor: req.PlatformAuthor,
		PlatformURL:    req.PlatformURL,
		ExtractedURLs:  req.ExtractedURLs,
		MediaImages:    req.MediaImages,
		MediaVideos:    req.MediaVideos,
	}

	if err := h.lifecycle.Intake(r.Context(), claim); err != nil {
		switch {
		case errors.Is(err, service.ErrClaimTextEmpty),
			errors.Is(err, service.ErrSubmitterMissing):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to register claim")
		}
		return
	}

	// Evaluation outlives the request. Each claim's pipeline runs in its own
	// goroutine with a detached context.
	go func(claimID uuid.UUID) {
		ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
		defer cancel()
		if err := h.lifecycle.Process(ctx, claimID); err != nil {
			h.logger.Error("claim processing failed",
				zap.String("claim_id", claimID.String()),
				zap.Error(err))
		}
	}(claim.ID)

	writeJSON(w, http.StatusAccepted, claim)
}

func (h *ClaimHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid claim id")
		return
	}

	claim, err := h.query.GetClaim(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrClaimNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get claim")
		return
	}

	writeJSON(w, http.StatusOK, claim)
}

func (h *ClaimHandler) GetSignals(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid claim id")
		return
	}

	signals, err := h.query.GetSignals(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrClaimNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get signals")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"signals": signals})
}

func (h *ClaimHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid claim id")
		return
	}

	events, err := h.query.GetEvents(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrClaimNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get events")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (h *ClaimHandler) Similar(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid claim id")
		return
	}

	matches, err := h.query.FindSimilar(r.Context(), id, limitParam(r))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrClaimNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrNoEmbedding):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to find similar claims")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
}

func (h *ClaimHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	matches, err := h.query.SearchSimilar(r.Context(), q, limitParam(r))
	if err != nil {
		if errors.Is(err, service.ErrClaimTextEmpty) {
			writeError(w, http.StatusBadRequest, "query parameter q is required")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to search claims")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
}

func limitParam(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return n
}
