package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/veritasnet/veritas/internal/api/middleware"
	"github.com/veritasnet/veritas/internal/domain"
	"github.com/veritasnet/veritas/internal/store"
)

type UserHandler struct {
	store domain.UserStore
}

func NewUserHandler(store domain.UserStore) *UserHandler {
	return &UserHandler{store: store}
}

type registerUserRequest struct {
	WalletAddress    string `json:"wallet_address"`
	FullName         string `json:"full_name,omitempty"`
	Email            string `json:"email,omitempty"`
	RedditProfile    string `json:"reddit_profile,omitempty"`
	XProfile         string `json:"x_profile,omitempty"`
	FarcasterProfile string `json:"farcaster_profile,omitempty"`
	NotifPreference  string `json:"notif_preference,omitempty"`
}

type registerUserResponse struct {
	*domain.User
	APIKey string `json:"api_key"`
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.WalletAddress == "" {
		writeError(w, http.StatusBadRequest, "wallet_address is required")
		return
	}
	if req.NotifPreference != "" && !domain.ValidNotifPreference(req.NotifPreference) {
		writeError(w, http.StatusBadRequest, "invalid notif_preference")
		return
	}

	apiKey, err := generateAPIKey()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate API key")
		return
	}

	user := &domain.User{
		WalletAddress:    req.WalletAddress,
		FullName:         req.FullName,
		Email:            req.Email,
		RedditProfile:    req.RedditProfile,
		XProfile:         req.XProfile,
		FarcasterProfile: req.FarcasterProfile,
		NotifPreference:  domain.NotifPreference(req.NotifPreference),
		APIKeyHash:       middleware.HashAPIKey(apiKey),
	}

	if err := h.store.Create(r.Context(), user); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to register user")
		return
	}

	writeJSON(w, http.StatusCreated, registerUserResponse{
		User:   user,
		APIKey: apiKey,
	})
}

func (h *UserHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	user, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func generateAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "vk_" + hex.EncodeToString(b), nil
}
