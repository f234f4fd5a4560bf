// Package api exposes the chat service over HTTP: registration, message
// intake, confirmation callbacks and account management.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/masarif/masarif-backend/internal/api/respond"
	"github.com/masarif/masarif-backend/internal/store"
)

type UserHandler struct {
	store store.Store
}

func NewUserHandler(s store.Store) *UserHandler { return &UserHandler{store: s} }

// RegisterUser is idempotent: posting the same channel id twice returns the
// same user both times.
func (h *UserHandler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ChannelID string `json:"channelId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	if in.ChannelID == "" {
		respond.WriteBadRequest(w, "channelId required")
		return
	}
	u, err := h.store.Users().Register(r.Context(), in.ChannelID)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, u)
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	u, err := h.store.Users().Get(r.Context(), userID)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, u)
}
