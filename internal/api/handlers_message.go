package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/masarif/masarif-backend/internal/api/respond"
	"github.com/masarif/masarif-backend/internal/model"
	"github.com/masarif/masarif-backend/internal/orchestrator"
	"github.com/masarif/masarif-backend/internal/store"
)

type MessageHandler struct {
	orch  *orchestrator.Orchestrator
	store store.Store
}

func NewMessageHandler(o *orchestrator.Orchestrator, s store.Store) *MessageHandler {
	return &MessageHandler{orch: o, store: s}
}

// PostMessage runs one inbound utterance through the orchestrator and returns
// its outcome for the transport layer to render.
func (h *MessageHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	var in struct {
		Text         string  `json:"text"`
		LanguageHint string  `json:"languageHint"`
		MessageID    *string `json:"messageId,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	if in.Text == "" {
		respond.WriteBadRequest(w, "text required")
		return
	}
	if _, err := h.store.Users().Get(r.Context(), userID); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	res, err := h.orch.HandleUtterance(r.Context(), userID, in.Text, in.LanguageHint, in.MessageID)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, res)
}

// Confirm applies the staged action behind correlationId. Expiry and absence
// both come back as Rejected results, not HTTP errors; the channel renders
// them as user wording.
func (h *MessageHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	res, err := h.orch.HandleConfirm(r.Context(), mux.Vars(r)["correlationId"])
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, res)
}

func (h *MessageHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	res, err := h.orch.HandleCancel(r.Context(), mux.Vars(r)["correlationId"])
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, res)
}

// Edit merges field corrections into the staged action before confirmation.
func (h *MessageHandler) Edit(w http.ResponseWriter, r *http.Request) {
	var patch model.ActionPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	res, err := h.orch.HandleEdit(r.Context(), mux.Vars(r)["correlationId"], patch)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, res)
}
