package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/masarif/masarif-backend/internal/api/respond"
	"github.com/masarif/masarif-backend/internal/ledger"
	"github.com/masarif/masarif-backend/internal/model"
	"github.com/masarif/masarif-backend/internal/store"
)

type AccountHandler struct {
	store  store.Store
	ledger *ledger.Mutator
}

func NewAccountHandler(s store.Store, m *ledger.Mutator) *AccountHandler {
	return &AccountHandler{store: s, ledger: m}
}

func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accs, err := h.store.Accounts().List(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, accs)
}

func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	acc, err := h.store.Accounts().GetByID(r.Context(), vars["userId"], vars["accountId"])
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, acc)
}

// UpdateAccount changes name and/or type only. Renames are validated by the
// ledger mutator under the same rules as account creation.
func (h *AccountHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var in struct {
		Name *string            `json:"name,omitempty"`
		Type *model.AccountType `json:"type,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	acc, err := h.ledger.UpdateAccount(r.Context(), vars["userId"], vars["accountId"], in.Name, in.Type)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, acc)
}

func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.store.Accounts().SoftDelete(r.Context(), vars["userId"], vars["accountId"]); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AccountHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respond.WriteBadRequest(w, "invalid limit")
			return
		}
		limit = n
	}
	txns, err := h.store.Transactions().List(r.Context(), vars["userId"], vars["accountId"], limit)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, txns)
}
