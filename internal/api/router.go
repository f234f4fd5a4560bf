package api

import (
	"github.com/gorilla/mux"

	"github.com/masarif/masarif-backend/internal/api/recovery"
	"github.com/masarif/masarif-backend/internal/health"
	"github.com/masarif/masarif-backend/internal/ledger"
	"github.com/masarif/masarif-backend/internal/orchestrator"
	"github.com/masarif/masarif-backend/internal/store"
)

// NewRouter wires all HTTP routes.
func NewRouter(s store.Store, orch *orchestrator.Orchestrator, mut *ledger.Mutator, hs *health.Service) *mux.Router {
	router := mux.NewRouter()

	// Global middlewares
	router.Use(recovery.Middleware)

	userHandler := NewUserHandler(s)
	messageHandler := NewMessageHandler(orch, s)
	accountHandler := NewAccountHandler(s, mut)
	healthHandler := NewHealthHandler(hs)

	// Health endpoint
	router.HandleFunc("/api/health", healthHandler.CheckHealth).Methods("GET")

	// User endpoints
	router.HandleFunc("/api/users", userHandler.RegisterUser).Methods("POST")
	router.HandleFunc("/api/users/{userId}", userHandler.GetUser).Methods("GET")

	// Conversation endpoints
	router.HandleFunc("/api/users/{userId}/messages", messageHandler.PostMessage).Methods("POST")
	router.HandleFunc("/api/confirmations/{correlationId}/confirm", messageHandler.Confirm).Methods("POST")
	router.HandleFunc("/api/confirmations/{correlationId}/cancel", messageHandler.Cancel).Methods("POST")
	router.HandleFunc("/api/confirmations/{correlationId}", messageHandler.Edit).Methods("PATCH")

	// Account endpoints
	router.HandleFunc("/api/users/{userId}/accounts", accountHandler.ListAccounts).Methods("GET")
	router.HandleFunc("/api/users/{userId}/accounts/{accountId}", accountHandler.GetAccount).Methods("GET")
	router.HandleFunc("/api/users/{userId}/accounts/{accountId}", accountHandler.UpdateAccount).Methods("PATCH")
	router.HandleFunc("/api/users/{userId}/accounts/{accountId}", accountHandler.DeleteAccount).Methods("DELETE")
	router.HandleFunc("/api/users/{userId}/accounts/{accountId}/transactions", accountHandler.ListTransactions).Methods("GET")

	return router
}
