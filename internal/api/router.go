/**
 * @description
 * This file sets up the HTTP routers for the three service binaries. It
 * defines the API endpoints, associates them with their handlers, and
 * applies the standard middleware stack.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func baseRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})
	return r
}

// TransactionRoutes creates the router for the transaction-service.
func TransactionRoutes(h *TransactionHandlers) http.Handler {
	r := baseRouter()
	r.Post("/transactions", h.SubmitTransferHandler)
	r.Get("/transactions/{userID}", h.ListTransactionsHandler)
	return r
}

// AccountRoutes creates the router for the account-service. The mirror
// write is internal-only; the participant query is public.
func AccountRoutes(h *AccountHandlers, internalAPIKey string) http.Handler {
	r := baseRouter()
	r.Get("/transactions/{userID}", h.ListMirroredTransactionsHandler)
	r.Group(func(r chi.Router) {
		r.Use(InternalAPIKeyMiddleware(internalAPIKey))
		r.Post("/internal/transactions", h.RecordTransactionHandler)
	})
	return r
}

// NotificationRoutes creates the router for the notification-service.
func NotificationRoutes(h *NotificationHandlers) http.Handler {
	r := baseRouter()
	r.Get("/notifications/{email}", h.ListNotificationsHandler)
	return r
}
