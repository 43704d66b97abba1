package api

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/paylink/fintech-backend/internal/store"
)

// NotificationHandlers serves the notification log owned by the
// notification-service.
type NotificationHandlers struct {
	records store.NotificationRepository
}

// NewNotificationHandlers creates a new instance of NotificationHandlers.
func NewNotificationHandlers(records store.NotificationRepository) *NotificationHandlers {
	return &NotificationHandlers{records: records}
}

// ListNotificationsHandler handles GET /notifications/{email}.
func (h *NotificationHandlers) ListNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	if email == "" {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "email is required"})
		return
	}

	records, err := h.records.FindRecordsByEmail(r.Context(), email)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_notifications msg=\"notification query failed\" email=%s err=%v", email, err)
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "failed to fetch notifications"})
		return
	}

	writeJSON(w, http.StatusOK, records)
}
