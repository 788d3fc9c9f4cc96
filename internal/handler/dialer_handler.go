package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/maane-ai/assist-service/internal/services/dialer"
	promptsvc "github.com/maane-ai/assist-service/internal/services/prompt"
)

// DialerHandler exposes outbound call queueing and queue introspection.
type DialerHandler struct {
	dialerService *dialer.Dialer
}

// NewDialerHandler creates a new dialer handler
func NewDialerHandler(dialerService *dialer.Dialer) *DialerHandler {
	return &DialerHandler{dialerService: dialerService}
}

// SetupDialerRoutes registers outbound dialing routes
func (h *DialerHandler) SetupDialerRoutes(router *mux.Router) {
	router.HandleFunc("/tenants/{tenant_id}/dial", h.EnqueueCall).Methods("POST")
	router.HandleFunc("/tenants/{tenant_id}/dial/status", h.QueueStatus).Methods("GET")
}

// EnqueueCall queues an outbound call. The job dials immediately when the
// tenant has a free slot and waits in FIFO order otherwise.
func (h *DialerHandler) EnqueueCall(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenant_id"]

	var req struct {
		Phone  string `json:"phone"`
		LeadID string `json:"lead_id,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Phone == "" {
		http.Error(w, "phone is required", http.StatusBadRequest)
		return
	}

	job, err := h.dialerService.Enqueue(r.Context(), tenantID, req.Phone, req.LeadID)
	if err != nil {
		switch {
		case errors.Is(err, promptsvc.ErrTenantNotFound):
			http.Error(w, "Tenant not found", http.StatusNotFound)
		case errors.Is(err, promptsvc.ErrTenantDisabled), errors.Is(err, promptsvc.ErrChannelOff):
			http.Error(w, err.Error(), http.StatusForbidden)
		case errors.Is(err, dialer.ErrQueueFull):
			http.Error(w, err.Error(), http.StatusTooManyRequests)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(job)
}

// QueueStatus reports the tenant's active call and pending job counts
func (h *DialerHandler) QueueStatus(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenant_id"]

	active, err := h.dialerService.ActiveCalls(r.Context(), tenantID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	queued, err := h.dialerService.QueueLength(r.Context(), tenantID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{
		"active_calls": active,
		"queued_jobs":  queued,
	})
}
