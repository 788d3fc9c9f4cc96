package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/maane-ai/assist-service/internal/domain"
	"github.com/maane-ai/assist-service/internal/repository"
	"github.com/maane-ai/assist-service/internal/services/crm"
)

// CRMHandler exposes lead and appointment data for the back office.
type CRMHandler struct {
	crmService *crm.Service
	repos      repository.RepositoryManager
}

// NewCRMHandler creates a new CRM handler
func NewCRMHandler(crmService *crm.Service, repos repository.RepositoryManager) *CRMHandler {
	return &CRMHandler{crmService: crmService, repos: repos}
}

// SetupCRMRoutes registers lead and appointment routes
func (h *CRMHandler) SetupCRMRoutes(router *mux.Router) {
	router.HandleFunc("/tenants/{tenant_id}/leads", h.ListLeads).Methods("GET")
	router.HandleFunc("/leads/{id}", h.GetLead).Methods("GET")
	router.HandleFunc("/leads/{id}/status", h.UpdateLeadStatus).Methods("PUT")
	router.HandleFunc("/leads/{id}/notes", h.AddLeadNote).Methods("POST")
	router.HandleFunc("/tenants/{tenant_id}/appointments", h.ListAppointments).Methods("GET")
	router.HandleFunc("/tenants/{tenant_id}/calls", h.ListCalls).Methods("GET")
}

// ListLeads returns leads for a tenant, optionally filtered by status
func (h *CRMHandler) ListLeads(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenant_id"]

	filter := &domain.LeadFilter{}
	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = domain.LeadStatus(status)
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		filter.Limit = n
	}

	leads, err := h.crmService.List(r.Context(), tenantID, filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(leads)
}

// GetLead returns a single lead
func (h *CRMHandler) GetLead(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	lead, err := h.crmService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "Lead not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(lead)
}

// UpdateLeadStatus moves a lead along the pipeline, rejecting transitions
// the status machine does not allow.
func (h *CRMHandler) UpdateLeadStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req struct {
		Status domain.LeadStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	lead, err := h.crmService.Transition(r.Context(), id, req.Status)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "Lead not found", http.StatusNotFound)
			return
		}
		if errors.Is(err, domain.ErrInvalidTransition) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(lead)
}

// AddLeadNote appends a note to the lead's history
func (h *CRMHandler) AddLeadNote(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req struct {
		Note string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Note == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.crmService.AddNote(r.Context(), id, req.Note); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "Lead not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListAppointments returns a tenant's appointments in a time window,
// defaulting to the next 30 days.
func (h *CRMHandler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenant_id"]

	from := time.Now()
	to := from.AddDate(0, 0, 30)
	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, "Invalid from time, expected RFC3339", http.StatusBadRequest)
			return
		}
		from = parsed
	}
	if v := r.URL.Query().Get("to"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, "Invalid to time, expected RFC3339", http.StatusBadRequest)
			return
		}
		to = parsed
	}

	appointments, err := h.repos.Appointment().ListBetween(r.Context(), tenantID, from, to)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(appointments)
}

// ListCalls returns a tenant's recent call records
func (h *CRMHandler) ListCalls(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenant_id"]

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	calls, err := h.repos.CallRecord().ListByTenant(r.Context(), tenantID, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(calls)
}
