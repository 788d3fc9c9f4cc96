package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/maane-ai/assist-service/internal/domain"
	"github.com/maane-ai/assist-service/internal/repository"
	promptsvc "github.com/maane-ai/assist-service/internal/services/prompt"
	"github.com/maane-ai/assist-service/pkg/logger"
)

// TenantHandler handles tenant and prompt template administration. Prompt
// writes invalidate the resolver cache so every instance reloads.
type TenantHandler struct {
	repos    repository.RepositoryManager
	resolver *promptsvc.Resolver
}

// NewTenantHandler creates a new tenant handler
func NewTenantHandler(repos repository.RepositoryManager, resolver *promptsvc.Resolver) *TenantHandler {
	return &TenantHandler{repos: repos, resolver: resolver}
}

// SetupTenantRoutes registers tenant CRUD and prompt template routes
func (h *TenantHandler) SetupTenantRoutes(router *mux.Router) {
	router.HandleFunc("/tenants", h.CreateTenant).Methods("POST")
	router.HandleFunc("/tenants", h.ListTenants).Methods("GET")
	router.HandleFunc("/tenants/{tenant_id}", h.GetTenant).Methods("GET")
	router.HandleFunc("/tenants/{tenant_id}", h.UpdateTenant).Methods("PUT")
	router.HandleFunc("/tenants/{tenant_id}", h.DisableTenant).Methods("DELETE")
	router.HandleFunc("/tenants/{tenant_id}/prompts/{channel}", h.GetPromptTemplate).Methods("GET")
	router.HandleFunc("/tenants/{tenant_id}/prompts/{channel}", h.UpsertPromptTemplate).Methods("PUT")
	router.HandleFunc("/tenants/{tenant_id}/prompts/{channel}", h.DeletePromptTemplate).Methods("DELETE")
	router.HandleFunc("/tenants/{tenant_id}/prompts/{channel}/preview", h.PreviewPrompt).Methods("GET")
}

// CreateTenant creates a new tenant
func (h *TenantHandler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	tenant, err := h.repos.Tenant().Create(r.Context(), &req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(tenant)
}

// ListTenants returns all tenants; ?include_disabled=true includes disabled ones
func (h *TenantHandler) ListTenants(w http.ResponseWriter, r *http.Request) {
	includeDisabled := r.URL.Query().Get("include_disabled") == "true"

	tenants, err := h.repos.Tenant().GetAll(r.Context(), includeDisabled)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tenants)
}

// GetTenant returns a tenant by its business tenant_id
func (h *TenantHandler) GetTenant(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenant_id"]

	tenant, err := h.repos.Tenant().GetByTenantID(r.Context(), tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "Tenant not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tenant)
}

// UpdateTenant updates a tenant's configuration and invalidates its prompt cache
func (h *TenantHandler) UpdateTenant(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenant_id"]

	var req domain.UpdateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	tenant, err := h.repos.Tenant().GetByTenantID(r.Context(), tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "Tenant not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	updated, err := h.repos.Tenant().Update(r.Context(), tenant.ID, &req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.invalidate(r, tenantID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(updated)
}

// DisableTenant soft-disables a tenant and drops it from the prompt cache
func (h *TenantHandler) DisableTenant(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenant_id"]

	tenant, err := h.repos.Tenant().GetByTenantID(r.Context(), tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "Tenant not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := h.repos.Tenant().Delete(r.Context(), tenant.ID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.invalidate(r, tenantID)
	w.WriteHeader(http.StatusNoContent)
}

// GetPromptTemplate returns the stored template for a tenant+channel
func (h *TenantHandler) GetPromptTemplate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	channel := domain.Channel(vars["channel"])
	if !channel.Valid() {
		http.Error(w, "Unknown channel", http.StatusBadRequest)
		return
	}

	template, err := h.repos.PromptTemplate().GetByTenantAndChannel(r.Context(), vars["tenant_id"], channel)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "Prompt template not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(template)
}

// UpsertPromptTemplate creates or updates a tenant+channel template. The
// version bumps on every write and the cache invalidation fans out.
func (h *TenantHandler) UpsertPromptTemplate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	tenantID := vars["tenant_id"]
	channel := domain.Channel(vars["channel"])
	if !channel.Valid() {
		http.Error(w, "Unknown channel", http.StatusBadRequest)
		return
	}

	var req domain.UpsertPromptTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	template, err := h.repos.PromptTemplate().Upsert(r.Context(), tenantID, channel, &req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.invalidate(r, tenantID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(template)
}

// DeletePromptTemplate removes the tenant+channel template, falling the
// tenant back to the built-in defaults.
func (h *TenantHandler) DeletePromptTemplate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	tenantID := vars["tenant_id"]
	channel := domain.Channel(vars["channel"])
	if !channel.Valid() {
		http.Error(w, "Unknown channel", http.StatusBadRequest)
		return
	}

	if err := h.repos.PromptTemplate().Delete(r.Context(), tenantID, channel); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "Prompt template not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.invalidate(r, tenantID)
	w.WriteHeader(http.StatusNoContent)
}

// PreviewPrompt renders the assembled system prompt for a tenant+channel,
// exactly as the agent would receive it.
func (h *TenantHandler) PreviewPrompt(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	channel := domain.Channel(vars["channel"])
	if !channel.Valid() {
		http.Error(w, "Unknown channel", http.StatusBadRequest)
		return
	}

	stack, err := h.resolver.Resolve(r.Context(), vars["tenant_id"], channel)
	if err != nil {
		if errors.Is(err, promptsvc.ErrTenantNotFound) {
			http.Error(w, "Tenant not found", http.StatusNotFound)
			return
		}
		if errors.Is(err, promptsvc.ErrTenantDisabled) || errors.Is(err, promptsvc.ErrChannelOff) {
			http.Error(w, err.Error(), http.StatusForbidden)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"system":   stack.System(),
		"greeting": stack.Greeting,
		"version":  stack.TenantVersion,
	})
}

func (h *TenantHandler) invalidate(r *http.Request, tenantID string) {
	if err := h.resolver.Invalidate(r.Context(), tenantID); err != nil {
		logger.Base().Error("failed to invalidate prompt cache",
			zap.String("tenant_id", tenantID), zap.Error(err))
	}
}
