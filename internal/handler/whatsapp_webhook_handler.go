package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/maane-ai/assist-service/internal/domain"
	"github.com/maane-ai/assist-service/internal/repository"
	"github.com/maane-ai/assist-service/internal/services/agent"
	"github.com/maane-ai/assist-service/internal/services/crm"
	promptsvc "github.com/maane-ai/assist-service/internal/services/prompt"
	"github.com/maane-ai/assist-service/pkg/logger"
	"github.com/maane-ai/assist-service/pkg/whatsapp"
)

// turnTimeout bounds one inbound message's processing, webhook delivery
// already returned 200 by then.
const turnTimeout = 90 * time.Second

// WhatsAppWebhookHandler receives Cloud API webhooks: the GET verification
// handshake and POST message deliveries. Messages are acknowledged
// immediately and processed in the background so Meta does not retry slow
// turns.
type WhatsAppWebhookHandler struct {
	turn        *agentTurn
	repos       repository.RepositoryManager
	client      *whatsapp.Client
	verifyToken string
}

// NewWhatsAppWebhookHandler creates a new WhatsApp webhook handler
func NewWhatsAppWebhookHandler(agents *agent.Factory, crmService *crm.Service, repos repository.RepositoryManager, client *whatsapp.Client, verifyToken string) *WhatsAppWebhookHandler {
	return &WhatsAppWebhookHandler{
		turn:        &agentTurn{agents: agents, crmService: crmService, repos: repos},
		repos:       repos,
		client:      client,
		verifyToken: verifyToken,
	}
}

// SetupWhatsAppRoutes registers the Cloud API webhook routes
func (h *WhatsAppWebhookHandler) SetupWhatsAppRoutes(router *mux.Router) {
	router.HandleFunc("/whatsapp/webhook", h.HandleVerify).Methods("GET")
	router.HandleFunc("/whatsapp/webhook", h.HandleWebhook).Methods("POST")
}

// HandleVerify answers the Cloud API subscription handshake
func (h *WhatsAppWebhookHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode != "subscribe" || token != h.verifyToken {
		logger.Base().Warn("webhook verification rejected",
			zap.String("mode", mode),
			zap.String("remote_addr", r.RemoteAddr))
		http.Error(w, "Verification failed", http.StatusForbidden)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(challenge))
}

// HandleWebhook ingests message deliveries. The body is acknowledged with
// 200 regardless of per-message outcomes; failures are logged and the user
// gets a fallback reply where possible.
func (h *WhatsAppWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	event, err := whatsapp.ParseWebhook(body)
	if err != nil {
		logger.Base().Warn("unparseable whatsapp webhook", zap.Error(err))
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	for _, msg := range event.TextMessages() {
		go h.processMessage(msg)
	}

	w.WriteHeader(http.StatusOK)
}

func (h *WhatsAppWebhookHandler) processMessage(msg whatsapp.IncomingText) {
	ctx, cancel := context.WithTimeout(context.Background(), turnTimeout)
	defer cancel()

	tenant, err := h.repos.Tenant().GetByWhatsAppPhoneID(ctx, msg.PhoneNumberID)
	if err != nil {
		logger.Base().Warn("whatsapp message for unknown phone number id",
			zap.String("phone_number_id", msg.PhoneNumberID), zap.Error(err))
		return
	}

	if err := h.client.MarkRead(ctx, msg.PhoneNumberID, msg.MessageID); err != nil {
		logger.Base().Debug("failed to mark message read",
			zap.String("message_id", msg.MessageID), zap.Error(err))
	}

	reply, err := h.turn.run(ctx, tenant.TenantID, msg.From, msg.SenderName, domain.ChannelWhatsApp, msg.Body)
	if err != nil {
		logger.Base().Error("whatsapp agent turn failed",
			zap.String("tenant_id", tenant.TenantID),
			zap.String("from", msg.From),
			zap.Error(err))
		switch {
		case errors.Is(err, promptsvc.ErrTenantDisabled), errors.Is(err, promptsvc.ErrChannelOff):
			return // stay silent on disabled channels
		case errors.Is(err, agent.ErrModelUnavailable):
			reply = unavailableText(tenant.Language)
		default:
			reply = errorText(tenant.Language)
		}
	}

	if _, err := h.client.SendText(ctx, msg.PhoneNumberID, msg.From, reply); err != nil {
		logger.Base().Error("failed to send whatsapp reply",
			zap.String("tenant_id", tenant.TenantID),
			zap.String("to", msg.From),
			zap.Error(err))
	}
}
