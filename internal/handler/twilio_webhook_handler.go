package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"
	"github.com/twilio/twilio-go/twiml"
	"go.uber.org/zap"

	"github.com/maane-ai/assist-service/internal/domain"
	"github.com/maane-ai/assist-service/internal/repository"
	"github.com/maane-ai/assist-service/internal/services/agent"
	"github.com/maane-ai/assist-service/internal/services/crm"
	"github.com/maane-ai/assist-service/internal/services/dialer"
	promptsvc "github.com/maane-ai/assist-service/internal/services/prompt"
	"github.com/maane-ai/assist-service/pkg/logger"
)

// TwilioWebhookHandler serves the voice webhooks: call answer, speech
// gather, and status callbacks. Replies are TwiML with speech recognition
// tuned to the tenant's language.
type TwilioWebhookHandler struct {
	turn          *agentTurn
	resolver      *promptsvc.Resolver
	repos         repository.RepositoryManager
	dialerService *dialer.Dialer
}

// NewTwilioWebhookHandler creates a new Twilio webhook handler
func NewTwilioWebhookHandler(agents *agent.Factory, crmService *crm.Service, resolver *promptsvc.Resolver, repos repository.RepositoryManager, dialerService *dialer.Dialer) *TwilioWebhookHandler {
	return &TwilioWebhookHandler{
		turn:          &agentTurn{agents: agents, crmService: crmService, repos: repos},
		resolver:      resolver,
		repos:         repos,
		dialerService: dialerService,
	}
}

// SetupTwilioRoutes registers the voice webhook routes
func (h *TwilioWebhookHandler) SetupTwilioRoutes(router *mux.Router) {
	router.HandleFunc("/twilio/voice/inbound", h.HandleInboundCall).Methods("POST")
	router.HandleFunc("/twilio/voice/answer", h.HandleOutboundAnswer).Methods("POST")
	router.HandleFunc("/twilio/voice/collect", h.HandleSpeech).Methods("POST")
	router.HandleFunc("/twilio/voice/status", h.HandleCallStatus).Methods("POST")
}

// HandleInboundCall answers an inbound call: the tenant is resolved from
// the dialed business number and the reply is a greeting plus a speech
// gather.
func (h *TwilioWebhookHandler) HandleInboundCall(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form body", http.StatusBadRequest)
		return
	}
	to := r.FormValue("To")
	from := r.FormValue("From")
	callSID := r.FormValue("CallSid")

	tenant, err := h.repos.Tenant().GetByPhoneNumber(r.Context(), to)
	if err != nil {
		logger.Base().Warn("inbound call for unknown business number",
			zap.String("to", to), zap.Error(err))
		h.respondTwiML(w, h.rejectTwiML())
		return
	}

	if _, err := h.repos.CallRecord().Create(r.Context(), &domain.CallRecord{
		TenantID:  tenant.TenantID,
		CallSID:   callSID,
		Phone:     from,
		Direction: domain.CallDirectionInbound,
		Status:    domain.CallStatusRinging,
	}); err != nil {
		logger.Base().Error("failed to persist inbound call record",
			zap.String("call_sid", callSID), zap.Error(err))
	}

	h.answerWithGreeting(w, r, tenant.TenantID, from)
}

// HandleOutboundAnswer runs when a dialer-placed call is answered. The
// tenant travels in the query string set at call creation.
func (h *TwilioWebhookHandler) HandleOutboundAnswer(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form body", http.StatusBadRequest)
		return
	}
	tenantID := r.URL.Query().Get("tenant_id")
	to := r.FormValue("To") // the customer on outbound legs

	h.answerWithGreeting(w, r, tenantID, to)
}

// HandleSpeech receives a gather result, runs the agent turn, and replies
// with the next say+gather round. Empty speech gets one reprompt.
func (h *TwilioWebhookHandler) HandleSpeech(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form body", http.StatusBadRequest)
		return
	}
	tenantID := r.URL.Query().Get("tenant_id")
	phone := r.URL.Query().Get("phone")
	speech := r.FormValue("SpeechResult")

	tenant, err := h.resolver.Tenant(r.Context(), tenantID)
	if err != nil {
		h.respondTwiML(w, h.rejectTwiML())
		return
	}
	lang := speechLanguage(tenant.Language)

	if speech == "" {
		elements := []twiml.Element{
			&twiml.VoiceSay{Message: repromptText(tenant.Language), Language: lang},
			h.gather(tenantID, phone, lang),
		}
		h.respondElements(w, elements)
		return
	}

	reply, err := h.turn.run(r.Context(), tenantID, phone, "", domain.ChannelCalls, speech)
	if err != nil {
		logger.Base().Error("voice agent turn failed",
			zap.String("tenant_id", tenantID), zap.Error(err))
		if errors.Is(err, agent.ErrModelUnavailable) {
			reply = unavailableText(tenant.Language)
		} else {
			reply = errorText(tenant.Language)
		}
	}

	elements := []twiml.Element{
		&twiml.VoiceSay{Message: reply, Language: lang},
		h.gather(tenantID, phone, lang),
	}
	h.respondElements(w, elements)
}

// HandleCallStatus receives lifecycle callbacks; terminal states release
// the dialer slot.
func (h *TwilioWebhookHandler) HandleCallStatus(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form body", http.StatusBadRequest)
		return
	}
	callSID := r.FormValue("CallSid")
	status := r.FormValue("CallStatus")

	if err := h.dialerService.HandleCallStatus(r.Context(), callSID, status); err != nil {
		logger.Base().Error("failed to process call status",
			zap.String("call_sid", callSID),
			zap.String("status", status),
			zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *TwilioWebhookHandler) answerWithGreeting(w http.ResponseWriter, r *http.Request, tenantID, phone string) {
	tenant, err := h.resolver.Tenant(r.Context(), tenantID)
	if err != nil {
		h.respondTwiML(w, h.rejectTwiML())
		return
	}
	lang := speechLanguage(tenant.Language)

	greeting, err := h.turn.greeting(r.Context(), tenantID, phone, domain.ChannelCalls)
	if err != nil {
		logger.Base().Error("failed to build greeting",
			zap.String("tenant_id", tenantID), zap.Error(err))
		h.respondTwiML(w, h.rejectTwiML())
		return
	}

	elements := []twiml.Element{
		&twiml.VoiceSay{Message: greeting, Language: lang},
		h.gather(tenantID, phone, lang),
	}
	h.respondElements(w, elements)
}

// gather builds the speech-collection verb pointed back at HandleSpeech.
// The query is encoded so the E.164 "+" survives the round trip.
func (h *TwilioWebhookHandler) gather(tenantID, phone, lang string) *twiml.VoiceGather {
	query := url.Values{"tenant_id": {tenantID}, "phone": {phone}}
	return &twiml.VoiceGather{
		Input:               "speech",
		Action:              "/twilio/voice/collect?" + query.Encode(),
		Method:              "POST",
		Language:            lang,
		SpeechTimeout:       "auto",
		ActionOnEmptyResult: "true",
	}
}

func (h *TwilioWebhookHandler) rejectTwiML() string {
	result, err := twiml.Voice([]twiml.Element{&twiml.VoiceHangup{}})
	if err != nil {
		return "<Response><Hangup/></Response>"
	}
	return result
}

func (h *TwilioWebhookHandler) respondElements(w http.ResponseWriter, elements []twiml.Element) {
	result, err := twiml.Voice(elements)
	if err != nil {
		logger.Base().Error("failed to render twiml", zap.Error(err))
		http.Error(w, "twiml render failed", http.StatusInternalServerError)
		return
	}
	h.respondTwiML(w, result)
}

func (h *TwilioWebhookHandler) respondTwiML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}

// speechLanguage maps the tenant language code to a Twilio speech locale.
func speechLanguage(lang string) string {
	switch lang {
	case "he", "he-IL", "":
		return "he-IL"
	case "en":
		return "en-US"
	case "ar":
		return "ar-IL"
	case "ru":
		return "ru-RU"
	default:
		return lang
	}
}

func repromptText(lang string) string {
	if lang == "en" {
		return "Sorry, I didn't catch that. Could you say it again?"
	}
	return "סליחה, לא שמעתי. אפשר לחזור על זה?"
}

func unavailableText(lang string) string {
	if lang == "en" {
		return "I'm having trouble right now. Please try again in a few minutes."
	}
	return "יש לנו תקלה זמנית. נסו שוב בעוד כמה דקות."
}

func errorText(lang string) string {
	if lang == "en" {
		return "Something went wrong on our side. Let's try that again."
	}
	return "משהו השתבש אצלנו. בואו ננסה שוב."
}
