package handler

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/maane-ai/assist-service/internal/config"
	"github.com/maane-ai/assist-service/internal/repository"
	"github.com/maane-ai/assist-service/internal/services/agent"
	"github.com/maane-ai/assist-service/internal/services/calendar"
	"github.com/maane-ai/assist-service/internal/services/crm"
	"github.com/maane-ai/assist-service/internal/services/dialer"
	promptsvc "github.com/maane-ai/assist-service/internal/services/prompt"
	"github.com/maane-ai/assist-service/pkg/logger"
	"github.com/maane-ai/assist-service/pkg/redis"
	"github.com/maane-ai/assist-service/pkg/whatsapp"
)

// HandlerManager wires the services and registers every route.
type HandlerManager struct {
	config      *config.AssistConfig
	repoManager repository.RepositoryManager
	redisSvc    *redis.Service

	resolver      *promptsvc.Resolver
	agents        *agent.Factory
	crmService    *crm.Service
	dialerService *dialer.Dialer
	waClient      *whatsapp.Client
}

// NewHandlerManager creates and initializes all services
func NewHandlerManager(cfg *config.AssistConfig) (*HandlerManager, error) {
	repoManager, err := repository.NewRepositoryManager()
	if err != nil {
		logger.Base().Error("failed to connect to database", zap.Error(err))
		return nil, err
	}

	redisConfig := &redis.Config{
		Host:     config.GetEnvOrDefault("REDIS_HOST", "localhost"),
		Port:     config.GetEnvOrDefault("REDIS_PORT", "6379"),
		Password: config.GetEnvOrDefault("REDIS_PASSWORD", ""),
		DB:       config.GetEnvAsIntOrDefault("REDIS_DB", 0),
	}
	redisSvc, err := redis.NewService(redisConfig)
	if err != nil {
		logger.Base().Error("failed to connect to redis", zap.Error(err))
		return nil, err
	}

	resolver := promptsvc.NewResolver(repoManager, redisSvc, cfg.InstanceID)

	crmService := crm.NewService(repoManager)
	calendarService := calendar.NewService(repoManager)

	// Calls get the full toolset; WhatsApp drops nothing today but the
	// split keeps per-channel toolsets cheap to diverge.
	callTools := append(calendarService.Tools(), crmService.Tools()...)
	whatsappTools := append(calendarService.Tools(), crmService.Tools()...)

	agents := agent.NewFactory(cfg, resolver, callTools, whatsappTools)
	dialerService := dialer.New(cfg, redisSvc, repoManager, resolver)
	waClient := whatsapp.NewClient(cfg.WhatsAppBaseURL, cfg.WhatsAppAccessToken)

	return &HandlerManager{
		config:        cfg,
		repoManager:   repoManager,
		redisSvc:      redisSvc,
		resolver:      resolver,
		agents:        agents,
		crmService:    crmService,
		dialerService: dialerService,
		waClient:      waClient,
	}, nil
}

// Start launches the background workers: cache invalidation subscriber,
// dial queue worker, and stale slot reaper.
func (hm *HandlerManager) Start(ctx context.Context) error {
	if err := hm.resolver.Start(ctx); err != nil {
		return err
	}
	if err := hm.dialerService.Start(ctx); err != nil {
		return err
	}
	return nil
}

// Stop releases background resources
func (hm *HandlerManager) Stop() {
	hm.dialerService.Stop()
	if err := hm.redisSvc.Close(); err != nil {
		logger.Base().Error("failed to close redis", zap.Error(err))
	}
	if err := hm.repoManager.Close(); err != nil {
		logger.Base().Error("failed to close database", zap.Error(err))
	}
}

// SetupAllRoutes sets up all routes with middleware
func (hm *HandlerManager) SetupAllRoutes(router *mux.Router) {
	router.Use(CORSMiddleware)
	router.Use(GlobalLoggingMiddleware)

	hm.SetupAPIRoutes(router)
	hm.SetupWebhookRoutes(router)

	router.HandleFunc("/healthz", hm.HandleHealth).Methods("GET")

	logger.Base().Info("all application routes registered")
}

// SetupAPIRoutes registers the admin API behind the API key middleware
func (hm *HandlerManager) SetupAPIRoutes(router *mux.Router) {
	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(LoggingMiddleware)
	apiRouter.Use(ValidationMiddleware)
	apiRouter.Use(APIKeyMiddleware(hm.config.SecretKey))

	tenantHandler := NewTenantHandler(hm.repoManager, hm.resolver)
	tenantHandler.SetupTenantRoutes(apiRouter)

	crmHandler := NewCRMHandler(hm.crmService, hm.repoManager)
	crmHandler.SetupCRMRoutes(apiRouter)

	dialerHandler := NewDialerHandler(hm.dialerService)
	dialerHandler.SetupDialerRoutes(apiRouter)

	logger.Base().Info("admin api routes registered")
}

// SetupWebhookRoutes registers the Twilio and WhatsApp webhook endpoints.
// These authenticate by provider convention, not the admin API key.
func (hm *HandlerManager) SetupWebhookRoutes(router *mux.Router) {
	twilioHandler := NewTwilioWebhookHandler(hm.agents, hm.crmService, hm.resolver, hm.repoManager, hm.dialerService)
	twilioHandler.SetupTwilioRoutes(router)

	whatsappHandler := NewWhatsAppWebhookHandler(hm.agents, hm.crmService, hm.repoManager, hm.waClient, hm.config.WhatsAppVerifyToken)
	whatsappHandler.SetupWhatsAppRoutes(router)

	logger.Base().Info("webhook routes registered")
}

// HandleHealth reports readiness of the backing stores
func (hm *HandlerManager) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := hm.repoManager.Ping(r.Context()); err != nil {
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	if _, err := hm.redisSvc.Client().Ping(r.Context()).Result(); err != nil {
		http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
