package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/maane-ai/assist-service/internal/config"
	"github.com/maane-ai/assist-service/internal/handler"
	"github.com/maane-ai/assist-service/pkg/logger"
)

// Server is the assist service HTTP server.
type Server struct {
	config         *config.AssistConfig
	router         *mux.Router
	handlerManager *handler.HandlerManager
}

// NewServer wires the full service: database, Redis, prompt resolver,
// agents, dialer, and all routes.
func NewServer(cfg *config.AssistConfig) (*Server, error) {
	if _, err := logger.Init(os.Getenv("LOG_ENV")); err != nil {
		log.Printf("failed to initialize zap logger, falling back to std log: %v", err)
	}

	router := mux.NewRouter()

	handlerManager, err := handler.NewHandlerManager(cfg)
	if err != nil {
		return nil, err
	}

	handlerManager.SetupAllRoutes(router)

	return &Server{
		config:         cfg,
		router:         router,
		handlerManager: handlerManager,
	}, nil
}

// Run starts the background workers and serves HTTP until the process is
// signalled.
func (s *Server) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := s.handlerManager.Start(ctx); err != nil {
		return err
	}
	defer s.handlerManager.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Base().Info("starting server", zap.String("addr", server.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Base().Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

func main() {
	// Load .env for local development; production sets real env vars.
	if err := godotenv.Load(); err != nil {
		log.Printf("info: .env file not found or skipped: %v", err)
	}

	cfg := config.LoadFromEnv()

	server, err := NewServer(cfg)
	if err != nil {
		log.Fatalf("failed to create server: %v", err)
	}
	defer logger.Sync()

	logger.Base().Info("server initialized",
		zap.String("port", cfg.Port),
		zap.String("instance_id", cfg.InstanceID))

	if err := server.Run(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server failed: %v", err)
	}
}
