// Package server wires the Gearbox components into a ready HTTP handler.
//
// Usage:
//
//	cfg, _ := config.Load()
//	srv, err := server.New(ctx, cfg)
//	defer srv.Close(ctx)
//	http.ListenAndServe(":8080", srv.Handler)
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/gearbox-app/gearbox/internal/api"
	"github.com/gearbox-app/gearbox/internal/api/handlers"
	"github.com/gearbox-app/gearbox/internal/chat"
	"github.com/gearbox-app/gearbox/internal/config"
	"github.com/gearbox-app/gearbox/internal/executor"
	"github.com/gearbox-app/gearbox/internal/interpreter"
	"github.com/gearbox-app/gearbox/internal/llm"
	"github.com/gearbox-app/gearbox/internal/store"
	"github.com/gearbox-app/gearbox/internal/telemetry"
	"github.com/gearbox-app/gearbox/internal/weather"
)

// Server holds the initialized Gearbox process resources.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Store is the equipment store backing every handler.
	Store store.Store

	Config *config.Config

	// Port is the port the server should listen on.
	Port int

	shutdownTelemetry func(context.Context) error
}

// New initializes all components from cfg and returns a ready Server.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	shutdown, err := telemetry.Init(ctx, cfg.Telemetry, cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	dataStore, err := store.New(ctx, cfg.Store.Driver, cfg.Store.DataDir, cfg.Store.SQLitePath, cfg.Store.DatabaseURL)
	if err != nil {
		shutdown(ctx)
		return nil, fmt.Errorf("open store: %w", err)
	}
	log.Info().Str("driver", cfg.Store.Driver).Msg("✅ Equipment store initialized")

	modelRouter, err := llm.FromConfig(ctx, cfg.LLM)
	if err != nil {
		dataStore.Close()
		shutdown(ctx)
		return nil, fmt.Errorf("init model router: %w", err)
	}
	if len(modelRouter.Providers()) == 0 {
		log.Warn().Msg("No LLM provider has credentials; chat will answer with an apology")
	}

	wx := weather.New(cfg.Weather)
	if cfg.Weather.APIKey == "" {
		log.Warn().Msg("No weather API key; forecasts use the fallback payload")
	}

	interp := interpreter.New(modelRouter, cfg.LLM.Temperature, cfg.LLM.MaxTokens)
	orchestrator := chat.New(dataStore, interp, executor.New(dataStore))
	log.Info().Msg("✅ Chat orchestrator initialized")

	h := handlers.New(dataStore, orchestrator, wx, interp)

	return &Server{
		Handler:           api.NewRouter(cfg, h),
		Store:             dataStore,
		Config:            cfg,
		Port:              cfg.Port,
		shutdownTelemetry: shutdown,
	}, nil
}

// Close flushes telemetry and closes the store. It reports both errors.
func (s *Server) Close(ctx context.Context) error {
	var errs []error
	if s.shutdownTelemetry != nil {
		if err := s.shutdownTelemetry(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
		}
	}
	if err := s.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}
