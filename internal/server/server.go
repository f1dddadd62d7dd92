// internal/server/server.go
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"github.com/ThinkInAIXYZ/go-mcp/server"
	"github.com/goccy/go-json"

	"kids-meal-log/internal/config"
	"kids-meal-log/internal/logging"
	"kids-meal-log/internal/narration"
	"kids-meal-log/internal/recommend"
	"kids-meal-log/internal/service"
	"kids-meal-log/internal/storage"
)

const Version = "1.0.0"

type MealLogServer struct {
	server     *server.Server
	httpServer *http.Server
	storage    io.Closer
	meals      *service.MealService
	pages      *pageRenderer
	tools      map[string]toolHandler
	config     *config.Config
}

// NewMealLogServer opens storage and the narration client described by cfg.
func NewMealLogServer(cfg *config.Config) (*MealLogServer, error) {
	stor, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	client := narration.NewSamplingClient(cfg.Narration)
	if client.Configured() {
		logging.Info().Str("model", cfg.Narration.Model).Msg("Narration API key loaded")
	} else {
		logging.Info().Msg("Narration API key not set; AI recommendations will report not configured")
	}

	opts := recommend.Options{MinPercent: cfg.Recommend.MinPercent, TopN: cfg.Recommend.TopN}
	meals := service.NewMealService(stor, client, cfg.Roster, opts)

	s, err := newMealLogServer(cfg, meals)
	if err != nil {
		stor.Close()
		return nil, err
	}
	s.storage = stor
	return s, nil
}

func newMealLogServer(cfg *config.Config, meals *service.MealService) (*MealLogServer, error) {
	mealServer := &MealLogServer{
		meals:  meals,
		config: cfg,
	}

	pages, err := newPageRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	mealServer.pages = pages

	// Transport is handled by handleMCP below.
	mcpServer, err := server.NewServer(
		nil,
		server.WithServerInfo(protocol.Implementation{
			Name:    "kids-meal-log",
			Version: Version,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP server: %w", err)
	}
	mealServer.server = mcpServer
	mealServer.registerTools()

	mealServer.httpServer = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      mealServer.routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return mealServer, nil
}

// Handler exposes the router, mainly for tests.
func (s *MealLogServer) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *MealLogServer) Start(ctx context.Context) error {
	logging.Info().Str("addr", s.httpServer.Addr).Msg("Starting meal log server")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *MealLogServer) Stop(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	if s.storage != nil {
		if cerr := s.storage.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
