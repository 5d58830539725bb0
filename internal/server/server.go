// Package server provides the HTTP API for Kotae.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/artifact"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/engine"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/pipeline"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vector"
)

// Server is the HTTP server for the Kotae API.
type Server struct {
	engine    *engine.Engine
	pipeline  *pipeline.Pipeline
	artifacts *artifact.Store
	storage   storage.Storage
	vectors   vector.Index
	keywords  keyword.ChunkIndex
	config    *config.ServerConfig
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	eng *engine.Engine,
	pipe *pipeline.Pipeline,
	artifacts *artifact.Store,
	store storage.Storage,
	vectors vector.Index,
	keywords keyword.ChunkIndex,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	return &Server{
		engine:    eng,
		pipeline:  pipe,
		artifacts: artifacts,
		storage:   store,
		vectors:   vectors,
		keywords:  keywords,
		config:    cfg,
		logger:    logger,
	}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Routes(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Routes builds the router. Exposed separately so tests can drive handlers
// without a listening socket.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/documents", s.handleCreateDocument)
	r.Get("/api/v1/documents", s.handleListDocuments)
	r.Get("/api/v1/documents/{id}", s.handleGetDocument)
	r.Delete("/api/v1/documents/{id}", s.handleDeleteDocument)

	r.Put("/api/v1/documents/{id}/artifacts/{kind}", s.handlePutArtifact)
	r.Get("/api/v1/documents/{id}/artifacts", s.handleArtifactStatus)
	r.Post("/api/v1/documents/{id}/artifacts/{kind}/generate", s.handleGenerateArtifact)

	r.Get("/api/v1/documents/{id}/pipeline", s.handlePipelineStatus)
	r.Post("/api/v1/documents/{id}/pipeline/{stage}", s.handleApplyStage)

	r.Post("/api/v1/ask", s.handleAsk)
	r.Get("/api/v1/queries/{id}", s.handleGetQuery)
	r.Put("/api/v1/queries/{id}/context", s.handleSaveContext)
	r.Post("/api/v1/queries/{id}/results", s.handleRecordResult)
	r.Get("/api/v1/queries/{id}/results", s.handleListResults)

	r.Post("/api/v1/configs", s.handleCreateConfig)
	r.Get("/api/v1/configs", s.handleListConfigs)
	r.Get("/api/v1/configs/{id}", s.handleGetConfig)
	r.Put("/api/v1/configs/{id}", s.handleUpdateConfig)
	r.Post("/api/v1/configs/{id}/default", s.handleSetDefaultConfig)

	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
