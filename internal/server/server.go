// Package server provides the HTTP API for pdfrag.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/pdfrag/internal/config"
	"github.com/hyperjump/pdfrag/internal/models"
)

// Pipeline is the ingestion and retrieval core the server exposes.
type Pipeline interface {
	IngestDocument(ctx context.Context, content []byte) (*models.IngestResponse, error)
	Status(ctx context.Context, fingerprint string) (*models.Status, error)
	RetrieveQuery(ctx context.Context, fingerprint string, q *models.RetrieveQuery) ([]*models.ContextChunk, error)
	Forget(ctx context.Context, fingerprint string) error
	Documents(ctx context.Context, offset, limit int) ([]*models.Document, error)
	Stats(ctx context.Context) (docs, chunks int64, err error)
}

// Answerer writes an answer to a question from retrieved chunks.
type Answerer interface {
	Answer(ctx context.Context, question string, chunks []*models.ContextChunk) (string, error)
}

// Server is the HTTP server for the pdfrag API.
type Server struct {
	pipeline Pipeline
	answerer Answerer
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server. answerer may be nil, in which case chat requests are refused.
func NewServer(p Pipeline, answerer Answerer, cfg *config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		pipeline: p,
		answerer: answerer,
		config:   cfg,
		logger:   logger,
	}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Ingesting a scanned document can take as long as the pipeline allows.
	r.Use(middleware.Timeout(s.config.Pipeline.IngestTimeout + 30*time.Second))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/documents", s.handleUpload)
		r.Get("/documents", s.handleListDocuments)
		r.Get("/documents/{fingerprint}", s.handleGetDocument)
		r.Delete("/documents/{fingerprint}", s.handleDeleteDocument)
		r.Post("/documents/{fingerprint}/retrieve", s.handleRetrieve)
		r.With(middleware.Compress(5)).Post("/chat", s.handleChat)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
