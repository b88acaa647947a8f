package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/pdfrag/internal/models"
	"github.com/hyperjump/pdfrag/internal/storage"
	"github.com/hyperjump/pdfrag/pkg/utils"
)

const (
	msgTypeQuestion = "Please type a question."
	msgUploadFirst  = "Please upload a PDF first so I can answer based on it."
	msgPDFOnly      = "Only PDF files are allowed."
	msgTooLarge     = "File is too large."
	msgUploadFailed = "Upload failed. Please try again."
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	docs, chunks, err := s.pipeline.Stats(r.Context())
	if err != nil {
		s.reqLogger(r).Error("status: count failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]any{
		"documents": docs,
		"chunks":    chunks,
		"config": map[string]any{
			"storage_type":       s.config.Storage.Type,
			"vector_index":       s.config.Retrieval.VectorIndex,
			"embedding_provider": s.config.Embedding.Provider,
			"embedding_model":    s.config.Embedding.Model,
			"ocr_engine":         s.config.Extraction.OCREngine,
			"chunk_max_chars":    s.config.Chunking.MaxChars,
			"chunk_overlap":      s.config.Chunking.OverlapChars,
		},
	}
	dbPath := ""
	if s.config.Storage.Type == "sqlite" {
		dbPath = s.config.Storage.DatabasePath
	}
	if usage, err := storage.MeasureUsage(dbPath, s.config.Storage.UploadDir); err == nil {
		resp["disk_usage"] = usage
	} else {
		s.reqLogger(r).Warn("status: disk usage failed", zap.Error(err))
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	log := s.reqLogger(r)
	maxBytes := int64(s.config.Server.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, msgTooLarge)
			return
		}
		log.Debug("upload without file", zap.Error(err))
		s.respondError(w, http.StatusBadRequest, msgUploadFailed)
		return
	}
	defer file.Close()

	if header.Filename == "" || !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		s.respondError(w, http.StatusBadRequest, msgPDFOnly)
		return
	}
	content, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		log.Warn("upload read failed", zap.Error(err))
		s.respondError(w, http.StatusBadRequest, msgUploadFailed)
		return
	}
	if int64(len(content)) > maxBytes {
		s.respondError(w, http.StatusRequestEntityTooLarge, msgTooLarge)
		return
	}
	if err := s.saveUpload(content); err != nil {
		log.Warn("failed to keep uploaded file", zap.Error(err))
	}

	log.Info("ingesting upload", zap.String("filename", header.Filename), zap.Int("bytes", len(content)))
	resp, err := s.pipeline.IngestDocument(r.Context(), content)
	if err != nil {
		log.Error("ingest failed", zap.Error(err))
		s.respondError(w, statusFor(err), userMessage(err))
		return
	}
	status := http.StatusCreated
	if resp.Cached {
		status = http.StatusOK
	}
	s.respondJSON(w, status, resp)
}

// saveUpload keeps a copy of the upload under a random name in the upload directory.
func (s *Server) saveUpload(content []byte) error {
	dir := s.config.Storage.UploadDir
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, uuid.NewString()+".pdf"), content, 0644)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	docs, err := s.pipeline.Documents(r.Context(), offset, limit)
	if err != nil {
		s.reqLogger(r).Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"documents": docs, "offset": offset, "limit": limit})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	st, err := s.pipeline.Status(r.Context(), chi.URLParam(r, "fingerprint"))
	if err != nil {
		s.respondError(w, statusFor(err), userMessage(err))
		return
	}
	s.respondJSON(w, http.StatusOK, st)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	fp := chi.URLParam(r, "fingerprint")
	s.reqLogger(r).Debug("delete document request", zap.String("fingerprint", fp))
	if err := s.pipeline.Forget(r.Context(), fp); err != nil {
		s.reqLogger(r).Error("deletion failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	fp := chi.URLParam(r, "fingerprint")
	var query models.RetrieveQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	start := time.Now()
	chunks, err := s.pipeline.RetrieveQuery(r.Context(), fp, &query)
	if err != nil {
		if !models.IsInputError(err) {
			s.reqLogger(r).Warn("retrieve failed", zap.String("fingerprint", fp), zap.Error(err))
		}
		s.respondError(w, statusFor(err), userMessage(err))
		return
	}
	s.respondJSON(w, http.StatusOK, &models.RetrieveResponse{
		Fingerprint: fp,
		Query:       query.Query,
		Chunks:      chunks,
		QueryTime:   time.Since(start).Milliseconds(),
	})
}

type chatRequest struct {
	DocumentID string   `json:"document_id"`
	Message    string   `json:"message"`
	TopK       int      `json:"top_k,omitempty"`
	Lambda     *float64 `json:"lambda,omitempty"`
}

type chatSource struct {
	Pages models.PageRange `json:"pages"`
	Score float64          `json:"score"`
	Text  string           `json:"text"`
}

type chatResponse struct {
	Answer  string       `json:"answer"`
	Sources []chatSource `json:"sources,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	log := s.reqLogger(r)
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		s.respondJSON(w, http.StatusOK, chatResponse{Answer: msgTypeQuestion})
		return
	}
	if req.DocumentID == "" {
		s.respondJSON(w, http.StatusOK, chatResponse{Answer: msgUploadFirst})
		return
	}
	if s.answerer == nil {
		s.respondError(w, http.StatusServiceUnavailable, "answer generation is not configured")
		return
	}

	log.Info("processing prompt",
		zap.String("document", utils.Truncate(req.DocumentID, 16)),
		zap.String("prompt", utils.Truncate(req.Message, 80)))
	chunks, err := s.pipeline.RetrieveQuery(r.Context(), req.DocumentID,
		&models.RetrieveQuery{Query: req.Message, TopK: req.TopK, Lambda: req.Lambda})
	switch {
	case errors.Is(err, models.ErrUnknownDocument):
		s.respondJSON(w, http.StatusOK, chatResponse{Answer: msgUploadFirst})
		return
	case err != nil:
		log.Error("chat retrieve failed", zap.Error(err))
		s.respondJSON(w, statusFor(err), chatResponse{Answer: userMessage(err)})
		return
	}

	answer, err := s.answerer.Answer(r.Context(), req.Message, chunks)
	if err != nil {
		log.Error("chat answer failed", zap.Error(err))
		s.respondJSON(w, statusFor(err), chatResponse{Answer: userMessage(err)})
		return
	}
	sources := make([]chatSource, len(chunks))
	for i, c := range chunks {
		sources[i] = chatSource{Pages: c.Chunk.Pages, Score: c.Score, Text: c.Chunk.Text}
	}
	s.respondJSON(w, http.StatusOK, chatResponse{Answer: answer, Sources: sources})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
