package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/store"
	"github.com/hyperjump/kotae/pkg/utils"
)

// displayTextRunes is how much segment text the ask response carries per
// segment; the full text stays in the store.
const displayTextRunes = 200

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form or file too large")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	if !s.extensionAllowed(header.Filename) {
		s.respondError(w, http.StatusBadRequest, "unsupported file type")
		return
	}
	content, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}
	s.logger.Debug("upload request", zap.String("filename", header.Filename), zap.Int("bytes", len(content)))
	result, err := s.ingestor.IngestBytes(r.Context(), content, header.Filename)
	if err != nil {
		s.logger.Error("ingestion failed", zap.String("filename", header.Filename), zap.Error(err))
		s.respondError(w, statusFromErr(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, result)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(s.config.Search.TopK, s.config.Search.MaxTopK); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("ask request",
		zap.String("document_id", req.DocumentID),
		zap.Int("top_k", req.TopK))
	result, err := s.answerer.Answer(r.Context(), req.Question, req.DocumentID, req.TopK)
	if err != nil {
		s.logger.Error("answer failed", zap.Error(err))
		s.respondError(w, statusFromErr(err), err.Error())
		return
	}
	for i := range result.Segments {
		result.Segments[i].Text = utils.Truncate(result.Segments[i].Text, displayTextRunes)
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.List(r.Context())
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, statusFromErr(err), err.Error())
		return
	}
	if docs == nil {
		docs = []models.DocumentInfo{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"documents": docs})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, statusFromErr(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, models.DocumentInfo{
		ID:           doc.ID,
		Filename:     doc.Filename,
		SegmentCount: len(doc.Segments),
		CreatedAt:    doc.CreatedAt,
	})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete document request", zap.String("id", id))
	if err := s.store.Delete(r.Context(), id); err != nil {
		s.respondError(w, statusFromErr(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.Load(r.Context())
	if err != nil {
		s.logger.Error("status: load snapshot failed", zap.Error(err))
		s.respondError(w, statusFromErr(err), err.Error())
		return
	}
	resp := map[string]interface{}{
		"documents":  len(snap.Documents),
		"segments":   snap.SegmentCount(),
		"dimensions": snap.Dimension(),
		"config": map[string]interface{}{
			"storage_backend": s.config.Storage.Backend,
			"embedding_model": s.config.Embedding.Model,
			"llm_model":       s.config.LLM.Model,
			"chunk_max_size":  s.config.Chunking.MaxSize,
			"chunk_overlap":   s.config.Chunking.Overlap,
			"top_k":           s.config.Search.TopK,
		},
	}
	if diskBytes, err := store.DiskUsageBytes(s.config.StorePath()); err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) extensionAllowed(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range s.config.Server.UploadExtensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

// statusFromErr maps pipeline sentinel errors to HTTP status codes.
func statusFromErr(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrEmptyInput),
		errors.Is(err, models.ErrInvalidPolicy),
		errors.Is(err, models.ErrDimensionMismatch):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrEmbedding),
		errors.Is(err, models.ErrCompletion):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
