package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/artifact"
	"github.com/hyperjump/kotae/internal/engine"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/pipeline"
	"github.com/hyperjump/kotae/internal/retrieval"
	"github.com/hyperjump/kotae/internal/storage"
)

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var doc models.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	s.logger.Debug("create document request", zap.String("id", doc.ID), zap.String("title", doc.Title))
	if err := s.storage.CreateDocument(r.Context(), &doc); err != nil {
		s.respondMappedError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.storage.ListDocuments(r.Context(), 0, 200)
	if err != nil {
		s.respondMappedError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"documents": docs})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.storage.GetDocument(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "document not found")
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete document request", zap.String("id", id))
	chunks, err := s.storage.GetChunksByDocument(r.Context(), id, models.ChunkKindHeading)
	if err != nil {
		s.respondMappedError(w, err)
		return
	}
	content, err := s.storage.GetChunksByDocument(r.Context(), id, models.ChunkKindContent)
	if err != nil {
		s.respondMappedError(w, err)
		return
	}
	chunks = append(chunks, content...)
	if len(chunks) > 0 {
		ids := make([]string, len(chunks))
		for i, c := range chunks {
			ids[i] = c.ID
		}
		if err := s.vectors.Remove(r.Context(), ids); err != nil {
			s.respondMappedError(w, err)
			return
		}
		if err := s.keywords.DeleteBatch(r.Context(), ids); err != nil {
			s.respondMappedError(w, err)
			return
		}
	}
	if err := s.storage.DeleteDocument(r.Context(), id); err != nil {
		s.respondMappedError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handlePutArtifact(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	kind := models.ArtifactKind(chi.URLParam(r, "kind"))
	if !kind.Valid() {
		s.respondError(w, http.StatusBadRequest, "unknown artifact kind")
		return
	}
	if _, err := s.storage.GetDocument(r.Context(), id); err != nil {
		s.respondError(w, http.StatusNotFound, "document not found")
		return
	}
	content, err := io.ReadAll(r.Body)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	a, err := s.artifacts.Write(r.Context(), id, kind, content)
	if err != nil {
		s.respondMappedError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, a)
}

func (s *Server) handleArtifactStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	statuses, err := s.pipeline.Evaluate(r.Context(), id)
	if err != nil {
		s.respondMappedError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"artifacts": statuses})
}

func (s *Server) handleGenerateArtifact(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	kind := models.ArtifactKind(chi.URLParam(r, "kind"))
	var (
		a   *models.Artifact
		err error
	)
	switch kind {
	case models.ArtifactHeadingTitles:
		a, err = s.pipeline.GenerateHeadingTitles(r.Context(), id)
	case models.ArtifactVecSuggestions:
		a, err = s.pipeline.GenerateVecSuggestions(r.Context(), id)
	default:
		s.respondError(w, http.StatusBadRequest, "artifact kind cannot be generated")
		return
	}
	if err != nil {
		s.respondMappedError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, a)
}

func (s *Server) handlePipelineStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	status, err := s.storage.GetPipelineStatus(r.Context(), id)
	if err != nil {
		s.respondMappedError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleApplyStage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	stage := models.Stage(chi.URLParam(r, "stage"))
	force := r.URL.Query().Get("force") == "true"
	s.logger.Debug("apply stage request", zap.String("id", id), zap.String("stage", string(stage)), zap.Bool("force", force))

	var (
		chunks []*models.Chunk
		err    error
	)
	switch stage {
	case models.StageHeadingChunks:
		chunks, err = s.pipeline.ApplyHeadingChunks(r.Context(), id, force)
	case models.StageContentChunks:
		chunks, err = s.pipeline.ApplyContentChunks(r.Context(), id, force)
	default:
		s.respondError(w, http.StatusBadRequest, "unknown pipeline stage")
		return
	}
	if err != nil {
		s.respondMappedError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"stage":  stage,
		"chunks": len(chunks),
	})
}

type askRequest struct {
	Query      string `json:"query"`
	ConfigName string `json:"config_name,omitempty"`
	Generate   bool   `json:"generate,omitempty"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	s.logger.Debug("ask request", zap.String("query", req.Query), zap.Bool("generate", req.Generate))
	answer, err := s.engine.Ask(r.Context(), req.Query, engine.AskOptions{
		ConfigName: req.ConfigName,
		Generate:   req.Generate,
	})
	if err != nil {
		s.logger.Error("ask failed", zap.Error(err))
		s.respondMappedError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, answer)
}

func (s *Server) handleGetQuery(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	q, err := s.storage.GetQuery(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "query not found")
		return
	}
	s.respondJSON(w, http.StatusOK, q)
}

type saveContextRequest struct {
	Items []string `json:"items"`
}

func (s *Server) handleSaveContext(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req saveContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.engine.SaveCleanContext(r.Context(), id, req.Items); err != nil {
		s.respondMappedError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

type recordResultRequest struct {
	ResponseText string `json:"response_text"`
}

func (s *Server) handleRecordResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req recordResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := s.engine.RecordResponse(r.Context(), id, req.ResponseText)
	if err != nil {
		s.respondMappedError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, result)
}

func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	results, err := s.storage.ListResults(r.Context(), id)
	if err != nil {
		s.respondMappedError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

func (s *Server) handleCreateConfig(w http.ResponseWriter, r *http.Request) {
	var cfg models.RagConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.storage.CreateRagConfig(r.Context(), &cfg); err != nil {
		s.respondMappedError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, cfg)
}

func (s *Server) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.storage.ListRagConfigs(r.Context())
	if err != nil {
		s.respondMappedError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"configs": configs})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cfg, err := s.storage.GetRagConfig(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "config not found")
		return
	}
	s.respondJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var cfg models.RagConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	cfg.ID = id
	if err := s.storage.UpdateRagConfig(r.Context(), &cfg); err != nil {
		s.respondMappedError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleSetDefaultConfig(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.storage.SetDefaultRagConfig(r.Context(), id); err != nil {
		s.respondMappedError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "default set"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docCount, err := s.storage.CountDocuments(ctx)
	if err != nil {
		s.respondMappedError(w, err)
		return
	}
	chunkCount, err := s.storage.CountChunks(ctx)
	if err != nil {
		s.respondMappedError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"documents":         docCount,
		"chunks":            chunkCount,
		"vector_index_size": s.vectors.Size(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respondMappedError translates domain error kinds to HTTP status codes.
func (s *Server) respondMappedError(w http.ResponseWriter, err error) {
	var (
		precondErr  *pipeline.PreconditionError
		hashErr     *artifact.HashMismatchError
		contextErr  *storage.InsufficientContextError
		validErr    *models.ConfigValidationError
		upstreamErr *retrieval.UpstreamError
	)
	switch {
	case errors.As(err, &precondErr), errors.As(err, &hashErr):
		s.respondError(w, http.StatusConflict, err.Error())
	case errors.As(err, &contextErr):
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &validErr):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &upstreamErr):
		s.respondError(w, http.StatusBadGateway, err.Error())
	default:
		s.respondError(w, http.StatusInternalServerError, err.Error())
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
