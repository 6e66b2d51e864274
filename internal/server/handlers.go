package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"axial/internal/pipeline"
)

// HealthResponse is the /health payload
type HealthResponse struct {
	Status      string            `json:"status"`
	AIAvailable bool              `json:"aiAvailable"`
	Timestamp   time.Time         `json:"timestamp"`
	Checks      map[string]string `json:"checks"`
}

// handleHealth handles the /health endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:      "ok",
		AIAvailable: s.pipeline.AIAvailable(),
		Timestamp:   s.now().UTC(),
		Checks:      map[string]string{"database": "ok"},
	}

	if err := s.db.Ping(r.Context()); err != nil {
		s.log.Warn("Health check database ping failed", "error", err)
		resp.Status = "unhealthy"
		resp.Checks["database"] = "error"
		s.respondJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	s.respondJSON(w, http.StatusOK, resp)
}

// stageContext detaches a stage run from the request so a dropped client
// does not abort it halfway
func stageContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

// handleSync handles POST /api/pipeline/sync
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	result, err := s.pipeline.RunSync(stageContext(r))
	if err != nil {
		s.respondStageError(w, pipeline.StageSync, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

// handleEnrich handles POST /api/pipeline/enrich
func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	enriched, err := s.pipeline.RunEnrichment(stageContext(r))
	if err != nil {
		s.respondStageError(w, pipeline.StageEnrich, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]int{"enriched": enriched})
}

// handleDigest handles POST /api/pipeline/digest
func (s *Server) handleDigest(w http.ResponseWriter, r *http.Request) {
	created, err := s.pipeline.RunDigest(stageContext(r))
	if err != nil {
		s.respondStageError(w, pipeline.StageDigest, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]bool{"created": created})
}

// handleStatus handles GET /api/pipeline/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.pipeline.Status(r.Context())
	if err != nil {
		s.log.Error("Failed to build pipeline status", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to load pipeline status")
		return
	}
	s.respondJSON(w, http.StatusOK, status)
}

func (s *Server) respondStageError(w http.ResponseWriter, stage pipeline.Stage, err error) {
	if errors.Is(err, pipeline.ErrStageBusy) {
		s.respondError(w, http.StatusConflict, string(stage)+" is already running")
		return
	}
	s.log.Error("Pipeline stage failed", "stage", stage, "error", err)
	s.respondError(w, http.StatusInternalServerError, string(stage)+" failed")
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("Failed to encode JSON response", "error", err)
	}
}

// respondError writes a JSON error envelope
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"status":  status,
			"message": message,
		},
	})
}
