package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi"
	"github.com/rs/cors"

	"github.com/luminalab/mindloom/pkg/aggregator"
	"github.com/luminalab/mindloom/pkg/sources/screenshots"
)

// Server exposes the aggregated timeline over HTTP.
type Server struct {
	logger     *log.Logger
	aggregator *aggregator.Aggregator
	batch      *screenshots.BatchProcessor
	router     *chi.Mux
}

func NewServer(logger *log.Logger, agg *aggregator.Aggregator, batch *screenshots.BatchProcessor) *Server {
	s := &Server{
		logger:     logger,
		aggregator: agg,
		batch:      batch,
	}

	router := chi.NewRouter()
	router.Use(cors.New(cors.Options{
		AllowCredentials: true,
		AllowedOrigins:   []string{"*"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Accept"},
		Debug:            false,
	}).Handler)

	router.Get("/api/health", s.handleHealth)
	router.Get("/api/timeline", s.handleTimeline)
	router.Get("/api/clusters", s.handleClusters)
	router.Get("/api/statistics", s.handleStatistics)
	router.Get("/api/search", s.handleSearch)
	router.Post("/api/aggregate", s.handleAggregate)
	router.Post("/api/batch/start", s.handleBatchStart)
	router.Post("/api/batch/stop", s.handleBatchStop)
	router.Get("/api/batch/status", s.handleBatchStatus)

	s.router = router
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.aggregator.Timeline())
}

func (s *Server) handleClusters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.aggregator.Clusters())
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats := s.aggregator.Statistics()
	if stats == nil {
		writeError(w, http.StatusNotFound, "no_data", "no aggregation has completed yet")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing_query", "query parameter q is required")
		return
	}
	writeJSON(w, http.StatusOK, s.aggregator.Search(r.Context(), query))
}

type aggregateRequest struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	var req aggregateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be JSON with start and end timestamps")
		return
	}
	if !req.End.IsZero() && !req.Start.IsZero() && req.End.Before(req.Start) {
		writeError(w, http.StatusBadRequest, "invalid_range", "end must not be before start")
		return
	}
	if req.End.IsZero() {
		req.End = time.Now()
	}

	result, err := s.aggregator.Aggregate(r.Context(), req.Start, req.End)
	if err != nil {
		s.logger.Error("Aggregation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "aggregation_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleBatchStart(w http.ResponseWriter, r *http.Request) {
	if s.batch == nil {
		writeError(w, http.StatusNotFound, "batch_unavailable", "screenshot processing is not configured")
		return
	}
	if s.batch.Running() {
		writeError(w, http.StatusConflict, "batch_running", "a batch run is already in progress")
		return
	}

	go func() {
		if _, err := s.batch.Process(context.Background(), nil); err != nil {
			s.logger.Error("Batch processing failed", "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) handleBatchStop(w http.ResponseWriter, r *http.Request) {
	if s.batch == nil {
		writeError(w, http.StatusNotFound, "batch_unavailable", "screenshot processing is not configured")
		return
	}
	s.batch.Stop()
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopping"})
}

func (s *Server) handleBatchStatus(w http.ResponseWriter, r *http.Request) {
	if s.batch == nil {
		writeError(w, http.StatusNotFound, "batch_unavailable", "screenshot processing is not configured")
		return
	}
	status := s.batch.Status()
	if status == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "idle"})
		return
	}
	writeJSON(w, http.StatusOK, status)
}
