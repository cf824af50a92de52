// Package api exposes the HTTP interface for the crawl service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gbstd/std-crawler/internal/crawler"
	"github.com/gbstd/std-crawler/internal/dispatcher"
	"github.com/gbstd/std-crawler/internal/metrics"
)

// SubmissionLog mirrors new submissions into durable storage. Optional.
type SubmissionLog interface {
	RecordSubmission(ctx context.Context, task crawler.Task) error
}

// Config controls request handling defaults.
type Config struct {
	MaxPagesDefault int
	PageSizeDefault int
}

// Server wires HTTP handlers to the dispatcher and task store.
type Server struct {
	router      chi.Router
	store       crawler.TaskStore
	dispatcher  *dispatcher.Dispatcher
	idGen       crawler.IDGenerator
	clock       crawler.Clock
	submissions SubmissionLog
	cfg         Config
	logger      *zap.Logger
}

// NewServer constructs a Server with middleware and routes. submissions may
// be nil.
func NewServer(
	store crawler.TaskStore,
	dispatcher *dispatcher.Dispatcher,
	idGen crawler.IDGenerator,
	clock crawler.Clock,
	submissions SubmissionLog,
	cfg Config,
	logger *zap.Logger,
) *Server {
	if cfg.MaxPagesDefault <= 0 {
		cfg.MaxPagesDefault = 3
	}
	if cfg.PageSizeDefault <= 0 {
		cfg.PageSizeDefault = 20
	}
	s := &Server{
		store:       store,
		dispatcher:  dispatcher,
		idGen:       idGen,
		clock:       clock,
		submissions: submissions,
		cfg:         cfg,
		logger:      logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/search", s.submitSearch)
		r.Post("/batch_search", s.submitBatchSearch)
		r.Get("/status/{task_id}", s.getStatus)
		r.Get("/results/{task_id}", s.getResults)
		r.Get("/export/{task_id}", s.export)
		r.Get("/history", s.history)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type searchRequest struct {
	Keyword     string   `json:"keyword"`
	Keywords    []string `json:"keywords"`
	MaxPages    int      `json:"max_pages"`
	StdType     string   `json:"std_type"`
	StdStatus   string   `json:"std_status"`
	WithDetails bool     `json:"with_details"`
}

type taskResponse struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *Server) submitSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Keyword) == "" {
		s.writeError(w, http.StatusBadRequest, "keyword is required")
		return
	}
	params := s.toParams(req, []string{strings.TrimSpace(req.Keyword)}, crawler.TaskModeSingle)
	s.submit(w, r, params)
}

func (s *Server) submitBatchSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	keywords := make([]string, 0, len(req.Keywords))
	for _, kw := range req.Keywords {
		if trimmed := strings.TrimSpace(kw); trimmed != "" {
			keywords = append(keywords, trimmed)
		}
	}
	if len(keywords) == 0 {
		s.writeError(w, http.StatusBadRequest, "keywords are required")
		return
	}
	params := s.toParams(req, keywords, crawler.TaskModeBatch)
	s.submit(w, r, params)
}

func (s *Server) toParams(req searchRequest, keywords []string, mode crawler.TaskMode) crawler.TaskParams {
	maxPages := req.MaxPages
	if maxPages <= 0 {
		maxPages = s.cfg.MaxPagesDefault
	}
	return crawler.TaskParams{
		Keywords: keywords,
		MaxPages: maxPages,
		Filter: crawler.SearchFilter{
			StdType:   req.StdType,
			StdStatus: req.StdStatus,
		},
		WithDetails: req.WithDetails,
		Mode:        mode,
	}
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request, params crawler.TaskParams) {
	now := s.clock.Now()
	taskID, err := s.idGen.NewTaskID(now)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("generate task id: %v", err))
		return
	}
	task := crawler.Task{
		ID:        taskID,
		Status:    crawler.TaskStatusRunning,
		Progress:  0,
		Message:   "task submitted",
		Params:    params,
		CreatedAt: now,
	}
	if err := s.store.CreateTask(r.Context(), task); err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("create task: %v", err))
		return
	}
	if s.submissions != nil {
		if err := s.submissions.RecordSubmission(r.Context(), task); err != nil {
			s.logger.Warn("submission log failed", zap.String("task_id", taskID), zap.Error(err))
		}
	}

	queueCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	item := crawler.QueueItem{
		TaskID:    taskID,
		Params:    params,
		Submitted: now.Unix(),
	}
	if err := s.dispatcher.Enqueue(queueCtx, item); err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("enqueue task: %v", err))
		return
	}

	s.writeJSON(w, http.StatusAccepted, taskResponse{
		TaskID:  taskID,
		Status:  string(crawler.TaskStatusRunning),
		Message: fmt.Sprintf("crawl task started for %s", strings.Join(params.Keywords, ", ")),
	})
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")
	task, err := s.store.GetTask(r.Context(), taskID)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"task_id":      task.ID,
		"status":       task.Status,
		"progress":     task.Progress,
		"message":      task.Message,
		"total":        task.Total,
		"keywords":     task.Params.Keywords,
		"with_details": task.Params.WithDetails,
	})
}

func (s *Server) getResults(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", s.cfg.PageSizeDefault)

	result, err := s.store.ResultPage(r.Context(), taskID, page, pageSize)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}

	records, err := s.store.Records(r.Context(), taskID)
	switch {
	case errors.Is(err, crawler.ErrTaskNotFound):
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	case errors.Is(err, crawler.ErrTaskNotCompleted):
		s.writeError(w, http.StatusBadRequest, "task not completed yet")
		return
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var (
		payload     []byte
		contentType string
	)
	switch format {
	case "json":
		payload, err = crawler.ExportJSON(records)
		contentType = "application/json"
	case "csv":
		payload, err = crawler.ExportCSV(records)
		contentType = "text/csv; charset=utf-8"
	default:
		s.writeError(w, http.StatusBadRequest, "unsupported format")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=standards_%s.%s", taskID, format))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(payload); err != nil {
		s.logger.Error("export write failed", zap.Error(err))
	}
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.store.ListTasks(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	entries := make([]map[string]any, 0, len(tasks))
	for _, task := range tasks {
		entries = append(entries, map[string]any{
			"task_id":    task.ID,
			"keywords":   task.Params.Keywords,
			"status":     task.Status,
			"total":      task.Total,
			"created_at": task.CreatedAt,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return def
	}
	return v
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			metrics.ObserveHTTPRequest(r.Method, ww.status)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write([]byte(`{"error":"internal server error"}`))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
