// Package api is the thin HTTP submission surface: POST /jobs, GET
// /jobs/{id}, POST /jobs/{id}/cancel, GET /queues. Grounded on the
// teacher's cmd/api/main.go (stdlib net/http.ServeMux, hand-timed
// http.Server), generalized from a placeholder root handler to a real
// dispatcher onto the store/queue registry/result backend.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/nuulab/disqueue/internal/job"
	"github.com/nuulab/disqueue/internal/logger"
	"github.com/nuulab/disqueue/internal/queue"
	"github.com/nuulab/disqueue/internal/result"
	"github.com/nuulab/disqueue/internal/store"
)

// Server holds the dependencies the HTTP handlers dispatch onto.
type Server struct {
	store           store.Store
	registry        *queue.Registry
	results         result.Backend
	defaultPriority job.Priority
}

// NewServer builds a Server. results may be nil, in which case jobs are
// still enqueued but SubmitAndWait-style blocking is unavailable over
// HTTP. defaultPriority is assumed for a submission that
// omits one (config.Config.DefaultPriority, DISQUEUE_DEFAULT_PRIORITY).
func NewServer(s store.Store, registry *queue.Registry, results result.Backend, defaultPriority job.Priority) *Server {
	return &Server{store: s, registry: registry, results: results, defaultPriority: defaultPriority}
}

// Handler builds the routed mux for this server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /jobs", s.handleSubmit)
	mux.HandleFunc("GET /jobs/{id}", s.handleStatus)
	mux.HandleFunc("POST /jobs/{id}/cancel", s.handleCancel)
	mux.HandleFunc("GET /queues", s.handleListQueues)
	return mux
}

type submitRequest struct {
	QueueName string      `json:"queue_name"`
	Priority  string      `json:"priority"`
	Payload   job.Payload `json:"payload"`
	JobID     string      `json:"job_id"`
}

type submitResponse struct {
	JobID string `json:"job_id"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	priority := job.Priority(req.Priority)
	if priority == "" {
		priority = s.defaultPriority
	}
	if err := s.registry.Validate(req.QueueName, priority); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobID := req.JobID
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job_id is required")
		return
	}

	stream := queue.StreamKey(req.QueueName, priority)
	if !s.store.Enqueue(r.Context(), stream, jobID, req.Payload, priority) {
		writeError(w, http.StatusServiceUnavailable, "failed to enqueue job")
		return
	}

	writeJSON(w, http.StatusAccepted, submitResponse{JobID: jobID})
}

type statusResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	status, ok := s.store.GetStatus(r.Context(), jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{JobID: jobID, Status: string(status)})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	status, ok := s.store.GetStatus(r.Context(), jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if status != job.StatusCancelled {
		if !status.Cancellable() {
			writeError(w, http.StatusConflict, "job is "+string(status)+" and cannot be cancelled")
			return
		}
		if !s.store.Cancel(r.Context(), jobID) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
	}
	writeJSON(w, http.StatusOK, statusResponse{JobID: jobID, Status: string(job.StatusCancelled)})
}

type queueResponse struct {
	Name          string   `json:"name"`
	Priorities    []string `json:"priorities"`
	RetryStrategy string   `json:"retry_strategy"`
	RetryLimit    int      `json:"retry_limit"`
	EnableDLQ     bool     `json:"enable_dlq"`
}

func (s *Server) handleListQueues(w http.ResponseWriter, r *http.Request) {
	descriptors := s.registry.List()
	out := make([]queueResponse, 0, len(descriptors))
	for _, d := range descriptors {
		priorities := make([]string, len(d.Priorities))
		for i, p := range d.Priorities {
			priorities[i] = string(p)
		}
		out = append(out, queueResponse{
			Name:          d.Name,
			Priorities:    priorities,
			RetryStrategy: d.RetryStrategy,
			RetryLimit:    d.RetryLimit,
			EnableDLQ:     d.EnableDLQ,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to encode response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// WaitForResult exposes a blocking wait over the result backend, used by
// an optional long-poll endpoint callers can layer on top of the status
// endpoint. Kept as a method rather than its own route: DisQueue's HTTP
// surface favors polling GET /jobs/{id} per spec.md, this is here only so
// cmd/api can wire it in behind a query flag without another package.
func (s *Server) WaitForResult(ctx context.Context, jobID string, timeout time.Duration) (*result.Notification, error) {
	if s.results == nil {
		return nil, errors.New("result backend not configured")
	}
	return s.results.WaitForResult(ctx, jobID, timeout)
}
