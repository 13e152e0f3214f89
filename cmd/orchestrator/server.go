package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cschleiden/go-orchestrator/client"
	"github.com/cschleiden/go-orchestrator/samples/doubling"
)

const startWaitTimeout = 30 * time.Second

type server struct {
	client *client.Client
	appID  string
	clock  clock.Clock
	logger *slog.Logger

	waitTimeout time.Duration
}

func newServer(c *client.Client, appID string, clock clock.Clock, logger *slog.Logger) *server {
	return &server{
		client:      c,
		appID:       appID,
		clock:       clock,
		logger:      logger,
		waitTimeout: startWaitTimeout,
	}
}

type startRequest struct {
	Input string `json:"input,omitempty"`
}

type workflowResponse struct {
	Status     string          `json:"status"`
	InstanceID string          `json:"instance_id,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	Message    string          `json:"message,omitempty"`
	Error      string          `json:"error,omitempty"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.health)
	mux.HandleFunc("POST /start", s.start)
	mux.HandleFunc("GET /status/{id}", s.status)

	return mux
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: s.clock.Now().Format(time.RFC3339),
	})
}

// start starts RootWorkflow and waits for its result. Without input the current time is used.
func (s *server) start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if r.Header.Get("Content-Type") == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeJSON(w, http.StatusBadRequest, workflowResponse{
				Status: "failed",
				Error:  fmt.Sprintf("parsing request body: %v", err),
			})
			return
		}
	}

	input := req.Input
	if input == "" {
		input = s.clock.Now().Format(time.RFC3339)
	}

	ctx := r.Context()

	id, err := s.client.ScheduleNewWorkflow(ctx, doubling.RootWorkflow, input, client.WithAppID(s.appID))
	if err != nil {
		s.logger.Error("Starting workflow", "error", err)
		writeJSON(w, http.StatusInternalServerError, workflowResponse{
			Status: "failed",
			Error:  fmt.Sprintf("starting workflow: %v", err),
		})
		return
	}

	s.logger.Info("Started workflow", "instance_id", id, "input", input)

	result, err := client.GetWorkflowResult[string](ctx, s.client, id, s.waitTimeout)
	if err != nil {
		if errors.Is(err, client.ErrWorkflowTimedOut) || errors.Is(err, context.DeadlineExceeded) {
			writeJSON(w, http.StatusRequestTimeout, workflowResponse{
				Status:     "timeout",
				InstanceID: id,
				Message:    "workflow execution timed out",
			})
			return
		}

		writeJSON(w, http.StatusInternalServerError, workflowResponse{
			Status:     "failed",
			InstanceID: id,
			Error:      err.Error(),
		})
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		s.logger.Error("Encoding workflow result", "instance_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, workflowResponse{
			Status:     "failed",
			InstanceID: id,
			Error:      fmt.Sprintf("encoding result: %v", err),
		})
		return
	}

	writeJSON(w, http.StatusOK, workflowResponse{
		Status:     "completed",
		InstanceID: id,
		Result:     data,
	})
}

type statusResponse struct {
	InstanceID   string          `json:"instance_id"`
	WorkflowName string          `json:"workflow_name,omitempty"`
	Status       string          `json:"status"`
	Output       json.RawMessage `json:"output,omitempty"`
	Error        string          `json:"error,omitempty"`
	CreatedAt    *time.Time      `json:"created_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// status waits for an instance to finish and returns its state. The timeout is given in whole seconds
// and defaults to client.DefaultWaitTimeout, a timeout of 0 returns the current state without waiting.
func (s *server) status(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	wait := true
	var timeout time.Duration
	if t := r.URL.Query().Get("timeout"); t != "" {
		seconds, err := strconv.Atoi(t)
		if err != nil || seconds < 0 {
			http.Error(w, "invalid timeout", http.StatusBadRequest)
			return
		}

		timeout = time.Duration(seconds) * time.Second
		wait = seconds > 0
	}

	var (
		state *client.WorkflowState
		err   error
	)
	if wait {
		state, err = s.client.WaitForCompletion(r.Context(), id, timeout)
	} else {
		state, err = s.client.GetStatus(r.Context(), id)
	}

	if err != nil {
		if errors.Is(err, client.ErrInstanceNotFound) {
			http.Error(w, "workflow instance not found", http.StatusNotFound)
			return
		}

		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := statusResponse{
		InstanceID:   state.InstanceID,
		WorkflowName: state.WorkflowName,
		Status:       state.Status.String(),
		Output:       json.RawMessage(state.Output),
		CompletedAt:  state.CompletedAt,
	}

	if !state.CreatedAt.IsZero() {
		resp.CreatedAt = &state.CreatedAt
	}

	if state.Error != nil {
		resp.Error = state.Error.Error()
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
