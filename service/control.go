package service

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/ethereum-optimism/infra/op-matrix/metrics"
	"github.com/ethereum-optimism/infra/op-matrix/runner"
	"github.com/ethereum-optimism/infra/op-matrix/types"
)

// Controller is the part of the orchestrator the control server drives.
type Controller interface {
	Session() runner.Session
	Stop(ctx context.Context) error
	Restart(ctx context.Context) error
}

var _ Controller = (*runner.Orchestrator)(nil)

// StatusResponse describes the current or last session.
type StatusResponse struct {
	RunID                string       `json:"run_id,omitempty"`
	State                string       `json:"state"`
	Configurations       int          `json:"configurations"`
	Completed            int          `json:"completed"`
	Current              int          `json:"current"`
	CurrentConfiguration string       `json:"current_configuration,omitempty"`
	Counts               types.Counts `json:"counts"`
	Duration             string       `json:"duration"`
	Error                string       `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewStatusResponse summarizes a session snapshot.
func NewStatusResponse(sess runner.Session) StatusResponse {
	resp := StatusResponse{
		RunID:          sess.RunID,
		State:          sess.State.String(),
		Configurations: len(sess.Configurations),
		Completed:      len(sess.Results),
		Current:        sess.Current,
		Duration:       sess.Duration().Round(time.Millisecond).String(),
	}
	if sess.Current >= 0 && sess.Current < len(sess.Configurations) {
		resp.CurrentConfiguration = sess.Configurations[sess.Current].Name()
	}
	for _, r := range sess.Results {
		c := r.Tree.Counts()
		resp.Counts.Total += c.Total
		resp.Counts.Passed += c.Passed
		resp.Counts.Failed += c.Failed
		resp.Counts.Skipped += c.Skipped
		resp.Counts.Errored += c.Errored
		resp.Counts.Absent += c.Absent
	}
	if sess.Err != nil {
		resp.Error = sess.Err.Error()
	}
	return resp
}

// ControlServer exposes the orchestrator over HTTP. Stop and restart run
// against the base context given at construction so they outlive the request
// that triggered them.
type ControlServer struct {
	base   context.Context
	ctl    Controller
	log    log.Logger
	server *http.Server
}

func NewControlServer(base context.Context, ctl Controller, logger log.Logger) *ControlServer {
	if logger == nil {
		logger = log.New()
		logger.Error("No logger provided, using default")
	}
	s := &ControlServer{base: base, ctl: ctl, log: logger}
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler, wrapped for CORS.
func (s *ControlServer) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/stop", s.handleStop).Methods(http.MethodPost)
	r.HandleFunc("/restart", s.handleRestart).Methods(http.MethodPost)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	})
	return c.Handler(r)
}

// Serve serves on an existing listener until Shutdown is called.
func (s *ControlServer) Serve(ln net.Listener) error {
	s.log.Info("Control server listening", "addr", ln.Addr().String())
	return s.server.Serve(ln)
}

func (s *ControlServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *ControlServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK")) //nolint:errcheck
}

func (s *ControlServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, NewStatusResponse(s.ctl.Session()))
}

func (s *ControlServer) handleStop(w http.ResponseWriter, r *http.Request) {
	s.log.Info("Received stop request", "remote", r.RemoteAddr)
	if err := s.ctl.Stop(s.base); err != nil {
		s.log.Error("Failed to stop session", "err", err)
		metrics.RecordErrorDetails("control_stop", err)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, NewStatusResponse(s.ctl.Session()))
}

func (s *ControlServer) handleRestart(w http.ResponseWriter, r *http.Request) {
	s.log.Info("Received restart request", "remote", r.RemoteAddr)
	if err := s.ctl.Restart(s.base); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, runner.ErrNotStarted) {
			status = http.StatusConflict
		} else {
			metrics.RecordErrorDetails("control_restart", err)
		}
		s.log.Error("Failed to restart session", "err", err)
		s.writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, NewStatusResponse(s.ctl.Session()))
}

func (s *ControlServer) writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		s.log.Error("Failed to marshal response", "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		s.log.Error("Failed to write response", "err", err)
	}
}
