package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

type ExecuteRequest struct {
	DatasetName string `json:"dataset_name"`
	DatasetPath string `json:"dataset_path"`
}

// Server exposes the benchmark over HTTP: a health probe and a synchronous
// execute endpoint that runs the whole workload and returns the report. One
// run owns the backend's storage directories for its duration, so concurrent
// execute calls must be serialized by the caller.
type Server struct {
	cfg      Config
	registry *Registry
}

func NewServer(cfg Config, registry *Registry) *Server {
	return &Server{cfg: cfg, registry: registry}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/execute", s.handleExecute)
	return mux
}

func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf(":%v", s.cfg.Port)
	Logger.Infof("starting %v benchmark server on %v", s.cfg.Backend, addr)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	var request ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}
	if request.DatasetPath == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "dataset_path is required"})
		return
	}
	Logger.Infof("executing benchmark for dataset %v at %v", request.DatasetName, request.DatasetPath)

	exec, err := s.registry.Open(s.cfg.Backend, s.cfg)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	dispatcher := NewDispatcher(exec, request.DatasetPath, NewProgressReporter(s.cfg.CallbackURL))
	run, err := dispatcher.ExecuteBenchmark(s.cfg.WorkloadDir)
	if err != nil && !errors.Is(err, ErrLoadFailed) {
		Logger.Errorf("benchmark execution failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		// The aborted run still carries the LOAD_GRAPH result; return it so
		// the caller sees what failed.
		Logger.Errorf("benchmark run aborted: %v", err)
	}
	writeJSON(w, http.StatusOK, run)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		Logger.Warnf("failed to write response: %v", err)
	}
}
