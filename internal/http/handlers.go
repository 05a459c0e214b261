package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/visit-trip-linker/internal/dispatch"
	"github.com/example/visit-trip-linker/internal/ingest"
	"github.com/example/visit-trip-linker/internal/models"
	"github.com/example/visit-trip-linker/internal/service"
	"github.com/example/visit-trip-linker/internal/storage"
)

const maxBatchBytes = 32 << 20

type Server struct {
	Linker *service.Linker
	Store  storage.ResultStore
	Hub    *dispatch.WSHub
	// Ready reports backend health for /ready; nil means always ready.
	Ready func(context.Context) error

	logger *slog.Logger
	mux    *mux.Router
}

func NewServer(linker *service.Linker, store storage.ResultStore, hub *dispatch.WSHub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{Linker: linker, Store: store, Hub: hub, logger: logger, mux: mux.NewRouter()}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/runs", s.handleCreateRun).Methods(http.MethodPost).Name("create_run")
	s.mux.HandleFunc("/api/v1/runs/{run_id}/records", s.handleRunRecords).Methods(http.MethodGet).Name("run_records")
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods(http.MethodGet).Name("healthz")
	s.mux.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet).Name("ready")
	s.mux.Handle("/metrics", promhttp.Handler()).Name("metrics")
	s.mux.HandleFunc("/ws/{subscriber_id}", s.handleWS).Name("ws")
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

type createRunResponse struct {
	RunID    string               `json:"run_id"`
	Summary  models.RunSummary    `json:"summary"`
	Rejected ingest.Rejected      `json:"rejected"`
	Records  []models.MatchRecord `json:"records"`
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var b models.Batch
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBatchBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&b); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	res, err := s.Linker.Link(r.Context(), "api", b)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.logger.Error("run failed", "error", err, "request_id", requestIDFromContext(r.Context()))
		http.Error(w, "run failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, createRunResponse{
		RunID:    res.Run.ID,
		Summary:  res.Summary,
		Rejected: res.Rejected,
		Records:  res.Records,
	})
}

func (s *Server) handleRunRecords(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["run_id"]
	records, err := s.Store.Records(r.Context(), runID)
	if errors.Is(err, storage.ErrRunNotFound) {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("load records failed", "run_id", runID, "error", err)
		http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run_id": runID, "records": records})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.Ready != nil {
		if err := s.Ready(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

var upgrader = websocket.Upgrader{}

// handleWS registers the connection with the hub and reads until the client
// goes away so closed subscribers are dropped promptly.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["subscriber_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.Hub.Add(id, conn)
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				s.Hub.RemoveConn(id, conn)
				return
			}
		}
	}()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
