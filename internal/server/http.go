// Package server is the thin delivery layer over the core contracts:
// point-in-time JSON reads, the operator reset, and the websocket push
// channel.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"market_pulse/internal/decision"
	"market_pulse/internal/engine"
	"market_pulse/internal/hub"
	"market_pulse/internal/infra"
	"market_pulse/internal/ledger"
	"market_pulse/internal/stats"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultOrderLimit    = 200
	defaultDecisionLimit = 100
)

// Server exposes the read API and the live feed.
type Server struct {
	cfg       *infra.Config
	processor *engine.Processor
	stats     *stats.Engine
	ledger    *ledger.Ledger
	producer  *decision.Producer
	hub       *hub.Hub
}

// New wires the delivery layer over the core components.
func New(cfg *infra.Config, processor *engine.Processor, statsEngine *stats.Engine, l *ledger.Ledger, producer *decision.Producer, h *hub.Hub) *Server {
	return &Server{
		cfg:       cfg,
		processor: processor,
		stats:     statsEngine,
		ledger:    l,
		producer:  producer,
		hub:       h,
	}
}

// Router builds the HTTP route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/monitor/prices/latest", s.handleLatestPrices).Methods(http.MethodGet)
	v1.HandleFunc("/monitor/trending", s.handleTrending).Methods(http.MethodGet)
	v1.HandleFunc("/trading/orders", s.handleOrders).Methods(http.MethodGet)
	v1.HandleFunc("/trading/positions", s.handlePositions).Methods(http.MethodGet)
	v1.HandleFunc("/trading/reset", s.handleReset).Methods(http.MethodPost)
	v1.HandleFunc("/ai/logs", s.handleDecisions).Methods(http.MethodGet)

	r.HandleFunc("/ws/prices", s.handleWS)
	return r
}

// ListenAndServe runs the HTTP server until it fails or is shut down.
func (s *Server) ListenAndServe() error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // websocket pushes are long-lived
	}
	slog.Info("HTTP server listening", slog.String("addr", s.cfg.Server.Addr))
	return srv.ListenAndServe()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok", "version": s.cfg.App.Version})
}

func (s *Server) handleLatestPrices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.processor.LatestAll())
}

func (s *Server) handleTrending(w http.ResponseWriter, _ *http.Request) {
	snapshot := s.stats.Rank(s.cfg.Monitor.TopN, s.cfg.Monitor.LossPct, s.cfg.Monitor.RecoveryPct)
	writeJSON(w, snapshot)
}

func (s *Server) handleOrders(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.ledger.Orders(defaultOrderLimit))
}

func (s *Server) handlePositions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.ledger.Positions())
}

// handleReset discards the session windows only. Positions, orders, and
// the latest-price table survive a reset.
func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	s.stats.Reset()
	slog.Info("session statistics reset")
	writeJSON(w, map[string]bool{"ok": true})
}

func (s *Server) handleDecisions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.producer.Recent(defaultDecisionLimit))
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", slog.Any("error", err))
	}
}
