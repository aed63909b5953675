// Package supervisor wires the Probe Loader, Ring Consumer, Detector, and
// Reactor together and exposes the admin HTTP surface spec §4.E describes:
// health, status, the blocked-set listing, and a Prometheus /metrics
// endpoint, plus a periodic heartbeat log. Grounded on
// internal/api/server.go's gorilla/mux router and
// cmd/probe/main.go's top-level wiring and WorkerGroup lifecycle.
package supervisor

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maheshbhatiya73/secrds/internal/detector"
	"github.com/maheshbhatiya73/secrds/internal/live"
	"github.com/maheshbhatiya73/secrds/internal/metrics"
	"github.com/maheshbhatiya73/secrds/internal/probeloader"
	"github.com/maheshbhatiya73/secrds/internal/ringconsumer"
)

// heartbeatInterval is the interval at which the blocked-set cardinality is
// logged (spec §4.E: "a heartbeat log every 60 seconds").
const heartbeatInterval = 60 * time.Second

// Supervisor owns process lifetime: it loads the probes, starts the ring
// consumer, serves the admin API, and shuts everything down on
// cancellation.
type Supervisor struct {
	loader   probeloader.Loader
	detector *detector.Detector
	live     *live.Hub
	metrics  *metrics.Metrics

	adminAddr   string
	liveAddr    string
	metricsPath string
}

// Config bundles the Supervisor's collaborators and listen addresses.
type Config struct {
	Loader      probeloader.Loader
	Detector    *detector.Detector
	Live        *live.Hub
	Metrics     *metrics.Metrics
	AdminAddr   string
	LiveAddr    string
	MetricsPath string
}

// New builds a Supervisor.
func New(cfg Config) *Supervisor {
	return &Supervisor{
		loader:      cfg.Loader,
		detector:    cfg.Detector,
		live:        cfg.Live,
		metrics:     cfg.Metrics,
		adminAddr:   cfg.AdminAddr,
		liveAddr:    cfg.LiveAddr,
		metricsPath: cfg.MetricsPath,
	}
}

// Run loads the probes, starts the Ring Consumer against the given sink,
// serves the admin and live HTTP surfaces, and blocks until ctx is
// cancelled. On cancellation the probe attachment and its links are closed
// immediately — spec §4.E describes an abrupt shutdown, not a drain.
func (s *Supervisor) Run(ctx context.Context, sink ringconsumer.Sink) error {
	rings, closer, err := s.loader.Load()
	if err != nil {
		return err
	}
	defer closer.Close()

	consumer := ringconsumer.New(ringconsumer.NewBPFOpener(rings), sink, s.metrics)

	adminSrv := s.newAdminServer()
	liveSrv := s.newLiveServer()

	go func() {
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("admin server exited", "error", err)
		}
	}()
	go func() {
		if err := liveSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("live feed server exited", "error", err)
		}
	}()

	go s.heartbeat(ctx)
	go consumer.Run(ctx)

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = adminSrv.Shutdown(shutdownCtx)
	_ = liveSrv.Shutdown(shutdownCtx)

	return nil
}

func (s *Supervisor) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			slog.Info("heartbeat", "blocked_sources", s.detector.BlockedCount())
		}
	}
}

func (s *Supervisor) newAdminServer() *http.Server {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/blocked", s.handleBlocked).Methods(http.MethodGet)
	r.Handle(s.metricsPath, promhttp.Handler()).Methods(http.MethodGet)
	return &http.Server{Addr: s.adminAddr, Handler: r}
}

func (s *Supervisor) newLiveServer() *http.Server {
	r := mux.NewRouter()
	r.HandleFunc("/feed", s.live.ServeHTTP)
	return &http.Server{Addr: s.liveAddr, Handler: r}
}

func (s *Supervisor) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Supervisor) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"blocked_sources": s.detector.BlockedCount(),
	})
}

func (s *Supervisor) handleBlocked(w http.ResponseWriter, r *http.Request) {
	addrs := s.detector.BlockedAddrs()
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.String())
	}
	writeJSON(w, map[string]any{"blocked": out})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
