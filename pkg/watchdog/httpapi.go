package watchdog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPServer serves the read-only status API and Prometheus metrics.
// It is optional and only started when an address is configured.
type HTTPServer struct {
	addr    string
	monitor *Monitor
	metrics *Metrics
	logger  *slog.Logger
}

// NewHTTPServer creates the HTTP surface for a monitor.
func NewHTTPServer(addr string, monitor *Monitor, metrics *Metrics, logger *slog.Logger) *HTTPServer {
	return &HTTPServer{
		addr:    addr,
		monitor: monitor,
		metrics: metrics,
		logger:  logger,
	}
}

// Routes builds the router. Split out so tests can drive the handlers
// without binding a port.
func (h *HTTPServer) Routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.handleHealthz).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/status", h.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/events", h.handleEvents).Methods(http.MethodGet)
	api.HandleFunc("/logs", h.handleLogs).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.HandlerFor(h.metrics.Registry(), promhttp.HandlerOpts{}))
	return r
}

// Run serves until ctx is cancelled.
func (h *HTTPServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         h.addr,
		Handler:      h.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	h.logger.Info("http api listening", "addr", h.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (h *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	st := h.monitor.Status()
	writeJSON(w, map[string]string{
		"status": "ok",
		"child":  string(st.State),
	})
}

func (h *HTTPServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.monitor.Status())
}

func (h *HTTPServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.monitor.Events(queryLimit(r)))
}

func (h *HTTPServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.monitor.Lines(queryLimit(r)))
}

func queryLimit(r *http.Request) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
