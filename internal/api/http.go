package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bher20/avoidedcost/internal/api/swagger"
	"github.com/bher20/avoidedcost/internal/auth"
	"github.com/bher20/avoidedcost/internal/engine"
	"github.com/bher20/avoidedcost/internal/metrics"
	"github.com/bher20/avoidedcost/internal/storage"
)

// MaxBodyBytes caps POST /api/v1/results uploads.
const MaxBodyBytes = 32 << 20

type Server struct {
	st      storage.Storage
	authSvc *auth.Service
	opts    engine.Options
}

// NewMux constructs the HTTP mux. A nil authSvc leaves the API open.
func NewMux(st storage.Storage, authSvc *auth.Service, opts engine.Options) *http.ServeMux {
	s := &Server{st: st, authSvc: authSvc, opts: opts}
	mux := http.NewServeMux()

	// Metrics endpoint.
	mux.Handle("/metrics", promhttp.Handler())

	// Health / readiness / liveness.
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("live"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := st.Ping(r.Context()); err != nil {
			slog.Warn("readyz: db ping failed", "error", err)
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	mux.Handle("POST /api/v1/results", s.route("/api/v1/results", auth.ObjResults, auth.ActWrite, s.createResults))
	mux.Handle("GET /api/v1/results", s.route("/api/v1/results", auth.ObjResults, auth.ActRead, s.listResults))
	mux.Handle("GET /api/v1/results/{id}", s.route("/api/v1/results/{id}", auth.ObjResults, auth.ActRead, s.getResult))
	mux.Handle("GET /api/v1/load-shapes", s.route("/api/v1/load-shapes", auth.ObjLoadShapes, auth.ActRead, s.listLoadShapes))
	mux.Handle("GET /api/v1/utilities", s.route("/api/v1/utilities", auth.ObjUtilities, auth.ActRead, s.listUtilities))

	mux.Handle("/docs/", http.StripPrefix("/docs", swagger.Handler()))
	mux.HandleFunc("/{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/docs/", http.StatusFound)
	})

	return mux
}

// route wraps h with request metrics and, when auth is enabled, the token
// middleware and a permission check.
func (s *Server) route(path, obj, act string, h http.HandlerFunc) http.Handler {
	var handler http.Handler = h
	if s.authSvc != nil {
		handler = s.authSvc.Middleware(s.authSvc.RequirePermission(obj, act, handler))
	}
	return instrument(path, handler)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func instrument(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		metrics.RequestsTotal.WithLabelValues(path).Inc()

		next.ServeHTTP(rec, r)

		metrics.RequestDurationSeconds.WithLabelValues(path).Observe(time.Since(start).Seconds())
		if rec.status >= http.StatusBadRequest {
			metrics.RequestErrorsTotal.WithLabelValues(path, strconv.Itoa(rec.status)).Inc()
		}
	})
}

type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("api: encode response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string, details ...string) {
	writeJSON(w, status, errorResponse{Error: msg, Details: details})
}
