package api

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"
)

// ServerConfig holds server configuration.
type ServerConfig struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
	MaxConcurrent  int
	CORSOrigin     string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(addr string) ServerConfig {
	return ServerConfig{
		Addr:           addr,
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   10 * time.Second,
		RequestTimeout: 5 * time.Second,
		MaxConcurrent:  runtime.NumCPU() * 2,
		CORSOrigin:     "",
	}
}

// NewServer creates an HTTP server with all routes and middleware. metrics
// may be nil, in which case nothing is recorded and /metrics is not served.
func NewServer(cfg ServerConfig, handlers *Handlers, metrics *Metrics) *http.Server {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = runtime.NumCPU() * 2
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	mux := http.NewServeMux()

	// Concurrency limiter.
	sem := make(chan struct{}, cfg.MaxConcurrent)

	routes := []struct {
		pattern string
		handler http.HandlerFunc
	}{
		{"POST /api/v1/route", handlers.HandleRoute},
		{"POST /api/v1/trajectory", handlers.HandleTrajectory},
		{"POST /api/v1/flows", handlers.HandleFlows},
		{"GET /api/v1/network", handlers.HandleNetwork},
		{"GET /api/v1/network.geojson", handlers.HandleGeoJSON},
		{"GET /api/v1/network.png", handlers.HandlePlot},
		{"GET /api/v1/paths/{from}/{to}", handlers.HandlePath},
		{"GET /api/v1/snap", handlers.HandleSnap},
		{"GET /api/v1/health", handlers.HandleHealth},
		{"GET /api/v1/stats", handlers.HandleStats},
	}
	for _, rt := range routes {
		mux.HandleFunc(rt.pattern, withMiddleware(rt.pattern, rt.handler, sem, cfg, metrics))
	}
	if metrics != nil {
		metrics.SetNetwork(handlers.Stats().Stats)
		mux.Handle("GET /metrics", metrics.Handler())
	}

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

// ListenAndServe starts the server and blocks until shutdown signal.
func ListenAndServe(srv *http.Server) error {
	// Graceful shutdown on SIGTERM/SIGINT.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Printf("Received %s, shutting down...", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}

// statusRecorder remembers the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// withMiddleware wraps a handler with logging, metrics, recovery, security
// headers, and concurrency limiting.
func withMiddleware(route string, handler http.HandlerFunc, sem chan struct{}, cfg ServerConfig, m *Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		defer func() {
			if rec.status == 0 {
				rec.status = http.StatusOK
			}
			m.observe(route, rec.status, time.Since(start).Seconds())
		}()

		// Security headers.
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Cache-Control", "no-store")

		// CORS.
		if cfg.CORSOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", cfg.CORSOrigin)
		}

		// Concurrency limiter.
		select {
		case sem <- struct{}{}:
			defer func() { <-sem }()
		default:
			rec.Header().Set("Retry-After", "1")
			http.Error(rec, `{"error":"service_unavailable"}`, http.StatusServiceUnavailable)
			return
		}

		// Recovery.
		defer func() {
			if v := recover(); v != nil {
				log.Printf("panic: %v", v)
				http.Error(rec, `{"error":"internal_error"}`, http.StatusInternalServerError)
			}
		}()

		// Request timeout.
		ctx, cancel := context.WithTimeout(r.Context(), cfg.RequestTimeout)
		defer cancel()

		handler(rec, r.WithContext(ctx))
		log.Printf("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Microsecond))
	}
}
