// Package web provides the HTTP server and handlers of the migration backend.
package web

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/JonMunkholm/lending/internal/config"
	"github.com/JonMunkholm/lending/internal/core"
	"github.com/JonMunkholm/lending/internal/pipeline"
	"github.com/JonMunkholm/lending/internal/sheet"
	appmw "github.com/JonMunkholm/lending/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Uploader loads CSV files into tables derived from their headers.
type Uploader interface {
	Upload(ctx context.Context, files []core.UploadedFile) (*core.LoadResult, error)
	SuccessMessage(result *core.LoadResult) string
}

// WorkbookConverter turns a spreadsheet into a zip of CSV documents.
type WorkbookConverter interface {
	Convert(ctx context.Context, r io.Reader, w io.Writer) (*sheet.Result, error)
}

// Reporter writes the status report as CSV.
type Reporter interface {
	Generate(ctx context.Context, w io.Writer) (int, error)
}

// DataConverter runs the data conversion procedures.
type DataConverter interface {
	Run(ctx context.Context) (*pipeline.ConversionResult, error)
	FailureMessage(err error) string
}

// JarRunner runs the external jar that writes the CIC submission file.
type JarRunner interface {
	Run(ctx context.Context) (*pipeline.JarResult, error)
}

// SegmentOperator runs per-segment and backup maintenance.
type SegmentOperator interface {
	Segments() []core.Segment
	MigrateSegment(ctx context.Context, key string) (*pipeline.SegmentCount, error)
	TruncateSegment(ctx context.Context, key string) error
	DuplicateTables(ctx context.Context, date string) error
	DropBackup(ctx context.Context) error
}

// Pinger checks database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services are the operations exposed over HTTP.
type Services struct {
	Upload     Uploader
	Sheets     WorkbookConverter
	Report     Reporter
	Conversion DataConverter
	Jar        JarRunner
	Segments   SegmentOperator
	DB         Pinger
}

// Server is the HTTP server of the migration backend.
type Server struct {
	cfg     *config.Config
	consts  *config.Constants
	svc     Services
	limiter *core.JobLimiter
	router  *chi.Mux
	server  *http.Server
	rate    *rateLimiter
}

// NewServer creates a new Server instance.
func NewServer(cfg *config.Config, consts *config.Constants, svc Services, limiter *core.JobLimiter) *Server {
	s := &Server{
		cfg:     cfg,
		consts:  consts,
		svc:     svc,
		limiter: limiter,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(appmw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(appmw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5, "text/plain", "text/csv", "application/json"))
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled {
		s.rate = newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute)
		s.router.Use(s.rate.middleware)
	}
}

// setupRoutes configures all HTTP routes. Job routes hold a limiter slot and
// are not bound by the request timeout.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Group(func(r chi.Router) {
		r.Use(appmw.APIKeyAuth(&s.cfg.Security))

		r.Group(func(r chi.Router) {
			if d := s.cfg.Server.RequestTimeout; d > 0 {
				r.Use(middleware.Timeout(d))
			}

			r.Get("/generateReport", s.handleGenerateReport)
			r.Post("/api/convert-excel", s.handleConvertExcel)
			r.Get("/api/segments", s.handleListSegments)
			r.Get("/api/jobs/status", s.handleJobStatus)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.limitJobs)

			r.Post("/api/upload", s.handleUpload)
			r.Get("/api/run-jar", s.handleRunJar)
			r.Post("/api/data-conversion", s.handleDataConversion)
			r.Post("/api/segments/{segment}/migrate", s.handleMigrateSegment)
			r.Post("/api/segments/{segment}/truncate", s.handleTruncateSegment)
			r.Post("/api/duplicate-tables", s.handleDuplicateTables)
			r.Post("/api/drop-backup", s.handleDropBackup)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.rate != nil {
		s.rate.stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			// No pages are served; nothing may be loaded.
			if enableCSP {
				w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// rateLimiter implements a fixed-window limiter per client IP.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int           // requests per window
	window   time.Duration // time window
	done     chan struct{}
	once     sync.Once
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

// newRateLimiter creates a rate limiter with the specified rate per window.
func newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
		done:     make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// cleanup removes stale visitor entries every window until stop is called.
func (rl *rateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.mu.Lock()
			for ip, v := range rl.visitors {
				if time.Since(v.lastReset) > rl.window*2 {
					delete(rl.visitors, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.once.Do(func() { close(rl.done) })
}

// allow checks if the request should be allowed and consumes a token if so.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[ip]
	if !exists || time.Since(v.lastReset) > rl.window {
		rl.visitors[ip] = &visitor{tokens: rl.rate - 1, lastReset: time.Now()}
		return true
	}

	if v.tokens <= 0 {
		return false
	}
	v.tokens--
	return true
}

// middleware rate limits by RemoteAddr, already resolved by TrustedRealIP.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientIP(r)) {
			w.Header().Set("Retry-After", "60")
			respondText(w, http.StatusTooManyRequests, core.FormatUserError(errRateLimited))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
