// Package http exposes the wallet as a JSON API. Every data route is scoped
// to the caller identified by the X-User-ID header.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"carteira/internal/cache"
	"carteira/internal/log"
	"carteira/internal/services"
)

const (
	ownerHeader      = "X-User-ID"
	writeRateLimit   = 60 // per client IP per minute
	dashboardEntries = 200
)

type Server struct {
	http.Server
	movements   *services.MovementService
	plans       *services.PlanService
	recentLimit int
	rateLimiter *rateLimiter
	logger      *log.Logger

	// Dashboard responses are cached per owner and invalidated on writes.
	dashboardCache *cache.TTLCache[services.Dashboard]

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

func NewServer(addr string, movements *services.MovementService, plans *services.PlanService, recentLimit int, cacheTTL time.Duration, logger *log.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		movements:        movements,
		plans:            plans,
		recentLimit:      recentLimit,
		rateLimiter:      newRateLimiter(writeRateLimit),
		logger:           logger.WithComponent(log.ComponentHTTP),
		dashboardCache:   cache.New[services.Dashboard](dashboardEntries, cacheTTL),
		stopCacheCleanup: make(chan struct{}),
	}

	go s.startCacheCleanup()

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("POST /api/movements", s.withMiddleware(s.handleCreateMovement))
	mux.HandleFunc("POST /api/movements/import", s.withMiddleware(s.handleImportMovements))
	mux.HandleFunc("GET /api/movements/recent", s.withMiddleware(s.handleRecentMovements))
	mux.HandleFunc("GET /api/dashboard", s.withMiddleware(s.handleDashboard))

	mux.HandleFunc("POST /api/plans", s.withMiddleware(s.handleCreatePlan))
	mux.HandleFunc("GET /api/plans", s.withMiddleware(s.handleListPlans))
	mux.HandleFunc("GET /api/plans/{id}/installments", s.withMiddleware(s.handleListInstallments))
	mux.HandleFunc("POST /api/installments/{id}/pay", s.withMiddleware(s.handlePayInstallment))

	return s
}

// withMiddleware adds request IDs, security headers, rate limiting on writes
// and request logging.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		s.logger.InfoContext(ctx, "request started",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldClientIP, clientIP)

		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP) {
			s.logger.WarnContext(ctx, "rate limit exceeded",
				log.FieldRequestID, requestID,
				log.FieldClientIP, clientIP)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		s.logger.InfoContext(ctx, "request completed",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, rw.statusCode,
			log.FieldDuration, time.Since(start).Milliseconds())
	}
}

type requestIDKey struct{}

func generateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(b)
}

// responseWriter captures the status code for request logging.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if cleaned := s.dashboardCache.CleanExpired(); cleaned > 0 {
				s.logger.Debug("cache cleanup completed", "entries_removed", cleaned)
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// invalidateOwner drops the owner's cached views after any write.
func (s *Server) invalidateOwner(ownerID string) {
	s.dashboardCache.DeletePrefix("dashboard:" + ownerID)
}

// Shutdown stops the cleanup goroutines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		close(s.stopCacheCleanup)
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}
