// Package http exposes the ledger as a JSON API for the chat frontend.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"bolso/internal/assistant"
	"bolso/internal/ledger"
	"bolso/internal/services"
)

type Server struct {
	http.Server

	store      ledger.Store
	dispatcher *services.Dispatcher
	oracle     assistant.Oracle

	// The dispatcher and session are single-writer state; every handler
	// that touches them serializes through this mutex.
	mu sync.Mutex

	rateLimiter  *rateLimiter
	shutdownOnce sync.Once
}

// NewServer configures routes and returns a ready-to-run server. The oracle
// may be nil, in which case the chat endpoint reports itself unavailable.
func NewServer(addr string, store ledger.Store, dispatcher *services.Dispatcher, oracle assistant.Oracle) *Server {
	s := &Server{
		store:       store,
		dispatcher:  dispatcher,
		oracle:      oracle,
		rateLimiter: newRateLimiter(),
	}

	r := chi.NewRouter()
	r.Use(s.withRequestLogging)

	r.Get("/healthz", handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Get("/state", s.handleState)
		r.Post("/expenses", s.handleCreateExpenses)
		r.Delete("/expenses/{id}", s.handleDeleteExpense)
		r.Post("/months/step", s.handleStepMonth)
		r.Route("/months/{key}", func(r chi.Router) {
			r.Get("/budget", s.handleGetBudget)
			r.Put("/budget", s.handlePutBudget)
			r.Get("/expenses", s.handleListExpenses)
		})
	})

	s.Server = http.Server{
		Addr:    addr,
		Handler: r,
	}
	return s
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withRequestLogging adds request IDs, rate limiting on writes and
// start/finish logging.
func (s *Server) withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded",
				"client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(ctx, w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

type requestIDKey struct{}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
