// Package api exposes the chat loop over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rhassine/expense-tracker/internal/agent"
	"github.com/rhassine/expense-tracker/internal/buildinfo"
	"github.com/rhassine/expense-tracker/internal/llm"
	"github.com/rhassine/expense-tracker/internal/ratelimit"
	"github.com/rhassine/expense-tracker/internal/tools"
)

// sessionHeader identifies the caller for rate limiting. Requests
// without it share the anonymous bucket.
const sessionHeader = "X-Session-ID"

// ChatService runs one chat turn. Satisfied by *agent.Loop.
type ChatService interface {
	Run(ctx context.Context, req agent.Request) (*agent.Result, error)
}

// Server is the HTTP front end.
type Server struct {
	logger  *slog.Logger
	chat    ChatService
	limiter *ratelimit.Limiter
	addr    string
	router  chi.Router
}

// chatResponse is the body returned by POST /api/chat.
type chatResponse struct {
	Response       string          `json:"response"`
	CreatedExpense *tools.Proposal `json:"createdExpense,omitempty"`
}

// NewServer creates the HTTP server and mounts its routes.
func NewServer(logger *slog.Logger, chat ChatService, limiter *ratelimit.Limiter, addr string) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		logger:  logger,
		chat:    chat,
		limiter: limiter,
		addr:    addr,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.withLogging)

	r.Post("/api/chat", s.handleChat)
	r.Get("/health", s.handleHealth)
	r.Get("/version", s.handleVersion)

	s.router = r
	return s
}

// Handler returns the root http.Handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(sessionHeader)
	allowed := s.limiter.Allow(sessionID)
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(s.limiter.Remaining(sessionID)))
	if !allowed {
		s.errorResponse(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
		return
	}

	var req agent.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.chat.Run(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, agent.ErrEmptyMessage), errors.Is(err, agent.ErrMessageTooLong):
			s.errorResponse(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, llm.ErrRateLimited):
			s.errorResponse(w, http.StatusTooManyRequests, "completion endpoint throttled, try again later")
		case errors.Is(err, llm.ErrNotConfigured):
			s.logger.Error("completion endpoint not configured", "error", err)
			s.errorResponse(w, http.StatusInternalServerError, "assistant is not configured")
		case errors.Is(err, context.Canceled):
			// Client went away; nothing useful to write.
		default:
			s.logger.Error("chat turn failed", "error", err)
			s.errorResponse(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	s.writeJSON(w, http.StatusOK, chatResponse{
		Response:       result.Response,
		CreatedExpense: result.CreatedExpense,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"uptime": buildinfo.Uptime().String(),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, buildinfo.Info())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// withLogging logs one line per request after it completes.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).Round(time.Millisecond),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
