// Package api exposes the authenticated HTTP command surface of the bridge:
// one open health endpoint and nine bearer-protected command endpoints that
// translate REST requests into session client calls.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/anthropics/session-webhook-bridge/internal/conf"
	"github.com/anthropics/session-webhook-bridge/internal/domain"
)

// Request bodies carry base64-encoded attachments, so allow well past the
// usual defaults.
const maxBodyBytes = 64 << 20

// Messenger is the slice of the session client the command API drives.
type Messenger interface {
	SessionID() string
	SendMessage(ctx context.Context, to, text string) (*domain.SendResult, error)
	SendAttachment(ctx context.Context, to, text string, att domain.Attachment) (*domain.SendResult, error)
	DeleteMessage(ctx context.Context, to string, timestamp int64, hash string) error
	SetDisplayName(ctx context.Context, name string) error
	SetAvatar(ctx context.Context, avatar []byte) error
	NotifyScreenshot(ctx context.Context, to string) error
	NotifyMediaSaved(ctx context.Context, to string, timestamp int64) error
	AddReaction(ctx context.Context, r domain.Reaction) error
	RemoveReaction(ctx context.Context, r domain.Reaction) error
}

// Server provides the HTTP command API. The messenger is injected at
// construction: by the time a Server exists, the client is initialized, so
// handlers never see a nil messenger.
type Server struct {
	messenger Messenger
	token     string
	port      int
	logger    hclog.Logger
	startTime time.Time

	server *http.Server
}

// NewServer creates a new API server
func NewServer(m Messenger, cfg *conf.Config, logger hclog.Logger) *Server {
	return &Server{
		messenger: m,
		token:     cfg.BearerToken,
		port:      cfg.Port,
		logger:    logger,
		startTime: time.Now(),
	}
}

// Handler builds the route table. Split out from Start so tests can drive it
// through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/status", s.public(http.MethodGet, s.handleStatus))

	mux.HandleFunc("/sendMessage", s.command(s.handleSendMessage))
	mux.HandleFunc("/sendAttachment", s.command(s.handleSendAttachment))
	mux.HandleFunc("/deleteMessage", s.command(s.handleDeleteMessage))
	mux.HandleFunc("/setDisplayName", s.command(s.handleSetDisplayName))
	mux.HandleFunc("/setAvatar", s.command(s.handleSetAvatar))
	mux.HandleFunc("/notifyScreenshot", s.command(s.handleNotifyScreenshot))
	mux.HandleFunc("/notifyMediaSaved", s.command(s.handleNotifyMediaSaved))
	mux.HandleFunc("/addReaction", s.command(s.handleAddReaction))
	mux.HandleFunc("/removeReaction", s.command(s.handleRemoveReaction))

	mux.HandleFunc("/", s.handleNotFound)

	return s.recoverPanics(s.logRequests(mux))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.Handler(),
	}

	s.logger.Info("command API listening", "port", s.port)
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// --- Middleware ---

// public wraps an unauthenticated handler. Wrong methods fall through to the
// not-found envelope, matching the route table contract.
func (s *Server) public(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			s.handleNotFound(w, r)
			return
		}
		h(w, r)
	}
}

// command wraps an authenticated POST handler. Method is checked before
// credentials: a request for a route that does not exist gets 404, never 401.
func (s *Server) command(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			s.handleNotFound(w, r)
			return
		}
		if !s.authorize(w, r) {
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		h(w, r)
	}
}

// logRequests tags each request with a correlation id and records its
// outcome.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		level := hclog.Debug
		if rec.status >= 400 {
			level = hclog.Warn
		}
		s.logger.Log(level, "request handled",
			"id", uuid.NewString(),
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start).String(),
		)
	})
}

// recoverPanics is the top-level fallback: an escaping panic becomes the
// standard 500 envelope and the process keeps serving.
func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("handler panic",
					"method", r.Method,
					"path", r.URL.Path,
					"panic", rec,
					"stack", string(debug.Stack()),
				)
				s.writeError(w, http.StatusInternalServerError, "Internal Server Error", "unexpected error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// --- Helpers ---

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, kind, message string) {
	s.writeJSON(w, status, errorResponse{Error: kind, Message: message})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, http.StatusNotFound, "Not Found",
		fmt.Sprintf("Route %s %s not found", r.Method, r.URL.Path))
}
