// Package server is the deskchat backend: conversation management, the model
// registry and the streaming chat endpoint, served over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/alexschlessinger/deskchat/llm"
	"github.com/alexschlessinger/deskchat/messages"
	"github.com/alexschlessinger/deskchat/sessions"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultAddr  = "127.0.0.1:9720"
	DefaultModel = "openai/gpt-4o"

	maxBodyBytes   = 1 << 20
	shutdownPeriod = 5 * time.Second
)

// DefaultModels is the registry served when the config names none
var DefaultModels = []messages.Model{
	{ID: "anthropic/claude-sonnet-4-5", Name: "Claude Sonnet 4.5", Provider: "Anthropic"},
	{ID: "anthropic/claude-opus-4-6", Name: "Claude Opus 4.6", Provider: "Anthropic"},
	{ID: "openai/gpt-5", Name: "GPT-5", Provider: "OpenAI"},
	{ID: "openai/gpt-5-mini", Name: "GPT-5 Mini", Provider: "OpenAI"},
	{ID: "gemini/gemini-3-pro", Name: "Gemini 3 Pro", Provider: "Google"},
	{ID: "gemini/gemini-2.5-pro", Name: "Gemini 2.5 Pro", Provider: "Google"},
	{ID: "xai/grok-4", Name: "Grok 4", Provider: "xAI"},
	{ID: "openai/gpt-4o", Name: "GPT-4o", Provider: "OpenAI"},
	{ID: "echo/echo", Name: "Echo (offline)", Provider: "deskchat"},
}

// Config controls how the server talks to model providers
type Config struct {
	DefaultModel  string
	Models        []messages.Model
	Temperature   float32
	MaxTokens     int
	Timeout       time.Duration // per provider request; zero means none
	StripThinking bool
}

func (c Config) withDefaults() Config {
	if c.DefaultModel == "" {
		c.DefaultModel = DefaultModel
	}
	if len(c.Models) == 0 {
		c.Models = DefaultModels
	}
	return c
}

// Server holds the backend state shared by all handlers
type Server struct {
	store    sessions.Store
	provider llm.LLM
	cfg      Config
	logger   *zap.SugaredLogger

	mu        sync.Mutex
	currentID string
	model     string
}

// New creates a server over store that generates replies with provider
func New(store sessions.Store, provider llm.LLM, cfg Config) *Server {
	cfg = cfg.withDefaults()
	return &Server{
		store:    store,
		provider: provider,
		cfg:      cfg,
		logger:   zap.S(),
		model:    cfg.DefaultModel,
	}
}

// Handler returns the HTTP routes of the backend
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/conversations", s.listConversations)
		r.Post("/conversations/new", s.newConversation)
		r.Post("/conversations/switch", s.switchConversation)
		r.Post("/conversations/delete", s.deleteConversation)
		r.Post("/conversations/rename", s.renameConversation)
		r.Get("/current-conv-id", s.currentConversationID)

		r.Get("/models", s.listModels)
		r.Post("/model", s.setModel)
		r.Get("/model/current", s.currentModel)

		r.Get("/system-info", s.systemInfo)
		r.Post("/chat", s.chat)
		r.Post("/upload", s.upload)
	})

	return r
}

// ListenAndServe serves on addr until ctx is done
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down gracefully
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Infow("server_listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownPeriod)
		defer cancel()
		s.logger.Infow("server_shutting_down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// CurrentID returns the conversation persistent chats append to
func (s *Server) CurrentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentID
}

// currentModelLocked returns the current conversation's model, or the default
func (s *Server) currentModelLocked() string {
	if s.currentID != "" {
		if conv, err := s.store.Get(s.currentID); err == nil && conv.Model() != "" {
			return conv.Model()
		}
	}
	return s.model
}

// appendToCurrent adds msg to the current conversation, starting one when
// there is none or it was deleted
func (s *Server) appendToCurrent(msg messages.ChatMessage) (*sessions.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentID != "" {
		conv, err := s.store.Append(s.currentID, msg)
		if !errors.Is(err, sessions.ErrNotFound) {
			return conv, err
		}
	}

	conv, err := s.store.Create(s.model)
	if err != nil {
		return nil, err
	}
	s.currentID = conv.ID
	return s.store.Append(conv.ID, msg)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.S().Debugw("server_write_failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// requestLogger logs one line per request
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.Infow("server_request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
