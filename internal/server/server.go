package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hairguard/hairguard/internal/auth"
	"github.com/hairguard/hairguard/internal/models"
	"github.com/hairguard/hairguard/internal/service"
)

// API routes.
const (
	RouteHealth       = "/api/health"
	RouteAnalyze      = "/api/v1/photos/analyze"
	RouteReport       = "/api/v1/reports/generate"
	RouteRecommend    = "/api/v1/food-sniper/recommend"
	RouteMentalShield = "/api/v1/mental-shield/chat"
	RouteMentalWS     = "/api/v1/mental-shield/ws"

	maxBodyBytes    = 1 << 20
	shutdownTimeout = 10 * time.Second
)

// Options configures a Server.
type Options struct {
	Service        *service.Service
	Verifier       auth.Verifier
	AllowedOrigins []string
	DebugAuth      bool
	Logger         *zap.Logger
}

// Server is the agent API.
type Server struct {
	svc      *service.Service
	verifier auth.Verifier
	cors     *cors
	debug    bool
	logger   *zap.Logger
	upgrader websocket.Upgrader
	clients  sync.Map // client id -> *websocket.Conn
	handler  http.Handler
}

// New builds the server and its routes.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		svc:      opts.Service,
		verifier: opts.Verifier,
		cors:     newCORS(opts.AllowedOrigins),
		debug:    opts.DebugAuth,
		logger:   logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.cors.allowed(origin)
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+RouteHealth, s.handleAPIHealth)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("POST "+RouteAnalyze, handle(s, s.svc.Analyzer.Analyze))
	mux.Handle("POST "+RouteReport, handle(s, s.svc.Reports.Generate))
	mux.Handle("POST "+RouteRecommend, handle(s, s.svc.Food.Recommend))
	mux.Handle("POST "+RouteMentalShield, handle(s, s.svc.Shield.Chat))
	mux.HandleFunc("GET "+RouteMentalWS, s.handleWebSocket)
	s.handler = s.cors.wrap(mux)
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves on addr until ctx is cancelled or SIGINT/SIGTERM arrives, then
// shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// hijacked websocket connections are not tracked by http.Server
	s.clients.Range(func(_, v any) bool {
		_ = v.(*websocket.Conn).Close()
		return true
	})
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	<-errCh
	return nil
}

// handle adapts a service operation to an authenticated JSON endpoint.
func handle[Req, Resp any](s *Server, op func(ctx context.Context, uid string, req Req) (*Resp, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, err := s.authenticate(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			s.writeError(w, err)
			return
		}

		var req Req
		body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			s.writeError(w, &service.Error{Status: http.StatusUnprocessableEntity, Detail: "Invalid request body", Err: err})
			return
		}

		resp, err := op(r.Context(), uid, req)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	})
}

// authenticate resolves the caller's uid from an Authorization header.
func (s *Server) authenticate(ctx context.Context, header string) (string, error) {
	token, ok := auth.BearerToken(header)
	if !ok {
		return "", &service.Error{Status: http.StatusUnauthorized, Detail: "Missing bearer token"}
	}
	return s.verify(ctx, token)
}

func (s *Server) verify(ctx context.Context, token string) (string, error) {
	uid, err := s.verifier.Verify(ctx, token)
	if err != nil {
		s.logger.Warn("failed to verify ID token", zap.Error(err))
		detail := "Invalid token"
		if s.debug {
			detail = fmt.Sprintf("Invalid token: %v", err)
		}
		return "", &service.Error{Status: http.StatusUnauthorized, Detail: detail, Err: err}
	}
	if uid == "" {
		return "", &service.Error{Status: http.StatusUnauthorized, Detail: "Invalid token payload"}
	}
	return uid, nil
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, detail := service.StatusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, models.ErrorResponse{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleAPIHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
