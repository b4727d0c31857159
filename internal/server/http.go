package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/zeusync/tabletop/internal/core/observability/log"
)

// HTTPServer serves the websocket endpoint and a health check.
type HTTPServer struct {
	ws     *WebSocketServer
	cfg    Config
	logger log.Log

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

func NewHTTPServer(ws *WebSocketServer, cfg Config, logger log.Log) *HTTPServer {
	if logger == nil {
		logger = log.Nop()
	}
	return &HTTPServer{
		ws:     ws,
		cfg:    cfg.withDefaults(),
		logger: logger.With(log.Component("http")),
	}
}

func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.ws.handleWebSocket)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

// Start listens on the configured address and serves in the background.
func (s *HTTPServer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return ErrServerRunning
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.server = &http.Server{Handler: s.Handler()}

	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", log.Error(err))
		}
	}(s.server)
	s.logger.Info("listening", log.String("addr", ln.Addr().String()))
	return nil
}

// Addr is the bound address, useful when listening on port 0.
func (s *HTTPServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop stops accepting requests, disconnects websocket clients and waits for
// in-flight requests until ctx is done.
func (s *HTTPServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.server, s.listener = nil, nil
	s.mu.Unlock()
	if srv == nil {
		return ErrServerNotRunning
	}

	err := srv.Shutdown(ctx)
	s.ws.Close()
	return err
}
