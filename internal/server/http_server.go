// Package server constructs and starts the optional HTTP gateway with helpers
// that apply sensible production defaults.
package server

import (
	"net"
	"net/http"
	"time"
)

// CreateServer creates and configures an HTTP server with the specified address and handler.
// Read and write timeouts only cover the HTTP exchange; gorilla/websocket clears
// them once a connection is upgraded.
func CreateServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// ServeGateway serves the WebSocket gateway on ln until Close is called.
func (s *Server) ServeGateway(ln net.Listener) error {
	httpServer := CreateServer(ln.Addr().String(), s.SetupRoutes())

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ln.Close()
		return http.ErrServerClosed
	}
	s.httpServer = httpServer
	s.mu.Unlock()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("WebSocket gateway listening")
	return httpServer.Serve(ln)
}
