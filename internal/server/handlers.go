// Package server exposes the HTTP handlers of the WebSocket gateway: the
// upgrade endpoint and a health check.
package server

import (
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
)

// WebSocketHandler upgrades a GET request and runs the connection through the
// same admission path as a TCP client: per-host cap, NICK handshake,
// registry, worker. Each text frame is one chunk. The handler returns when
// the session ends.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  s.cfg.ReadBufferSize,
		WriteBufferSize: s.cfg.ReadBufferSize,
		CheckOrigin:     s.origins.check,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("WebSocket upgrade failed")
		return
	}

	s.admit(newWSConn(conn, s.cfg.ReadBufferSize))
}

// HealthHandler provides a simple health check endpoint that returns server
// status and the number of clients currently online.
func (s *Server) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "GoChat server is running! %d online\n", s.registry.Len())
}
