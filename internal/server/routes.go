// Package server wires the WebSocket gateway handlers into a ServeMux via
// routing helpers.
package server

import "net/http"

// SetupRoutes configures and returns an HTTP ServeMux with the gateway routes:
// a health check on "/" and the chat WebSocket endpoint on "/ws".
func (s *Server) SetupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.HealthHandler)
	mux.HandleFunc("/ws", s.WebSocketHandler)
	return mux
}
