// Package server constructs the chat server: the TCP accept loop, admission
// of new connections, and cleanup when a worker exits.
package server

import (
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Server owns the listener, the client registry, and the per-host
// connection cap. All per-connection work runs on its own goroutine.
type Server struct {
	cfg         Config
	logger      zerolog.Logger
	registry    *Registry
	conncap     *ConnCap
	broadcaster *Broadcaster
	origins     originPolicy

	mu         sync.Mutex
	listeners  map[net.Listener]struct{}
	httpServer *http.Server
	conns      map[Conn]struct{}
	closed     bool
	wg         sync.WaitGroup
}

// NewServer creates a Server for cfg. Out-of-range settings are replaced by
// their defaults.
func NewServer(cfg Config, logger zerolog.Logger) *Server {
	cfg = sanitizeConfig(cfg)
	registry := NewRegistry()

	return &Server{
		cfg:         cfg,
		logger:      logger,
		registry:    registry,
		conncap:     NewConnCap(cfg.MaxConnsPerAddr),
		broadcaster: NewBroadcaster(registry, cfg.WriteTimeout, logger),
		origins:     newOriginPolicy(cfg.AllowedOrigins, logger),
		listeners:   make(map[net.Listener]struct{}),
		conns:       make(map[Conn]struct{}),
	}
}

// Config returns the sanitized configuration the server runs with.
func (s *Server) Config() Config {
	return s.cfg
}

// Registry returns the server's client registry.
func (s *Server) Registry() *Registry {
	return s.registry
}

// ConnCap returns the server's per-host connection cap.
func (s *Server) ConnCap() *ConnCap {
	return s.conncap
}

// Broadcaster returns the server's broadcaster.
func (s *Server) Broadcaster() *Broadcaster {
	return s.broadcaster
}

// Online returns the sorted nicknames of every admitted client.
func (s *Server) Online() []string {
	return s.registry.Nicknames()
}

// ListenAndServe binds the configured TCP address, starts the WebSocket
// gateway when HTTPAddr is set, and runs the accept loop.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return err
	}

	if s.cfg.HTTPAddr != "" {
		httpLn, err := net.Listen("tcp", s.cfg.HTTPAddr)
		if err != nil {
			_ = ln.Close()
			return err
		}
		go func() {
			if err := s.ServeGateway(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error().Err(err).Msg("WebSocket gateway stopped")
			}
		}()
	}

	return s.Serve(ln)
}

// Serve runs the accept loop on ln until the listener is closed. Accept
// errors are logged and never end the loop; each connection is admitted on
// its own goroutine.
func (s *Server) Serve(ln net.Listener) error {
	if !s.trackListener(ln) {
		_ = ln.Close()
		return ErrServerClosed
	}
	defer s.untrackListener(ln)

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Server is listening")

	var tempDelay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() {
				return ErrServerClosed
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}

			if tempDelay == 0 {
				tempDelay = 5 * time.Millisecond
			} else {
				tempDelay *= 2
			}
			if tempDelay > time.Second {
				tempDelay = time.Second
			}
			s.logger.Warn().Err(err).Dur("retry_in", tempDelay).Msg("Accept error")
			time.Sleep(tempDelay)
			continue
		}
		tempDelay = 0

		go s.admit(newTCPConn(conn, s.cfg.ReadBufferSize))
	}
}

// admit applies the per-host cap, runs the handshake, registers the client,
// announces it, and then runs its worker loop on the calling goroutine.
func (s *Server) admit(conn Conn) {
	if !s.trackConn(conn) {
		_ = conn.Close()
		return
	}
	defer s.untrackConn(conn)

	host := hostOf(conn.RemoteAddr())
	if !s.conncap.Acquire(host) {
		s.logger.Debug().Str("remote", conn.RemoteAddr().String()).Msg("New connection discounted")
		_ = conn.Close()
		return
	}

	client := newClient(conn, host, s.cfg, s.logger)

	nick, err := performHandshake(conn, s.cfg)
	if err != nil {
		s.conncap.Release(host)
		client.setState(StateClosed)
		client.logger.Info().Err(err).Msg("Handshake failed")
		client.closeConnection()
		return
	}

	client.nick = nick
	client.logger = client.logger.With().Str("nick", nick).Logger()
	s.registry.Add(client, nick)
	client.logger.Info().Int("online", s.registry.Len()).Msg("New connection")

	s.broadcaster.BroadcastSystem(joinedText(nick))

	client.serve(s)
}

// release moves client to StateClosed exactly once: it leaves the registry,
// frees its cap slot, the remaining clients are told, and the stream closes.
func (s *Server) release(client *Client) {
	client.closeOnce.Do(func() {
		client.setState(StateClosed)
		removed := s.registry.Remove(client)
		s.conncap.Release(client.host)

		if removed && !s.isClosed() {
			s.broadcaster.BroadcastSystem(terminatedText(client.nick))
		}

		client.closeConnection()
		client.logger.Info().Int("online", s.registry.Len()).Msg("Connection terminated")
	})
}

// Addr returns the address of the first active TCP listener, or nil.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ln := range s.listeners {
		return ln.Addr()
	}
	return nil
}

// Close stops accepting, closes every open connection, and waits for the
// per-connection goroutines to exit. It is not a graceful protocol: peers
// only observe their connection closing.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true

	var firstErr error
	for ln := range s.listeners {
		if err := ln.Close(); err != nil && firstErr == nil && !isExpectedCloseError(err) {
			firstErr = err
		}
	}
	if s.httpServer != nil {
		if err := s.httpServer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	conns := make([]Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}

	s.wg.Wait()
	s.logger.Info().Int("closed_connections", len(conns)).Msg("Server closed")
	return firstErr
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) trackListener(ln net.Listener) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.listeners[ln] = struct{}{}
	return true
}

func (s *Server) untrackListener(ln net.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, ln)
}

// trackConn records conn so Close can reach it. wg.Add happens under the
// same lock that Close uses to flip closed, so Wait never races an Add.
func (s *Server) trackConn(conn Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrackConn(conn Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	s.wg.Done()
}
