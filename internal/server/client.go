// Package server manages individual chat clients, handling the read loop,
// serialized writes, rate limiting, and lifecycle control for each connection.
package server

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// State is the lifecycle stage of a client connection.
type State int32

const (
	// StateHandshaking covers the time between accept and a successful
	// nickname exchange.
	StateHandshaking State = iota
	// StateActive is entered atomically with the registry insert.
	StateActive
	// StateClosed is terminal; no further I/O is performed.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateHandshaking:
		return "handshaking"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Client represents one accepted connection in the chat system. Reads are
// owned by the client's own worker; writes come from any broadcasting
// goroutine and are serialized by writeMu.
type Client struct {
	id     uuid.UUID
	conn   Conn
	host   string
	nick   string
	state  atomic.Int32
	logger zerolog.Logger

	writeMu sync.Mutex

	failMu   sync.Mutex
	writeErr error

	rateLimiter *rateLimiter
	rateLimit   RateLimitConfig

	closeOnce sync.Once
}

// newClient creates a Client in StateHandshaking for conn.
func newClient(conn Conn, host string, cfg Config, logger zerolog.Logger) *Client {
	id := uuid.New()
	c := &Client{
		id:        id,
		conn:      conn,
		host:      host,
		rateLimit: cfg.RateLimit,
		logger: logger.With().
			Str("session", id.String()).
			Str("remote", conn.RemoteAddr().String()).
			Logger(),
	}
	if cfg.RateLimit.Burst > 0 {
		c.rateLimiter = newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval)
	}
	return c
}

// ID returns the session identifier assigned at accept time.
func (c *Client) ID() uuid.UUID {
	return c.id
}

// Nick returns the nickname the client registered with, or "" while handshaking.
func (c *Client) Nick() string {
	return c.nick
}

// State returns the client's current lifecycle state.
func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
}

// deliver writes one payload to the client. A failure is recorded for the
// client's own worker to act on; the caller carries on with other recipients.
func (c *Client) deliver(payload []byte, timeout time.Duration) error {
	if err := c.failure(); err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if timeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			c.fail(err)
			return err
		}
	}

	if err := c.conn.WriteChunk(payload); err != nil {
		c.fail(err)
		return err
	}
	return nil
}

// fail records the first write error and wakes the worker's pending read.
func (c *Client) fail(err error) {
	c.failMu.Lock()
	if c.writeErr == nil {
		c.writeErr = err
	}
	c.failMu.Unlock()

	_ = c.conn.SetReadDeadline(time.Now())
}

func (c *Client) failure() error {
	c.failMu.Lock()
	defer c.failMu.Unlock()
	return c.writeErr
}

// serve runs the worker loop until a read or recorded write error, then
// hands the client to the server for cleanup.
func (c *Client) serve(s *Server) {
	defer s.release(c)

	for {
		if s.cfg.IdleTimeout > 0 {
			if err := c.conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout)); err != nil {
				c.logger.Warn().Err(err).Msg("Error setting idle read deadline")
			}
		}

		// Checked after the deadline is set so a concurrent fail cannot be
		// overwritten by the idle deadline.
		if err := c.failure(); err != nil {
			c.logger.Info().Err(err).Msg("Client write failed; closing")
			return
		}

		chunk, err := c.conn.ReadChunk()
		if err != nil {
			if werr := c.failure(); werr != nil {
				err = werr
			}
			c.handleReadError(err, s.cfg)
			return
		}

		if !c.checkRateLimit() {
			continue
		}

		s.broadcaster.BroadcastChat(c.nick, string(chunk))
	}
}

// handleReadError logs the reason the worker is stopping.
func (c *Client) handleReadError(err error, cfg Config) {
	if errors.Is(err, websocket.ErrReadLimit) {
		c.logger.Info().Int("limit", cfg.ReadBufferSize).Msg("Message exceeded maximum size")
		return
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() && cfg.IdleTimeout > 0 {
		c.logger.Info().Dur("idle_timeout", cfg.IdleTimeout).Msg("Client idle timeout")
		return
	}

	if isExpectedCloseError(err) {
		c.logger.Info().Err(err).Msg("Client connection closed")
		return
	}

	c.logger.Warn().Err(err).Msg("Client read error")
}

// checkRateLimit verifies if the client has exceeded rate limits
// and returns true if the message should be processed
func (c *Client) checkRateLimit() bool {
	if c.rateLimiter != nil && !c.rateLimiter.allow() {
		c.logger.Warn().
			Int("burst", c.rateLimit.Burst).
			Dur("interval", c.rateLimit.RefillInterval).
			Msg("Rate limit exceeded; discarding message")
		return false
	}
	return true
}

// closeConnection closes the underlying stream, logging only unexpected errors.
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.logger.Debug().Err(err).Msg("Error closing connection")
	}
}
