// Package testhelpers provides common utilities for testing the GoChat server.
//
// The chat protocol is unframed, so consecutive server payloads may arrive
// coalesced in one TCP read or split across several. Stream accumulates
// everything a connection receives and lets tests wait for substrings, which
// keeps assertions independent of how the kernel chunks the bytes.
package testhelpers

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultTimeout bounds every wait in the helpers.
const DefaultTimeout = 3 * time.Second

// Stream accumulates the bytes received on one connection.
type Stream struct {
	read func(deadline time.Time) ([]byte, error)
	buf  bytes.Buffer
}

// NewTCPStream wraps a TCP connection.
func NewTCPStream(conn net.Conn) *Stream {
	chunk := make([]byte, 4096)
	return &Stream{read: func(deadline time.Time) ([]byte, error) {
		if err := conn.SetReadDeadline(deadline); err != nil {
			return nil, err
		}
		n, err := conn.Read(chunk)
		return chunk[:n], err
	}}
}

// NewWSStream wraps a WebSocket connection. gorilla/websocket treats a read
// timeout as fatal, so only wait on a WebSocket stream for data that is
// expected to arrive.
func NewWSStream(conn *websocket.Conn) *Stream {
	return &Stream{read: func(deadline time.Time) ([]byte, error) {
		if err := conn.SetReadDeadline(deadline); err != nil {
			return nil, err
		}
		_, data, err := conn.ReadMessage()
		return data, err
	}}
}

// WaitFor reads until the accumulated bytes contain want, then consumes
// everything up to and including the match.
func (s *Stream) WaitFor(want string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if idx := strings.Index(s.buf.String(), want); idx >= 0 {
			s.buf.Next(idx + len(want))
			return nil
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("timed out waiting for %q; received %q", want, s.buf.String())
		}

		data, err := s.read(deadline)
		s.buf.Write(data)
		if err != nil {
			if idx := strings.Index(s.buf.String(), want); idx >= 0 {
				s.buf.Next(idx + len(want))
				return nil
			}
			return fmt.Errorf("waiting for %q: %w; received %q", want, err, s.buf.String())
		}
	}
}

// ExpectQuiet reads for the given duration and fails if anything arrives.
// Only use it on TCP streams.
func (s *Stream) ExpectQuiet(d time.Duration) error {
	data, err := s.read(time.Now().Add(d))
	s.buf.Write(data)
	if s.buf.Len() > 0 {
		return fmt.Errorf("expected no data, received %q", s.buf.String())
	}
	var netErr net.Error
	if err != nil && !(errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("expected open connection, got %w", err)
	}
	return nil
}

// ExpectClosed reads until the peer closes the connection and returns
// everything received before the close.
func (s *Stream) ExpectClosed(timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	for {
		data, err := s.read(deadline)
		s.buf.Write(data)
		if err == nil {
			continue
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return s.buf.String(), fmt.Errorf("connection still open after %s", timeout)
		}
		return s.buf.String(), nil
	}
}

// Pending returns the bytes received but not yet consumed by WaitFor.
func (s *Stream) Pending() string {
	return s.buf.String()
}

// DialTCP connects to addr and registers the connection for cleanup.
func DialTCP(t *testing.T, addr string) net.Conn {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, DefaultTimeout)
	if err != nil {
		t.Fatalf("Failed to connect to %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// JoinTCP dials addr, answers the NICK prompt with nick, and waits for the
// join announcement.
func JoinTCP(t *testing.T, addr, nick string) (net.Conn, *Stream) {
	t.Helper()

	conn := DialTCP(t, addr)
	stream := NewTCPStream(conn)

	if err := stream.WaitFor("NICK", DefaultTimeout); err != nil {
		t.Fatalf("No NICK prompt for %s: %v", nick, err)
	}
	if _, err := conn.Write([]byte(nick)); err != nil {
		t.Fatalf("Failed to send nickname %s: %v", nick, err)
	}
	if err := stream.WaitFor(nick+" has joined the chat!", DefaultTimeout); err != nil {
		t.Fatalf("No join announcement for %s: %v", nick, err)
	}
	return conn, stream
}

// ConnectWebSocket creates a WebSocket connection to the specified URL with
// an Origin header accepted by the default configuration.
func ConnectWebSocket(url string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	headers.Set("Origin", "http://localhost:8080")

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// WebSocketURL converts an httptest server URL into its /ws endpoint.
func WebSocketURL(serverURL string) string {
	return "ws" + strings.TrimPrefix(serverURL, "http") + "/ws"
}

// Eventually polls cond until it holds or the timeout expires.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !cond() {
		t.Fatalf("Condition not met within %s: %s", timeout, msg)
	}
}
