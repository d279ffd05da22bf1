// Package server defines shared message payload types, sentinel errors, and
// utility helpers that are reused across the listener, registry, and workers.
package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net"
	"strings"
)

// Handshake and admission sentinel errors.
var (
	// ErrAddressRejected is returned when a connection's source host is
	// unspecified or already holds the maximum number of connections.
	ErrAddressRejected = errors.New("source address rejected")

	// ErrHandshakeSend is returned when the NICK prompt could not be written
	// within the configured number of attempts.
	ErrHandshakeSend = errors.New("handshake: prompt not delivered")

	// ErrNoNickname is returned when the nickname reply is empty.
	ErrNoNickname = errors.New("handshake: no nickname received")

	// ErrServerClosed is returned by Serve after Close has been called.
	ErrServerClosed = errors.New("server closed")
)

// NickPrompt is the literal sentinel the server sends to request a nickname.
const NickPrompt = "NICK"

// ChatMessage is the structured payload broadcast for every chat chunk.
type ChatMessage struct {
	Nick string `json:"nick"`
	Msg  string `json:"msg"`
}

// encodeChat serializes a chat message without HTML escaping and without the
// trailing newline json.Encoder appends.
func encodeChat(nick, text string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ChatMessage{Nick: nick, Msg: text}); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

// joinedText and terminatedText are the system announcements for admission
// and departure.
func joinedText(nick string) string {
	return nick + " has joined the chat!"
}

func terminatedText(nick string) string {
	return nick + " has been terminated!"
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "connection reset by peer")
}

// isTemporary reports whether err is a transient transport condition that is
// worth retrying, such as a write deadline or a would-block condition.
func isTemporary(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
