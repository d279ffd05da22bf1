// Package server implements the NICK prompt / nickname reply exchange that
// every connection completes before it is admitted.
package server

import (
	"fmt"
	"time"
)

// performHandshake sends the NICK prompt and reads the nickname reply. The
// reply is taken verbatim from a single read; it is neither trimmed nor
// checked for uniqueness.
func performHandshake(conn Conn, cfg Config) (string, error) {
	if err := sendPrompt(conn, cfg); err != nil {
		return "", err
	}

	if cfg.HandshakeTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(cfg.HandshakeTimeout)); err != nil {
			return "", fmt.Errorf("handshake: set deadline: %w", err)
		}
		defer func() { _ = conn.SetReadDeadline(time.Time{}) }()
	}

	chunk, err := conn.ReadChunk()
	if err != nil {
		return "", fmt.Errorf("handshake: read nickname: %w", err)
	}
	if len(chunk) == 0 {
		return "", ErrNoNickname
	}
	return string(chunk), nil
}

// sendPrompt writes the NICK prompt, retrying transient failures with a
// fixed backoff. Permanent errors fail on the first attempt.
func sendPrompt(conn Conn, cfg Config) error {
	attempts := cfg.HandshakeSendAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if cfg.WriteTimeout > 0 {
			if err := conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout)); err != nil {
				return fmt.Errorf("%w: %w", ErrHandshakeSend, err)
			}
		}

		err := conn.WriteChunk([]byte(NickPrompt))
		if err == nil {
			return nil
		}
		lastErr = err

		if !isTemporary(err) {
			break
		}
		if attempt < attempts && cfg.HandshakeRetryBackoff > 0 {
			time.Sleep(cfg.HandshakeRetryBackoff)
		}
	}
	return fmt.Errorf("%w: %w", ErrHandshakeSend, lastErr)
}
