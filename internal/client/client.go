// Package client implements the consumer side of the GoChat wire protocol:
// it answers the NICK prompt, sends raw text, and decodes server payloads.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// NickPrompt is the literal the server sends to request a nickname.
const NickPrompt = "NICK"

const (
	readBufferSize      = 1024
	defaultSendAttempts = 10
	defaultRetryBackoff = 500 * time.Millisecond
)

// Kind distinguishes the payload shapes a server may send.
type Kind int

const (
	// KindPrompt is the NICK request; the client has already answered it.
	KindPrompt Kind = iota
	// KindChat is a structured {"nick","msg"} broadcast.
	KindChat
	// KindSystem is a plain-text announcement.
	KindSystem
)

// Event is one decoded server payload.
type Event struct {
	Kind Kind
	Nick string
	Text string
	At   time.Time
}

// Format renders chat events as "(HH:MM)[nick]: text" and system events
// verbatim.
func (e Event) Format() string {
	if e.Kind == KindChat {
		return fmt.Sprintf("(%s)[%s]: %s", e.At.Format("15:04"), e.Nick, e.Text)
	}
	return e.Text
}

type chatPayload struct {
	Nick *string `json:"nick"`
	Msg  *string `json:"msg"`
}

// Decode classifies payload, trying the structured chat shape first and
// falling back to a plain system string.
func Decode(payload []byte, at time.Time) Event {
	var chat chatPayload
	if err := json.Unmarshal(payload, &chat); err == nil && chat.Nick != nil && chat.Msg != nil {
		return Event{Kind: KindChat, Nick: *chat.Nick, Text: *chat.Msg, At: at}
	}
	return Event{Kind: KindSystem, Text: string(payload), At: at}
}

// Client is a connected chat session.
type Client struct {
	conn         net.Conn
	nick         string
	buf          []byte
	sendAttempts int
	retryBackoff time.Duration
	now          func() time.Time

	writeMu sync.Mutex
}

// Dial connects to addr and returns a Client that answers the NICK prompt
// with nick.
func Dial(ctx context.Context, addr, nick string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return New(conn, nick), nil
}

// New wraps an established connection.
func New(conn net.Conn, nick string) *Client {
	return &Client{
		conn:         conn,
		nick:         nick,
		buf:          make([]byte, readBufferSize),
		sendAttempts: defaultSendAttempts,
		retryBackoff: defaultRetryBackoff,
		now:          time.Now,
	}
}

// Nick returns the nickname the client registers with.
func (c *Client) Nick() string {
	return c.nick
}

// Receive blocks for the next payload. A NICK prompt is answered before
// Receive returns a KindPrompt event.
func (c *Client) Receive() (Event, error) {
	n, err := c.conn.Read(c.buf)
	if n == 0 {
		if err == nil {
			err = errors.New("client: empty read")
		}
		return Event{}, err
	}

	payload := c.buf[:n]
	if string(payload) == NickPrompt {
		if err := c.sendWithRetry([]byte(c.nick)); err != nil {
			return Event{}, fmt.Errorf("client: answer nick prompt: %w", err)
		}
		return Event{Kind: KindPrompt, Text: NickPrompt, At: c.now()}, nil
	}

	return Decode(payload, c.now()), nil
}

// Send writes text as one chunk.
func (c *Client) Send(text string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.conn.Write([]byte(text))
	return err
}

// sendWithRetry retries transient write failures with a fixed backoff.
func (c *Client) sendWithRetry(p []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= c.sendAttempts; attempt++ {
		_, err := c.conn.Write(p)
		if err == nil {
			return nil
		}
		lastErr = err

		var netErr net.Error
		if !errors.As(err, &netErr) || !netErr.Timeout() {
			break
		}
		if attempt < c.sendAttempts {
			time.Sleep(c.retryBackoff)
		}
	}
	return lastErr
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
