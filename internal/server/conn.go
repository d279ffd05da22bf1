// Package server adapts TCP streams and WebSocket connections to the single
// chunk-oriented transport the chat protocol runs over.
package server

import (
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the transport a chat session runs over. ReadChunk returns whatever
// one read yields, up to the configured buffer size; the protocol has no
// framing, so one chunk is one message.
type Conn interface {
	ReadChunk() ([]byte, error)
	WriteChunk(p []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	RemoteAddr() net.Addr
	Close() error
}

// tcpConn reads raw TCP chunks into a reusable buffer.
type tcpConn struct {
	conn net.Conn
	buf  []byte
}

func newTCPConn(conn net.Conn, bufSize int) *tcpConn {
	return &tcpConn{conn: conn, buf: make([]byte, bufSize)}
}

func (c *tcpConn) ReadChunk() ([]byte, error) {
	n, err := c.conn.Read(c.buf)
	if n > 0 {
		chunk := make([]byte, n)
		copy(chunk, c.buf[:n])
		return chunk, nil
	}
	return nil, err
}

func (c *tcpConn) WriteChunk(p []byte) error {
	_, err := c.conn.Write(p)
	return err
}

func (c *tcpConn) SetReadDeadline(t time.Time) error  { return c.conn.SetReadDeadline(t) }
func (c *tcpConn) SetWriteDeadline(t time.Time) error { return c.conn.SetWriteDeadline(t) }
func (c *tcpConn) RemoteAddr() net.Addr               { return c.conn.RemoteAddr() }
func (c *tcpConn) Close() error                       { return c.conn.Close() }

// wsConn maps one WebSocket text frame to one chunk. gorilla/websocket allows
// a single concurrent writer, so writes are serialized here as well as by
// the owning Client.
type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func newWSConn(conn *websocket.Conn, readLimit int) *wsConn {
	conn.SetReadLimit(int64(readLimit))
	return &wsConn{conn: conn}
}

func (c *wsConn) ReadChunk() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) WriteChunk(p []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, p)
}

func (c *wsConn) SetReadDeadline(t time.Time) error  { return c.conn.SetReadDeadline(t) }
func (c *wsConn) SetWriteDeadline(t time.Time) error { return c.conn.SetWriteDeadline(t) }
func (c *wsConn) RemoteAddr() net.Addr               { return c.conn.RemoteAddr() }

// Close sends a best-effort close frame before tearing down the socket.
// WriteControl may run concurrently with a pending WriteMessage.
func (c *wsConn) Close() error {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}
