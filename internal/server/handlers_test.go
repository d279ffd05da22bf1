package server_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Tyrowin/gochat-tcp/internal/server"
	"github.com/Tyrowin/gochat-tcp/internal/testhelpers"
)

// startGateway serves the WebSocket gateway of srv on an httptest server.
func startGateway(t *testing.T, srv *server.Server) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(srv.SetupRoutes())
	t.Cleanup(ts.Close)
	return ts
}

// joinWebSocket connects to the gateway, answers the NICK prompt, and waits
// for the join announcement.
func joinWebSocket(t *testing.T, ts *httptest.Server, nick string) (*websocket.Conn, *testhelpers.Stream) {
	t.Helper()

	conn, err := testhelpers.ConnectWebSocket(testhelpers.WebSocketURL(ts.URL))
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	stream := testhelpers.NewWSStream(conn)
	if err := stream.WaitFor("NICK", timeout); err != nil {
		t.Fatalf("No NICK prompt over WebSocket: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(nick)); err != nil {
		t.Fatalf("Failed to send nickname: %v", err)
	}
	if err := stream.WaitFor(nick+" has joined the chat!", timeout); err != nil {
		t.Fatalf("No join announcement for %s: %v", nick, err)
	}
	return conn, stream
}

// TestWebSocketAndTCPShareRegistry verifies that WebSocket and TCP clients
// join the same room and see each other's messages.
func TestWebSocketAndTCPShareRegistry(t *testing.T) {
	srv, addr := startServer(t, nil)
	ts := startGateway(t, srv)

	tcpConn, tcpStream := testhelpers.JoinTCP(t, addr, "terminal")
	wsConn, wsStream := joinWebSocket(t, ts, "browser")

	if err := tcpStream.WaitFor("browser has joined the chat!", timeout); err != nil {
		t.Fatalf("TCP client did not see the WebSocket join: %v", err)
	}
	waitForOnline(t, srv, []string{"browser", "terminal"})

	if err := wsConn.WriteMessage(websocket.TextMessage, []byte("from the web")); err != nil {
		t.Fatalf("Failed to send over WebSocket: %v", err)
	}
	want := `{"nick":"browser","msg":"from the web"}`
	if err := tcpStream.WaitFor(want, timeout); err != nil {
		t.Errorf("TCP client did not receive WebSocket chat: %v", err)
	}
	if err := wsStream.WaitFor(want, timeout); err != nil {
		t.Errorf("WebSocket sender did not receive its own chat: %v", err)
	}

	if _, err := tcpConn.Write([]byte("from the terminal")); err != nil {
		t.Fatalf("Failed to send over TCP: %v", err)
	}
	if err := wsStream.WaitFor(`{"nick":"terminal","msg":"from the terminal"}`, timeout); err != nil {
		t.Errorf("WebSocket client did not receive TCP chat: %v", err)
	}

	_ = wsConn.Close()
	if err := tcpStream.WaitFor("browser has been terminated!", timeout); err != nil {
		t.Errorf("TCP client did not see the WebSocket departure: %v", err)
	}
}

// TestWebSocketOversizedFrame verifies that a frame larger than the read
// buffer terminates the session.
func TestWebSocketOversizedFrame(t *testing.T) {
	srv, addr := startServer(t, func(cfg *server.Config) { cfg.ReadBufferSize = 64 })
	ts := startGateway(t, srv)

	_, observer := testhelpers.JoinTCP(t, addr, "observer")
	wsConn, _ := joinWebSocket(t, ts, "big")

	if err := wsConn.WriteMessage(websocket.TextMessage, []byte(strings.Repeat("x", 200))); err != nil {
		t.Fatalf("Failed to send oversized frame: %v", err)
	}
	if err := observer.WaitFor("big has been terminated!", timeout); err != nil {
		t.Errorf("Expected oversized sender to be terminated: %v", err)
	}
}

// TestWebSocketRejectsDisallowedOrigin verifies the gateway's origin check.
func TestWebSocketRejectsDisallowedOrigin(t *testing.T) {
	srv := server.NewServer(*server.NewConfig(), zerolog.Nop())
	t.Cleanup(func() { _ = srv.Close() })
	ts := startGateway(t, srv)

	headers := http.Header{}
	headers.Set("Origin", "http://evil.example.com")

	conn, resp, err := websocket.DefaultDialer.Dial(testhelpers.WebSocketURL(ts.URL), headers)
	if err == nil {
		_ = conn.Close()
		t.Fatal("Expected upgrade from disallowed origin to fail")
	}
	if resp == nil {
		t.Fatal("Expected an HTTP response for the rejected upgrade")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected status %d, got %d", http.StatusForbidden, resp.StatusCode)
	}
}

// TestWebSocketMethodNotAllowed verifies that only GET reaches the upgrader.
func TestWebSocketMethodNotAllowed(t *testing.T) {
	srv := server.NewServer(*server.NewConfig(), zerolog.Nop())
	t.Cleanup(func() { _ = srv.Close() })
	ts := startGateway(t, srv)

	resp, err := http.Post(ts.URL+"/ws", "text/plain", strings.NewReader("hi"))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected status %d, got %d", http.StatusMethodNotAllowed, resp.StatusCode)
	}
}

// TestHealthEndpoint verifies the health check reports the online count.
func TestHealthEndpoint(t *testing.T) {
	srv, addr := startServer(t, nil)
	ts := startGateway(t, srv)

	testhelpers.JoinTCP(t, addr, "alice")

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/plain" {
		t.Errorf("Expected content type text/plain, got %s", ct)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read body: %v", err)
	}
	if !strings.Contains(string(body), "1 online") {
		t.Errorf("Expected online count in body, got %q", body)
	}
}
