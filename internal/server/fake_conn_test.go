package server

import (
	"io"
	"net"
	"sync"
	"time"
)

// timeoutError is a net.Error that reports a timeout, like an expired deadline.
type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// fakeConn is an in-memory Conn. Reads come from the reads channel; closing
// it yields io.EOF. An expired read deadline wakes a pending read with a
// timeout error.
type fakeConn struct {
	mu        sync.Mutex
	writes    [][]byte
	writeErrs []error
	failAll   error
	closed    bool

	reads  chan []byte
	wake   chan struct{}
	remote net.Addr
}

func newFakeConn(host string) *fakeConn {
	return &fakeConn{
		reads:  make(chan []byte, 16),
		wake:   make(chan struct{}, 1),
		remote: &net.TCPAddr{IP: net.ParseIP(host), Port: 40000},
	}
}

func (f *fakeConn) ReadChunk() ([]byte, error) {
	select {
	case p, ok := <-f.reads:
		if !ok {
			return nil, io.EOF
		}
		return p, nil
	case <-f.wake:
		return nil, timeoutError{}
	}
}

func (f *fakeConn) WriteChunk(p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failAll != nil {
		return f.failAll
	}
	if len(f.writeErrs) > 0 {
		err := f.writeErrs[0]
		f.writeErrs = f.writeErrs[1:]
		if err != nil {
			return err
		}
	}
	f.writes = append(f.writes, append([]byte(nil), p...))
	return nil
}

func (f *fakeConn) SetReadDeadline(t time.Time) error {
	if !t.IsZero() && !t.After(time.Now()) {
		select {
		case f.wake <- struct{}{}:
		default:
		}
	}
	return nil
}

func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }
func (f *fakeConn) RemoteAddr() net.Addr             { return f.remote }

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) written() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, len(f.writes))
	for i, w := range f.writes {
		out[i] = string(w)
	}
	return out
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// waitFor polls cond for up to a second.
func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}
