// Package fake provides a scriptable in-memory transport for tests.
//
// It records every lifecycle call and every written frame in order, so tests
// can assert FIFO write ordering and connect/initialize sequencing across
// hubs, and it can inject open/write failures per address.
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/hub-control/hubcore/transport"
)

// Conn is an in-memory connection.
type Conn struct {
	addr     string
	notify   chan []byte
	closed   bool
	closedMu sync.Mutex
}

// Address returns the address the connection was opened with.
func (c *Conn) Address() string { return c.addr }

// Notifications returns the inbound frame stream.
func (c *Conn) Notifications() <-chan []byte { return c.notify }

// Transport implements transport.Transport in memory.
type Transport struct {
	mu sync.Mutex

	// Calls records lifecycle calls in order: "open:<addr>", "write:<addr>",
	// "close:<addr>", "closeall".
	Calls []string

	// Writes records written frames in write order.
	Writes []Write

	conns map[string]*Conn

	// FailOpen lists addresses whose Open fails with transport.ErrConnection.
	FailOpen map[string]bool

	// FailWrite lists addresses whose Write fails with transport.ErrTimeout.
	FailWrite map[string]bool

	// FailClose lists addresses whose Close returns an error (the connection
	// stays open so CloseAll has something to clean up).
	FailClose map[string]bool
}

// Write is one recorded outbound frame.
type Write struct {
	Addr  string
	Frame []byte
}

// New creates an empty fake transport.
func New() *Transport {
	return &Transport{
		conns:     make(map[string]*Conn),
		FailOpen:  make(map[string]bool),
		FailWrite: make(map[string]bool),
		FailClose: make(map[string]bool),
	}
}

// Open connects to an address, or fails when scripted to.
func (t *Transport) Open(ctx context.Context, address string) (transport.Connection, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Calls = append(t.Calls, "open:"+address)
	if t.FailOpen[address] {
		return nil, fmt.Errorf("%w: %s unreachable", transport.ErrConnection, address)
	}
	if _, exists := t.conns[address]; exists {
		return nil, fmt.Errorf("%w: %s already open", transport.ErrConnection, address)
	}

	conn := &Conn{addr: address, notify: make(chan []byte, 32)}
	t.conns[address] = conn
	return conn, nil
}

// Write records the frame in order, or fails when scripted to.
func (t *Transport) Write(ctx context.Context, conn transport.Connection, frame []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	addr := conn.Address()
	t.Calls = append(t.Calls, "write:"+addr)
	if t.FailWrite[addr] {
		return fmt.Errorf("%w: write to %s", transport.ErrTimeout, addr)
	}
	if _, open := t.conns[addr]; !open {
		return fmt.Errorf("%w: %s not open", transport.ErrDisconnected, addr)
	}

	copied := make([]byte, len(frame))
	copy(copied, frame)
	t.Writes = append(t.Writes, Write{Addr: addr, Frame: copied})
	return nil
}

// Close closes one connection.
func (t *Transport) Close(conn transport.Connection) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	addr := conn.Address()
	t.Calls = append(t.Calls, "close:"+addr)
	if t.FailClose[addr] {
		return fmt.Errorf("%w: close %s refused", transport.ErrDisconnected, addr)
	}
	t.closeLocked(addr)
	return nil
}

// CloseAll force-closes every connection still open.
func (t *Transport) CloseAll() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Calls = append(t.Calls, "closeall")
	closed := 0
	for addr := range t.conns {
		t.closeLocked(addr)
		closed++
	}
	return closed, nil
}

func (t *Transport) closeLocked(addr string) {
	conn, ok := t.conns[addr]
	if !ok {
		return
	}
	delete(t.conns, addr)
	conn.closedMu.Lock()
	if !conn.closed {
		conn.closed = true
		close(conn.notify)
	}
	conn.closedMu.Unlock()
}

// OpenCount reports how many connections are currently open.
func (t *Transport) OpenCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}

// Notify delivers an inbound frame on an open connection. Returns false when
// the address is not open.
func (t *Transport) Notify(address string, frame []byte) bool {
	t.mu.Lock()
	conn, ok := t.conns[address]
	t.mu.Unlock()
	if !ok {
		return false
	}
	conn.notify <- frame
	return true
}

// WrittenFrames returns the frames written so far, in order.
func (t *Transport) WrittenFrames() []Write {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Write, len(t.Writes))
	copy(out, t.Writes)
	return out
}

// CallLog returns the lifecycle call log so far, in order.
func (t *Transport) CallLog() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.Calls))
	copy(out, t.Calls)
	return out
}
