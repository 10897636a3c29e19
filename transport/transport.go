package transport

import (
	"context"
	"errors"
)

// Normalized transport errors surfaced to lifecycle callers.
var (
	// ErrConnection indicates a device could not be reached or the link dropped
	// during open. Fatal to orchestrator startup.
	ErrConnection = errors.New("CONNECTION_FAILED")

	// ErrTimeout indicates a command got no matching response within the
	// configured bound. Local to the awaiting caller.
	ErrTimeout = errors.New("TRANSPORT_TIMEOUT")

	// ErrDisconnected is the forced resolution applied to pending commands when
	// the transport is being torn down.
	ErrDisconnected = errors.New("DISCONNECTED")
)

// Connection is an opaque handle to one connected peripheral controller.
type Connection interface {
	// Address returns the address the connection was opened with.
	Address() string

	// Notifications returns the inbound frame stream for this connection.
	// The channel is closed when the connection closes.
	Notifications() <-chan []byte
}

// Transport is the southbound radio contract. One shared instance serves all
// hubs; serialization of writes is the command channel's job, not the
// transport's.
type Transport interface {
	// Open connects to the device at the given address.
	Open(ctx context.Context, address string) (Connection, error)

	// Write transmits one outbound frame on an open connection.
	Write(ctx context.Context, conn Connection, frame []byte) error

	// Close closes a single connection.
	Close(conn Connection) error

	// CloseAll force-closes every connection still open and reports how many
	// it had to close. Used as the teardown safety net.
	CloseAll() (int, error)
}
