// Package command implements the shared outbound command channel.
//
// Every outbound frame from every hub and peripheral goes through one
// Channel, whose single consumer goroutine is the sole writer to the
// transport. This guarantees total FIFO order of writes across concurrently
// running hubs: the underlying radio link supports only one in-flight write
// at a time.
//
// Commands that expect a correlated reply park the consumer until the reply
// arrives (resolved by the owning hub via Resolve) or the configured timeout
// elapses. DisconnectAll is the teardown safety net: it drains the queue,
// fails every pending handle with transport.ErrDisconnected, and force-closes
// every connection the transport still holds.
package command
