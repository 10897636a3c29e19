// Package transport defines the radio transport boundary consumed by the hub
// lifecycle core.
//
// The core never talks to a BLE stack directly: it opens connections, writes
// frames, and consumes inbound notification frames exclusively through the
// Transport and Connection contracts below. Implementations live in
// subpackages (transport/fake for tests, transport/gattble for real hardware).
package transport
