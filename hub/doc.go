// Package hub implements the hub lifecycle core: the Hub state machine, the
// Builder that wires peripherals onto a hub, the Registry of live hubs, and
// the Orchestrator that drives connect → initialize → run → finalize →
// disconnect across the whole registry.
//
// Construction contract: peripherals are created first, attached through the
// Builder, and validated at Build time — a sensing capability without a
// registered hub callback fails with a configuration error before any
// hardware I/O happens. The Orchestrator owns the shared command channel and
// hands it to each hub at connect time, so one serialized writer covers all
// hubs on the transport.
package hub
