package peripheral

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hub-control/hubcore/command"
	"github.com/hub-control/hubcore/transport"
)

// PortAuto marks a peripheral whose port is assigned at connect time, when
// the hub reports the matching attached I/O.
const PortAuto = -1

// ErrNotBound indicates an action method was called before the owning hub
// connected and handed over the command channel.
var ErrNotBound = errors.New("NOT_CONNECTED")

// Attachable is what the hub builder accepts: every typed device exposes its
// embedded Peripheral.
type Attachable interface {
	Base() *Peripheral
}

// Finalizer is implemented by peripherals that need a teardown action before
// the owning hub disconnects.
type Finalizer interface {
	Finalize(ctx context.Context) error
}

// Peripheral is the capability-tagged base every device type embeds. A
// peripheral is exclusively owned by one hub and never shared.
type Peripheral struct {
	name    string
	devType uint16
	caps    []Capability

	mu   sync.Mutex
	port int
	hub  string
	ch   *command.Channel
	conn transport.Connection
}

func newPeripheral(name string, port int, devType uint16, caps []Capability) *Peripheral {
	return &Peripheral{
		name:    name,
		devType: devType,
		caps:    caps,
		port:    port,
	}
}

// Base returns the peripheral itself, satisfying Attachable.
func (p *Peripheral) Base() *Peripheral { return p }

// Name returns the instance name assigned at construction.
func (p *Peripheral) Name() string { return p.name }

// DeviceType returns the wire I/O type identifier.
func (p *Peripheral) DeviceType() uint16 { return p.devType }

// Capabilities returns the ordered capability list.
func (p *Peripheral) Capabilities() []Capability { return p.caps }

// SensingCapabilities returns only the Sensing entries, in declaration order.
func (p *Peripheral) SensingCapabilities() []Capability {
	var out []Capability
	for _, c := range p.caps {
		if c.Kind == Sensing {
			out = append(out, c)
		}
	}
	return out
}

// Port returns the assigned port, or PortAuto when still unassigned.
func (p *Peripheral) Port() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.port
}

// AssignPort records the port reported by the hub for an auto-port
// peripheral.
func (p *Peripheral) AssignPort(port int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.port = port
}

// Bind hands the peripheral its hub identity, the shared command channel,
// and the live connection. Called by the hub at connect time.
func (p *Peripheral) Bind(hub string, ch *command.Channel, conn transport.Connection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hub = hub
	p.ch = ch
	p.conn = conn
}

// Unbind drops the channel and connection at disconnect.
func (p *Peripheral) Unbind() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ch = nil
	p.conn = nil
}

// send enqueues one fire-and-forget frame and waits for its transmission.
func (p *Peripheral) send(ctx context.Context, label string, frame []byte) error {
	p.mu.Lock()
	ch, conn, hub, port := p.ch, p.conn, p.hub, p.port
	p.mu.Unlock()

	if ch == nil || conn == nil {
		return fmt.Errorf("%w: %s has no bound hub connection", ErrNotBound, p.name)
	}
	if port == PortAuto {
		return fmt.Errorf("%w: %s has no assigned port yet", ErrNotBound, p.name)
	}

	pending, err := ch.Enqueue(command.Outbound{
		Conn:  conn,
		Frame: frame,
		Hub:   hub,
		Label: label,
	})
	if err != nil {
		return err
	}
	_, err = pending.Wait(ctx)
	return err
}

// wirePort returns the assigned port as a wire byte. Callers must have
// checked for PortAuto first.
func (p *Peripheral) wirePort() byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return byte(p.port)
}
