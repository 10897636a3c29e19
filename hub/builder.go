package hub

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hub-control/hubcore/peripheral"
)

// Builder wires peripherals onto a hub and validates the attachment contract
// before any hardware I/O. Attachments register in declaration order.
//
// Known gap, preserved deliberately: the builder does not check that an
// explicit port number is in range for the hub model. Duplicate ports are
// rejected (the port map invariant), out-of-range ports are not.
type Builder struct {
	kind    Kind
	name    string
	address string
	query   bool

	attachments []peripheral.Attachable
	handlers    map[string]SensorHandler
}

// NewBuilder starts building a hub of the given kind with a user-assigned
// name.
func NewBuilder(kind Kind, name string) *Builder {
	return &Builder{
		kind:     kind,
		name:     name,
		address:  name,
		handlers: make(map[string]SensorHandler),
	}
}

// WithAddress sets the transport address to connect to. Defaults to the hub
// name, which is how BLE discovery by advertised name works.
func (b *Builder) WithAddress(address string) *Builder {
	b.address = address
	return b
}

// QueryPortInfo requests port metadata introspection during initialize and a
// diagnostics dump at teardown.
func (b *Builder) QueryPortInfo() *Builder {
	b.query = true
	return b
}

// Attach adds one peripheral. Order matters: it becomes attachment order.
func (b *Builder) Attach(p peripheral.Attachable) *Builder {
	b.attachments = append(b.attachments, p)
	return b
}

// OnSense registers the hub callback for a sensing capability, keyed by the
// capability's callback name (sense_color -> "color_change").
func (b *Builder) OnSense(callback string, handler SensorHandler) *Builder {
	b.handlers[callback] = handler
	return b
}

// Build validates the attachment contract, wires the hub, and appends it to
// the registry. Every violation is a ConfigurationError raised here, before
// any connection is opened.
func (b *Builder) Build(reg *Registry) (*Hub, error) {
	if reg == nil {
		return nil, &ConfigurationError{Hub: b.name, Reason: "nil registry"}
	}
	if b.name == "" {
		return nil, &ConfigurationError{Reason: "hub name is required"}
	}

	h := &Hub{
		name:          b.name,
		id:            uuid.NewString(),
		kind:          b.kind,
		address:       b.address,
		queryPortInfo: b.query,
		handlers:      b.handlers,
		state:         Created,
		ports:         make(map[int]peripheral.Attachable),
		portInfo:      make(map[int]*PortInfo),
		activeMode:    make(map[int]byte),
		infoWait:      make(map[int]string),
	}
	h.log = log.With().Str("hub", b.name).Str("kind", b.kind.String()).Logger()

	for _, a := range b.attachments {
		base := a.Base()
		if base.Name() == "" {
			return nil, &ConfigurationError{Hub: b.name, Reason: "peripheral name is required"}
		}

		for _, c := range base.SensingCapabilities() {
			if _, ok := b.handlers[c.Callback]; !ok {
				return nil, &ConfigurationError{
					Hub:        b.name,
					Peripheral: base.Name(),
					Reason:     "sensing capability " + c.Name + " has no registered " + c.Callback + " callback",
				}
			}
		}

		port := base.Port()
		if port == peripheral.PortAuto {
			h.unassigned = append(h.unassigned, a)
		} else {
			if _, taken := h.ports[port]; taken {
				return nil, &ConfigurationError{
					Hub:        b.name,
					Peripheral: base.Name(),
					Reason:     "port already occupied by " + h.ports[port].Base().Name(),
				}
			}
			h.ports[port] = a
		}

		h.log.Debug().Str("peripheral", base.Name()).Int("port", port).Msg("peripheral attached")
	}

	reg.add(h)
	return h, nil
}
