package hub

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hub-control/hubcore/codec"
	"github.com/hub-control/hubcore/command"
	"github.com/hub-control/hubcore/events"
	"github.com/hub-control/hubcore/peripheral"
	"github.com/hub-control/hubcore/transport"
)

// State is the hub's position in the connection lifecycle.
type State int

const (
	Created State = iota
	Connecting
	Connected
	Ready
	Finalizing
	Disconnecting
	Disconnected
)

var stateNames = map[State]string{
	Created:       "created",
	Connecting:    "connecting",
	Connected:     "connected",
	Ready:         "ready",
	Finalizing:    "finalizing",
	Disconnecting: "disconnecting",
	Disconnected:  "disconnected",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// SensorHandler receives decoded change notifications for one sensing
// capability. Handlers run on the hub's dispatch goroutine and should not
// block.
type SensorHandler func(p *peripheral.Peripheral, value codec.PortValue)

// PortInfo is the transport-reported metadata recorded for one port.
type PortInfo struct {
	DeviceType   uint16 `json:"deviceType"`
	Attached     bool   `json:"attached"`
	Capabilities byte   `json:"capabilities,omitempty"`
	ModeCount    byte   `json:"modeCount,omitempty"`
	InputModes   uint16 `json:"inputModes,omitempty"`
	OutputModes  uint16 `json:"outputModes,omitempty"`
}

// Hub is one logical controller for a physical BLE device. Build one through
// a Builder; lifecycle transitions are driven by the Orchestrator.
type Hub struct {
	name    string
	id      string
	kind    Kind
	address string

	queryPortInfo bool
	handlers      map[string]SensorHandler

	mu         sync.Mutex
	state      State
	ports      map[int]peripheral.Attachable
	unassigned []peripheral.Attachable
	portInfo   map[int]*PortInfo
	activeMode map[int]byte
	infoWait   map[int]string

	tr   transport.Transport
	ch   *command.Channel
	conn transport.Connection
	ev   *events.Hub
	log  zerolog.Logger

	readerDone chan struct{}
}

// Name returns the user-assigned name. Names are not required unique.
func (h *Hub) Name() string { return h.name }

// ID returns the generated unique id.
func (h *Hub) ID() string { return h.id }

// Kind returns the hub family.
func (h *Hub) Kind() Kind { return h.kind }

// Address returns the transport address the hub connects to.
func (h *Hub) Address() string { return h.address }

// State returns the current lifecycle state.
func (h *Hub) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// QueryPortInfo reports whether port introspection was requested at build
// time.
func (h *Hub) QueryPortInfo() bool { return h.queryPortInfo }

// Peripheral looks an attachment up by instance name.
func (h *Hub) Peripheral(name string) peripheral.Attachable {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, a := range h.ports {
		if a.Base().Name() == name {
			return a
		}
	}
	for _, a := range h.unassigned {
		if a.Base().Name() == name {
			return a
		}
	}
	return nil
}

// PortInfoSnapshot returns a copy of the recorded port metadata.
func (h *Hub) PortInfoSnapshot() map[int]PortInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[int]PortInfo, len(h.portInfo))
	for port, info := range h.portInfo {
		out[port] = *info
	}
	return out
}

func (h *Hub) setEvents(ev *events.Hub) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ev = ev
}

// setState transitions the state machine and publishes the change.
func (h *Hub) setState(s State) {
	h.mu.Lock()
	h.state = s
	ev := h.ev
	h.mu.Unlock()

	h.log.Debug().Str("state", s.String()).Msg("hub state")
	if ev != nil {
		ev.Publish(events.Event{Type: "state", Hub: h.name, Data: map[string]interface{}{"state": s.String()}})
	}
}

// requireState guards a lifecycle call against out-of-order driving.
func (h *Hub) requireState(want State, op string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != want {
		return fmt.Errorf("%s on hub %q in state %s, want %s", op, h.name, h.state, want)
	}
	return nil
}

// Connect opens the transport connection and binds every attachment to the
// shared command channel. Created -> Connecting -> Connected.
func (h *Hub) Connect(ctx context.Context, tr transport.Transport, ch *command.Channel) error {
	if err := h.requireState(Created, "connect"); err != nil {
		return err
	}
	h.setState(Connecting)

	conn, err := tr.Open(ctx, h.address)
	if err != nil {
		h.setState(Disconnected)
		return fmt.Errorf("hub %q: %w", h.name, err)
	}

	h.mu.Lock()
	h.tr = tr
	h.ch = ch
	h.conn = conn
	h.readerDone = make(chan struct{})
	attachments := h.allAttachments()
	h.mu.Unlock()

	for _, a := range attachments {
		a.Base().Bind(h.name, ch, conn)
	}

	go h.dispatchLoop(conn)

	h.setState(Connected)
	h.log.Info().Str("address", h.address).Msg("hub connected")
	return nil
}

// Initialize performs the per-hub setup handshake: enables change
// notifications for every sensing capability and, when requested, records
// port metadata. Connected -> Ready.
func (h *Hub) Initialize(ctx context.Context) error {
	if err := h.requireState(Connected, "initialize"); err != nil {
		return err
	}

	h.mu.Lock()
	ch, conn := h.ch, h.conn
	assigned := make(map[int]peripheral.Attachable, len(h.ports))
	for port, a := range h.ports {
		assigned[port] = a
	}
	h.mu.Unlock()

	for port, a := range assigned {
		for _, cap := range a.Base().SensingCapabilities() {
			frame := codec.EncodeInputFormatSetup(byte(port), cap.Mode, 1, true)
			pending, err := ch.Enqueue(command.Outbound{
				Conn:  conn,
				Frame: frame,
				Hub:   h.name,
				Label: "input_format_setup",
			})
			if err != nil {
				return fmt.Errorf("hub %q: enable %s on port %d: %w", h.name, cap.Name, port, err)
			}
			if _, err := pending.Wait(ctx); err != nil {
				return fmt.Errorf("hub %q: enable %s on port %d: %w", h.name, cap.Name, port, err)
			}
		}
	}

	if h.queryPortInfo {
		h.introspectPorts(ctx, assigned)
	}

	h.setState(Ready)
	h.log.Info().Msg("hub ready")
	return nil
}

// introspectPorts requests and records metadata for every assigned port.
// Best-effort: a timeout on one port is logged and skipped, never fatal.
func (h *Hub) introspectPorts(ctx context.Context, assigned map[int]peripheral.Attachable) {
	for port := range assigned {
		h.mu.Lock()
		ch, conn := h.ch, h.conn
		h.mu.Unlock()

		pending, err := ch.Enqueue(command.Outbound{
			Conn:        conn,
			Frame:       codec.EncodePortInfoRequest(byte(port), codec.InfoModeInfo),
			ExpectReply: true,
			Hub:         h.name,
			Label:       "port_info_request",
		})
		if err != nil {
			h.log.Warn().Int("port", port).Err(err).Msg("port info request not enqueued")
			continue
		}

		h.mu.Lock()
		h.infoWait[port] = pending.Token
		h.mu.Unlock()

		if _, err := pending.Wait(ctx); err != nil {
			h.log.Warn().Int("port", port).Err(err).Msg("port info unavailable")
			h.mu.Lock()
			delete(h.infoWait, port)
			h.mu.Unlock()
		}
	}
}

// Finalize runs peripheral teardown hooks. Ready -> Finalizing. It does not
// close the transport connection; Disconnect does.
func (h *Hub) Finalize(ctx context.Context) error {
	if err := h.requireState(Ready, "finalize"); err != nil {
		return err
	}
	h.setState(Finalizing)

	var firstErr error
	for _, a := range h.allAttachments() {
		if f, ok := a.(peripheral.Finalizer); ok {
			if err := f.Finalize(ctx); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("hub %q: finalize %q: %w", h.name, a.Base().Name(), err)
			}
		}
	}
	return firstErr
}

// Disconnect closes the transport connection. Finalizing -> Disconnecting ->
// Disconnected. The hub ends up Disconnected even when the close fails; the
// command channel's DisconnectAll sweeps up whatever the transport still
// holds.
func (h *Hub) Disconnect(ctx context.Context) error {
	if err := h.requireState(Finalizing, "disconnect"); err != nil {
		return err
	}
	h.setState(Disconnecting)

	h.mu.Lock()
	tr, conn, readerDone := h.tr, h.conn, h.readerDone
	h.mu.Unlock()

	for _, a := range h.allAttachments() {
		a.Base().Unbind()
	}

	var err error
	if tr != nil && conn != nil {
		err = tr.Close(conn)
	}
	if readerDone != nil && err == nil {
		select {
		case <-readerDone:
		case <-ctx.Done():
		}
	}

	h.setState(Disconnected)
	if err != nil {
		return fmt.Errorf("hub %q: %w", h.name, err)
	}
	h.log.Info().Msg("hub disconnected")
	return nil
}

// Run blocks until the hub's connection goes away or ctx is cancelled.
// Only the deprecated Orchestrator.Start entry point uses it.
func (h *Hub) Run(ctx context.Context) error {
	h.mu.Lock()
	readerDone := h.readerDone
	h.mu.Unlock()
	if readerDone == nil {
		return fmt.Errorf("run on hub %q before connect", h.name)
	}
	select {
	case <-readerDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) allAttachments() []peripheral.Attachable {
	out := make([]peripheral.Attachable, 0, len(h.ports)+len(h.unassigned))
	for _, a := range h.ports {
		out = append(out, a)
	}
	out = append(out, h.unassigned...)
	return out
}

// dispatchLoop routes inbound frames for the lifetime of the connection.
func (h *Hub) dispatchLoop(conn transport.Connection) {
	defer func() {
		h.mu.Lock()
		done := h.readerDone
		h.mu.Unlock()
		if done != nil {
			close(done)
		}
	}()

	for frame := range conn.Notifications() {
		msg, err := codec.Decode(frame)
		if err != nil {
			h.log.Debug().Err(err).Msg("undecodable frame dropped")
			continue
		}
		h.dispatch(msg)
	}
}

// dispatch handles one decoded inbound message.
func (h *Hub) dispatch(msg codec.Message) {
	switch msg.Type {
	case codec.MsgHubAttachedIO:
		io, err := codec.DecodeAttachedIO(msg)
		if err != nil {
			h.log.Debug().Err(err).Msg("bad attached-io frame dropped")
			return
		}
		h.handleAttachedIO(io)

	case codec.MsgPortInputFormat:
		format, err := codec.DecodePortInputFormat(msg)
		if err != nil {
			h.log.Debug().Err(err).Msg("bad input-format frame dropped")
			return
		}
		h.mu.Lock()
		h.activeMode[int(format.Port)] = format.Mode
		h.mu.Unlock()

	case codec.MsgPortValueSingle:
		value, err := codec.DecodePortValue(msg)
		if err != nil {
			h.log.Debug().Err(err).Msg("bad port-value frame dropped")
			return
		}
		h.handlePortValue(value)

	case codec.MsgPortInformation:
		info, err := codec.DecodePortInformation(msg)
		if err != nil {
			h.log.Debug().Err(err).Msg("bad port-information frame dropped")
			return
		}
		h.handlePortInformation(info, msg.Payload)

	default:
		h.log.Debug().Uint8("type", msg.Type).Msg("unhandled message type")
	}
}

// handleAttachedIO records port metadata and assigns ports to auto-port
// peripherals whose device type matches the attachment.
func (h *Hub) handleAttachedIO(io codec.AttachedIO) {
	port := int(io.Port)

	h.mu.Lock()
	defer h.mu.Unlock()

	info, ok := h.portInfo[port]
	if !ok {
		info = &PortInfo{}
		h.portInfo[port] = info
	}
	info.Attached = io.Event != codec.EventDetached
	if info.Attached {
		info.DeviceType = io.DeviceType
	}

	if !info.Attached {
		return
	}
	if _, taken := h.ports[port]; taken {
		return
	}
	for i, a := range h.unassigned {
		if a.Base().DeviceType() == io.DeviceType {
			a.Base().AssignPort(port)
			h.ports[port] = a
			h.unassigned = append(h.unassigned[:i], h.unassigned[i+1:]...)
			h.log.Debug().Int("port", port).Str("peripheral", a.Base().Name()).Msg("port assigned from attached-io")
			return
		}
	}
}

// handlePortValue routes a sensor value to the hub callback registered for
// the capability active on that port. Unmapped ports are dropped, not fatal.
func (h *Hub) handlePortValue(value codec.PortValue) {
	port := int(value.Port)

	h.mu.Lock()
	a, mapped := h.ports[port]
	mode, modeKnown := h.activeMode[port]
	h.mu.Unlock()

	if !mapped {
		h.log.Debug().Int("port", port).Msg("value for unmapped port dropped")
		return
	}

	sensing := a.Base().SensingCapabilities()
	if len(sensing) == 0 {
		h.log.Debug().Int("port", port).Msg("value for non-sensing peripheral dropped")
		return
	}

	cap := sensing[0]
	if modeKnown {
		for _, c := range sensing {
			if c.Mode == mode {
				cap = c
				break
			}
		}
	}

	handler, ok := h.handlers[cap.Callback]
	if !ok {
		// Build validated the contract; reaching here means the value arrived
		// on a mode the peripheral never declared.
		h.log.Debug().Int("port", port).Str("callback", cap.Callback).Msg("no handler for active mode")
		return
	}
	handler(a.Base(), value)
}

// handlePortInformation records metadata and resolves the awaiting
// introspection command, if any.
func (h *Hub) handlePortInformation(info codec.PortInformation, payload []byte) {
	port := int(info.Port)

	h.mu.Lock()
	rec, ok := h.portInfo[port]
	if !ok {
		rec = &PortInfo{}
		h.portInfo[port] = rec
	}
	rec.Capabilities = info.Capabilities
	rec.ModeCount = info.ModeCount
	rec.InputModes = info.InputModes
	rec.OutputModes = info.OutputModes
	token, waiting := h.infoWait[port]
	if waiting {
		delete(h.infoWait, port)
	}
	ch := h.ch
	h.mu.Unlock()

	if waiting && ch != nil {
		ch.Resolve(token, payload)
	}
}
