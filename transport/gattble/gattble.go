// Package gattble implements the transport boundary over a BLE central
// using github.com/paypal/gatt.
//
// Addresses are matched against the advertised device name first and the
// platform peripheral ID second, so user code can open a hub either way.
// The package talks the LEGO Wireless Protocol GATT profile: one service,
// one characteristic carrying both writes and notifications.
package gattble

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/paypal/gatt"
	"github.com/rs/zerolog"

	"github.com/hub-control/hubcore/config"
	"github.com/hub-control/hubcore/transport"
)

// LEGO Wireless Protocol GATT identifiers.
var (
	ServiceUUID        = gatt.MustParseUUID("00001623-1212-efde-1623-785feabcd123")
	CharacteristicUUID = gatt.MustParseUUID("00001624-1212-efde-1623-785feabcd123")
)

// Conn is one connected LWP peripheral.
type Conn struct {
	addr   string
	p      gatt.Peripheral
	char   *gatt.Characteristic
	notify chan []byte

	mu     sync.Mutex
	closed bool
}

// Address returns the address the connection was opened with.
func (c *Conn) Address() string { return c.addr }

// Notifications returns the inbound frame stream.
func (c *Conn) Notifications() <-chan []byte { return c.notify }

func (c *Conn) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.notify)
	}
}

// Transport is a BLE central serving every hub on one adapter.
type Transport struct {
	d   gatt.Device
	cfg *config.Config
	log zerolog.Logger

	powered chan struct{}
	once    sync.Once

	mu      sync.Mutex
	conns   map[string]*Conn
	waiting map[string]chan *Conn
}

// New initializes the BLE device and returns the transport. It does not
// block on adapter power-up; Open waits for it.
func New(cfg *config.Config, log zerolog.Logger) (*Transport, error) {
	d, err := gatt.NewDevice()
	if err != nil {
		return nil, fmt.Errorf("%w: ble device init: %v", transport.ErrConnection, err)
	}

	t := &Transport{
		d:       d,
		cfg:     cfg,
		log:     log.With().Str("component", "gattble").Logger(),
		powered: make(chan struct{}),
		conns:   make(map[string]*Conn),
		waiting: make(map[string]chan *Conn),
	}

	d.Handle(
		gatt.PeripheralDiscovered(t.onDiscovered),
		gatt.PeripheralConnected(t.onConnected),
		gatt.PeripheralDisconnected(t.onDisconnected),
	)
	if err := d.Init(t.onStateChanged); err != nil {
		return nil, fmt.Errorf("%w: ble adapter init: %v", transport.ErrConnection, err)
	}
	return t, nil
}

func (t *Transport) onStateChanged(d gatt.Device, s gatt.State) {
	t.log.Debug().Str("state", s.String()).Msg("adapter state")
	if s == gatt.StatePoweredOn {
		t.once.Do(func() { close(t.powered) })
	}
}

// Open scans for a peripheral advertising the LWP service whose name or ID
// matches address, connects, and subscribes to the LWP characteristic.
func (t *Transport) Open(ctx context.Context, address string) (transport.Connection, error) {
	select {
	case <-t.powered:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: adapter not powered", transport.ErrConnection)
	}

	t.mu.Lock()
	if _, open := t.conns[address]; open {
		t.mu.Unlock()
		return nil, fmt.Errorf("%w: %s already open", transport.ErrConnection, address)
	}
	wait := make(chan *Conn, 1)
	t.waiting[address] = wait
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.waiting, address)
		t.mu.Unlock()
	}()

	t.d.Scan([]gatt.UUID{ServiceUUID}, false)
	defer t.d.StopScanning()

	timer := time.NewTimer(t.cfg.ScanTimeout)
	defer timer.Stop()

	select {
	case conn := <-wait:
		if conn == nil {
			return nil, fmt.Errorf("%w: %s handshake failed", transport.ErrConnection, address)
		}
		t.mu.Lock()
		t.conns[address] = conn
		t.mu.Unlock()
		return conn, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: %s not discovered within %v", transport.ErrConnection, address, t.cfg.ScanTimeout)
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %v", transport.ErrConnection, address, ctx.Err())
	}
}

func (t *Transport) onDiscovered(p gatt.Peripheral, a *gatt.Advertisement, rssi int) {
	name := p.Name()
	if name == "" {
		name = a.LocalName
	}

	t.mu.Lock()
	_, wantName := t.waiting[name]
	_, wantID := t.waiting[p.ID()]
	t.mu.Unlock()

	if !wantName && !wantID {
		return
	}
	t.log.Debug().Str("name", name).Str("id", p.ID()).Int("rssi", rssi).Msg("peripheral discovered")
	p.Device().Connect(p)
}

func (t *Transport) onConnected(p gatt.Peripheral, err error) {
	addr, wait := t.waiterFor(p)
	if wait == nil {
		return
	}
	if err != nil {
		wait <- nil
		return
	}

	conn, err := t.subscribe(addr, p)
	if err != nil {
		t.log.Warn().Str("address", addr).Err(err).Msg("lwp handshake failed")
		p.Device().CancelConnection(p)
		wait <- nil
		return
	}
	wait <- conn
}

// subscribe discovers the LWP service and characteristic and hooks
// notifications into the connection's frame stream.
func (t *Transport) subscribe(addr string, p gatt.Peripheral) (*Conn, error) {
	services, err := p.DiscoverServices([]gatt.UUID{ServiceUUID})
	if err != nil || len(services) == 0 {
		return nil, fmt.Errorf("lwp service discovery: %v", err)
	}

	chars, err := p.DiscoverCharacteristics([]gatt.UUID{CharacteristicUUID}, services[0])
	if err != nil || len(chars) == 0 {
		return nil, fmt.Errorf("lwp characteristic discovery: %v", err)
	}

	// Descriptor discovery is required before enabling notifications on
	// some stacks.
	if _, err := p.DiscoverDescriptors(nil, chars[0]); err != nil {
		return nil, fmt.Errorf("descriptor discovery: %v", err)
	}

	conn := &Conn{
		addr:   addr,
		p:      p,
		char:   chars[0],
		notify: make(chan []byte, 32),
	}

	err = p.SetNotifyValue(chars[0], func(c *gatt.Characteristic, b []byte, err error) {
		if err != nil {
			t.log.Debug().Str("address", addr).Err(err).Msg("notification error")
			return
		}
		frame := make([]byte, len(b))
		copy(frame, b)
		conn.mu.Lock()
		closed := conn.closed
		conn.mu.Unlock()
		if closed {
			return
		}
		select {
		case conn.notify <- frame:
		default:
			t.log.Debug().Str("address", addr).Msg("notification buffer full, frame dropped")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("enable notifications: %v", err)
	}
	return conn, nil
}

func (t *Transport) onDisconnected(p gatt.Peripheral, err error) {
	t.mu.Lock()
	var gone *Conn
	for addr, conn := range t.conns {
		if conn.p.ID() == p.ID() {
			gone = conn
			delete(t.conns, addr)
			break
		}
	}
	t.mu.Unlock()

	if gone != nil {
		t.log.Info().Str("address", gone.addr).Msg("peripheral disconnected")
		gone.shutdown()
	}
}

// waiterFor matches a connected peripheral back to the Open call awaiting
// it, by ID first, then by advertised name.
func (t *Transport) waiterFor(p gatt.Peripheral) (string, chan *Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if wait, ok := t.waiting[p.ID()]; ok {
		return p.ID(), wait
	}
	if wait, ok := t.waiting[p.Name()]; ok {
		return p.Name(), wait
	}
	return "", nil
}

// Write transmits one frame on the LWP characteristic.
func (t *Transport) Write(ctx context.Context, conn transport.Connection, frame []byte) error {
	c, ok := conn.(*Conn)
	if !ok {
		return fmt.Errorf("%w: foreign connection type", transport.ErrDisconnected)
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return fmt.Errorf("%w: %s", transport.ErrDisconnected, c.addr)
	}
	if err := c.p.WriteCharacteristic(c.char, frame, true); err != nil {
		return fmt.Errorf("%w: write to %s: %v", transport.ErrTimeout, c.addr, err)
	}
	return nil
}

// Close drops one connection.
func (t *Transport) Close(conn transport.Connection) error {
	c, ok := conn.(*Conn)
	if !ok {
		return nil
	}
	t.mu.Lock()
	delete(t.conns, c.addr)
	t.mu.Unlock()

	c.p.Device().CancelConnection(c.p)
	c.shutdown()
	return nil
}

// CloseAll force-closes every connection still open.
func (t *Transport) CloseAll() (int, error) {
	t.mu.Lock()
	open := make([]*Conn, 0, len(t.conns))
	for addr, conn := range t.conns {
		open = append(open, conn)
		delete(t.conns, addr)
	}
	t.mu.Unlock()

	for _, c := range open {
		c.p.Device().CancelConnection(c.p)
		c.shutdown()
	}
	return len(open), nil
}

// Scan discovers LWP peripherals for the configured scan window and reports
// them through found. Used by the CLI, not by the lifecycle core.
func (t *Transport) Scan(ctx context.Context, found func(id, name string, rssi int)) error {
	select {
	case <-t.powered:
	case <-ctx.Done():
		return fmt.Errorf("%w: adapter not powered", transport.ErrConnection)
	}

	var mu sync.Mutex
	seen := make(map[string]bool)
	t.d.Handle(gatt.PeripheralDiscovered(func(p gatt.Peripheral, a *gatt.Advertisement, rssi int) {
		mu.Lock()
		defer mu.Unlock()
		if seen[p.ID()] {
			return
		}
		seen[p.ID()] = true
		name := p.Name()
		if name == "" {
			name = a.LocalName
		}
		found(p.ID(), name, rssi)
	}))

	t.d.Scan([]gatt.UUID{ServiceUUID}, false)
	defer t.d.StopScanning()

	timer := time.NewTimer(t.cfg.ScanTimeout)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
	return nil
}
