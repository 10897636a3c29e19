package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hub-control/hubcore/command"
	"github.com/hub-control/hubcore/config"
	"github.com/hub-control/hubcore/events"
	"github.com/hub-control/hubcore/transport"
)

// Orchestrator drives every registered hub through its lifecycle. It owns
// the shared command channel and the event hub, and hands the channel to
// each hub at connect time so one serialized writer covers the transport.
type Orchestrator struct {
	reg *Registry
	tr  transport.Transport
	cfg *config.Config
	ch  *command.Channel
	ev  *events.Hub
	log zerolog.Logger
}

// NewOrchestrator creates the orchestrator and its command channel.
func NewOrchestrator(reg *Registry, tr transport.Transport, cfg *config.Config, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		reg: reg,
		tr:  tr,
		cfg: cfg,
		ch:  command.NewChannel(tr, cfg, log),
		ev:  events.NewHub(),
		log: log.With().Str("component", "orchestrator").Logger(),
	}
}

// Channel exposes the shared command channel.
func (o *Orchestrator) Channel() *command.Channel { return o.ch }

// Events exposes the lifecycle event hub.
func (o *Orchestrator) Events() *events.Hub { return o.ev }

// Initialize connects and initializes every hub in registration order. A
// failure on any hub aborts the whole startup: later hubs are never
// connected, and the error propagates to the caller. Retry policy, if any,
// belongs to the caller.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	for _, h := range o.reg.Hubs() {
		h.setEvents(o.ev)

		connectCtx, cancel := context.WithTimeout(ctx, o.cfg.ConnectTimeout)
		err := h.Connect(connectCtx, o.tr, o.ch)
		cancel()
		if err != nil {
			return fmt.Errorf("startup aborted: %w", err)
		}

		if err := h.Initialize(ctx); err != nil {
			return fmt.Errorf("startup aborted: %w", err)
		}

		o.ev.Publish(events.Event{Type: "initialized", Hub: h.Name()})
	}
	return nil
}

// Run initializes every hub, executes the caller's program, and finalizes in
// a cleanup block so teardown happens exactly once even when the program
// fails. The program error wins over any finalize error.
func (o *Orchestrator) Run(ctx context.Context, program func(ctx context.Context) error) error {
	if err := o.Initialize(ctx); err != nil {
		return err
	}

	var once sync.Once
	finalize := func() {
		once.Do(func() {
			if err := o.Finalize(ctx); err != nil {
				o.log.Error().Err(err).Msg("finalize reported errors")
			}
		})
	}
	defer finalize()

	if program == nil {
		return nil
	}
	return program(ctx)
}

// Finalize drives every hub through finalize then disconnect, emits the
// port-info diagnostics for hubs that requested introspection, and closes
// out the command channel as a last-resort cleanup. One hub's failure never
// blocks the rest of teardown.
func (o *Orchestrator) Finalize(ctx context.Context) error {
	var firstErr error

	for _, h := range o.reg.Hubs() {
		if err := h.Finalize(ctx); err != nil {
			o.log.Warn().Str("hub", h.Name()).Err(err).Msg("finalize hook failed")
			if firstErr == nil {
				firstErr = err
			}
		}
		if err := h.Disconnect(ctx); err != nil {
			o.log.Warn().Str("hub", h.Name()).Err(err).Msg("disconnect failed")
			if firstErr == nil {
				firstErr = err
			}
		}
		o.ev.Publish(events.Event{Type: "finalized", Hub: h.Name()})
	}

	o.reportPortInfo()

	// Safety net: even when every hub already disconnected on its own.
	if _, err := o.ch.DisconnectAll(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Start is the deprecated all-in-one entry point: it runs setup to build the
// hubs, initializes them, spawns each hub's background run loop, awaits them
// all, and finalizes.
//
// Deprecated: use Run instead.
func (o *Orchestrator) Start(ctx context.Context, setup func(ctx context.Context) error) error {
	o.log.Warn().Msg("Start is deprecated, use Run instead")

	if setup != nil {
		if err := setup(ctx); err != nil {
			return err
		}
	}
	if err := o.Initialize(ctx); err != nil {
		return err
	}

	var once sync.Once
	finalize := func() {
		once.Do(func() {
			if err := o.Finalize(ctx); err != nil {
				o.log.Error().Err(err).Msg("finalize reported errors")
			}
		})
	}
	defer finalize()

	var wg sync.WaitGroup
	errs := make(chan error, o.reg.Len())
	for _, h := range o.reg.Hubs() {
		wg.Add(1)
		go func(h *Hub) {
			defer wg.Done()
			if err := h.Run(ctx); err != nil {
				errs <- fmt.Errorf("hub %q: %w", h.Name(), err)
			}
		}(h)
	}
	wg.Wait()
	close(errs)
	return <-errs
}

// reportPortInfo dumps recorded port metadata for every hub that requested
// introspection. Best-effort diagnostics: never blocks or fails teardown.
func (o *Orchestrator) reportPortInfo() {
	for _, h := range o.reg.Hubs() {
		if !h.QueryPortInfo() {
			continue
		}
		snapshot := h.PortInfoSnapshot()
		dump, err := json.Marshal(snapshot)
		if err != nil {
			continue
		}
		o.log.Info().Str("hub", h.Name()).RawJSON("ports", dump).Msg("port info")
	}
}
