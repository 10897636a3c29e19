// Package main implements the hubcore diagnostics tool.
//
// hubctl scan            discover nearby hubs advertising the LWP service
// hubctl ports <name>    connect to one hub and dump its port metadata
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/hub-control/hubcore/config"
	"github.com/hub-control/hubcore/hub"
	"github.com/hub-control/hubcore/logging"
	"github.com/hub-control/hubcore/transport/gattble"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "hubctl: configuration: %v\n", err)
		os.Exit(1)
	}
	log := logging.Init(cfg.Log, "hubctl")
	log.Info().Str("version", version).Msg("starting")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tr, err := gattble.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("ble transport unavailable")
	}

	switch os.Args[1] {
	case "scan":
		err = runScan(ctx, tr)
	case "ports":
		if len(os.Args) < 3 {
			usage()
			os.Exit(2)
		}
		err = runPorts(ctx, cfg, tr, log, os.Args[2])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}

// runScan prints every LWP peripheral discovered during the scan window.
func runScan(ctx context.Context, tr *gattble.Transport) error {
	fmt.Println("scanning for hubs...")
	return tr.Scan(ctx, func(id, name string, rssi int) {
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Printf("  %-36s  %-24s  rssi %d\n", id, name, rssi)
	})
}

// runPorts connects to one hub with introspection enabled, lets the setup
// handshake record port metadata, and dumps the snapshot on teardown.
func runPorts(ctx context.Context, cfg *config.Config, tr *gattble.Transport, log zerolog.Logger, address string) error {
	reg := hub.NewRegistry()
	_, err := hub.NewBuilder(hub.KindPoweredUp, address).
		QueryPortInfo().
		Build(reg)
	if err != nil {
		return err
	}

	orch := hub.NewOrchestrator(reg, tr, cfg, log)
	return orch.Run(ctx, nil)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: hubctl scan | hubctl ports <name-or-id>")
}
