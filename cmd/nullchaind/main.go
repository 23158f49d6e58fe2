package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/cometbft/cometbft/abci/server"

	"cosmossdk.io/log"

	"nullsociety/chain/internal/node"
	"nullsociety/chain/internal/store"
)

func main() {
	var (
		home      = flag.String("home", ".nullchain", "app home directory (stores live under <home>/data)")
		addr      = flag.String("addr", "tcp://127.0.0.1:26658", "ABCI listen address")
		transport = flag.String("transport", "socket", "ABCI transport (socket|grpc)")
	)
	flag.Parse()

	logger := log.NewLogger(os.Stdout)

	world, err := store.Open(filepath.Join(*home, "data", "world"))
	if err != nil {
		fatal("open world store: %v", err)
	}
	defer func() { _ = world.Close() }()

	events, err := store.OpenEvents(filepath.Join(*home, "data", "events"))
	if err != nil {
		fatal("open event store: %v", err)
	}
	defer func() { _ = events.Close() }()

	genesis, err := node.LoadGenesis(filepath.Join(*home, "genesis.json"))
	if err != nil {
		fatal("load genesis: %v", err)
	}

	app, err := node.New(world, events, genesis, logger)
	if err != nil {
		fatal("init app: %v", err)
	}

	srv, err := server.NewServer(*addr, *transport, app)
	if err != nil {
		fatal("start abci server: %v", err)
	}
	if err := srv.Start(); err != nil {
		fatal("abci server start: %v", err)
	}
	defer func() { _ = srv.Stop() }()

	logger.Info("node started", "addr", *addr, "home", *home)

	// Wait for signal.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}

func fatal(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
