// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/scenesync/cmd/scenesync/cli"
	"github.com/bureau-foundation/scenesync/lib/relay"
)

const shutdownTimeout = 5 * time.Second

func (a *app) relayCommand() *cli.Command {
	var (
		options storeOptions
		listen  string
	)
	return &cli.Command{
		Name:    "relay",
		Summary: "Serve rooms to peers using the relay backend",
		Description: `Run a relay server. Peers configured with store.backend: relay read
and write through it and watch its rooms over WebSocket.

The relay holds rooms in memory only: restarting it empties every
room, and connected peers then repopulate it from their own scenes as
they edit. Use a Redis, PostgreSQL, or Matrix store when the scene
must outlive the server.`,
		Usage: "scenesync relay [flags]",
		Examples: []cli.Example{
			{
				Description: "Serve on the default port",
				Command:     "scenesync relay --listen :7400",
			},
		},
		Flags: func(flagSet *pflag.FlagSet) {
			options.register(flagSet)
			flagSet.StringVar(&listen, "listen", "", "listen address (default store.relay.listen)")
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("relay takes no positional arguments, got %q", args[0])
			}
			cfg, err := options.load()
			if err != nil {
				return err
			}
			logger, err := cli.NewLogger(a.stderr, cfg.Logging)
			if err != nil {
				return err
			}
			if listen == "" {
				listen = cfg.Store.Relay.Listen
			}
			listener, err := net.Listen("tcp", listen)
			if err != nil {
				return fmt.Errorf("listening on %s: %w", listen, err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			server := relay.New(relay.Config{Logger: logger})
			httpServer := &http.Server{Handler: server, ReadHeaderTimeout: 10 * time.Second}
			logger.Info("relay listening", "address", listener.Addr().String())
			return serveUntilDone(ctx, httpServer, listener, server.Close)
		},
	}
}

// serveUntilDone serves on listener until ctx is done, then closes
// the long-lived connections with closeStreams and shuts the server
// down.
func serveUntilDone(ctx context.Context, server *http.Server, listener net.Listener, closeStreams func()) error {
	served := make(chan error, 1)
	go func() { served <- server.Serve(listener) }()

	select {
	case err := <-served:
		return err
	case <-ctx.Done():
	}

	// Shutdown does not wait for hijacked connections, so the
	// WebSocket streams are closed first.
	closeStreams()
	shutdownContext, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownContext); err != nil {
		return fmt.Errorf("shutting down relay: %w", err)
	}
	if err := <-served; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
