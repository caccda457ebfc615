// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/scenesync/cmd/scenesync/cli"
	"github.com/bureau-foundation/scenesync/lib/clock"
	"github.com/bureau-foundation/scenesync/lib/scene"
	"github.com/bureau-foundation/scenesync/lib/scenesync"
)

func (a *app) watchCommand() *cli.Command {
	var (
		options       storeOptions
		statsInterval time.Duration
	)
	return &cli.Command{
		Name:    "watch",
		Summary: "Run a headless peer and log scene activity",
		Description: `Run a peer with an in-memory scene until interrupted.

The peer bootstraps from the store, applies every change other peers
make, and logs each scene event at debug level. Every --stats-interval
it logs the entity count, the scene fingerprint, and the engine
counters. Two watchers on the same room log the same fingerprint once
they have converged.`,
		Usage: "scenesync watch [flags]",
		Examples: []cli.Example{
			{
				Description: "Watch the default room of a Redis store",
				Command:     "scenesync watch --backend redis --room lobby",
			},
		},
		Flags: func(flagSet *pflag.FlagSet) {
			options.register(flagSet)
			flagSet.DurationVar(&statsInterval, "stats-interval", 30*time.Second, "how often to log sync status")
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("watch takes no positional arguments, got %q", args[0])
			}
			if statsInterval <= 0 {
				return fmt.Errorf("--stats-interval must be positive")
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.watch(ctx, &options, statsInterval)
		},
	}
}

func (a *app) watch(ctx context.Context, options *storeOptions, statsInterval time.Duration) error {
	session, err := a.openSession(ctx, options)
	if err != nil {
		return err
	}
	defer session.finish()
	logger := session.logger

	renderer := scene.NewMemory()
	renderer.Subscribe(scene.ObserverFunc(func(event scene.Event) {
		logger.Debug("scene event",
			"type", event.Type,
			"id", event.Entity.ID,
			"kind", event.Entity.Kind,
			"version", event.Entity.Version,
		)
	}))

	syncConfig, err := engineConfig(session.config, renderer, session.store, logger)
	if err != nil {
		return err
	}
	engine, err := scenesync.New(syncConfig)
	if err != nil {
		return err
	}
	report, err := engine.Start(ctx)
	if err != nil {
		return err
	}
	defer engine.Stop()

	logger.Info("watching scene",
		"room", session.config.Store.Room,
		"backend", session.config.Store.Backend,
		"peer", engine.PeerID(),
		"bootstrap", report.String(),
	)

	ticker := clock.Real().NewTicker(statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down", "pending", engine.Pending())
			return nil
		case <-ticker.C:
			fingerprint, err := scenesync.SceneFingerprint(renderer)
			if err != nil {
				logger.Warn("computing scene fingerprint", "error", err)
			}
			stats := engine.Stats()
			logger.Info("sync status",
				"entities", renderer.Len(),
				"fingerprint", fingerprint,
				"propagations", stats.Propagations,
				"deletes", stats.Deletes,
				"coalesced", stats.Coalesced,
				"suppressed", stats.Suppressed,
				"passes", stats.Passes,
				"stale", stats.Stale,
				"skipped", stats.Skipped,
			)
		}
	}
}
