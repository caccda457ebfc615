// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/scenesync/cmd/scenesync/cli"
	"github.com/bureau-foundation/scenesync/lib/scene"
	"github.com/bureau-foundation/scenesync/lib/scenesync"
)

func (a *app) clearCommand() *cli.Command {
	var (
		options storeOptions
		yes     bool
	)
	return &cli.Command{
		Name:    "clear",
		Summary: "Delete every entity in the room",
		Description: `Delete every entity in the configured room.

Connected peers remove the entities from their scenes as the deletions
arrive. Requires --yes.`,
		Usage: "scenesync clear --yes [flags]",
		Flags: func(flagSet *pflag.FlagSet) {
			options.register(flagSet)
			flagSet.BoolVar(&yes, "yes", false, "confirm deleting the room's contents")
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("clear takes no positional arguments, got %q", args[0])
			}
			if !yes {
				return fmt.Errorf("clear deletes the whole room for every peer; pass --yes to confirm")
			}

			ctx := context.Background()
			session, err := a.openSession(ctx, &options)
			if err != nil {
				return err
			}
			defer session.finish()

			// Clear goes through an engine so the deletions take the
			// same path as a user clearing a connected scene.
			syncConfig, err := engineConfig(session.config, scene.NewMemory(), session.store, session.logger)
			if err != nil {
				return err
			}
			engine, err := scenesync.New(syncConfig)
			if err != nil {
				return err
			}
			if _, err := engine.Start(ctx); err != nil {
				return err
			}
			defer engine.Stop()

			deleted, err := engine.Clear()
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "cleared %d entities from room %s\n", deleted, session.config.Store.Room)
			return nil
		},
	}
}
