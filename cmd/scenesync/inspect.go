// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/scenesync/cmd/scenesync/cli"
	"github.com/bureau-foundation/scenesync/lib/codec"
	"github.com/bureau-foundation/scenesync/lib/scenefile"
	"github.com/bureau-foundation/scenesync/lib/store"
	"github.com/bureau-foundation/scenesync/lib/wire"
)

func (a *app) inspectCommand() *cli.Command {
	var (
		options storeOptions
		format  string
		diag    bool
	)
	return &cli.Command{
		Name:    "inspect",
		Summary: "List the entities in the store",
		Description: `List every entity in the configured room.

The table format shows one row per entity. The JSON format prints a
document with the room and the store fingerprint, which "scenesync
import" accepts back. With --diag each entity is printed in CBOR
diagnostic notation, exactly as the Redis and SQLite backends store it.`,
		Usage: "scenesync inspect [flags]",
		Examples: []cli.Example{
			{
				Description: "Show the scene in a SQLite store",
				Command:     "scenesync inspect --backend sqlite",
			},
			{
				Description: "Print the room as JSON",
				Command:     "scenesync inspect --format json --room lobby",
			},
		},
		Flags: func(flagSet *pflag.FlagSet) {
			options.register(flagSet)
			flagSet.StringVar(&format, "format", "auto", "output format: auto, table, or json")
			flagSet.BoolVar(&diag, "diag", false, "print entities in CBOR diagnostic notation")
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("inspect takes no positional arguments, got %q", args[0])
			}
			switch format {
			case "auto":
				format = "json"
				if cli.IsTerminal(a.stdout) {
					format = "table"
				}
			case "table", "json":
			default:
				return fmt.Errorf("unknown format %q (want auto, table, or json)", format)
			}

			ctx := context.Background()
			session, err := a.openSession(ctx, &options)
			if err != nil {
				return err
			}
			defer session.finish()

			entities, err := storeEntities(ctx, session.store)
			if err != nil {
				return err
			}
			if diag {
				return writeDiagnostic(a.stdout, entities)
			}
			fingerprint, err := wire.Fingerprint(entities)
			if err != nil {
				return err
			}
			if format == "json" {
				encoder := json.NewEncoder(a.stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(scenefile.Document{
					Room:        session.config.Store.Room,
					Fingerprint: fingerprint,
					Entities:    entities,
				})
			}
			return writeTable(a.stdout, entities, fingerprint)
		},
	}
}

// storeEntities returns the store's entities in id order.
func storeEntities(ctx context.Context, shared store.Store) ([]wire.Entity, error) {
	entries, err := shared.Entries(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading store: %w", err)
	}
	entities := make([]wire.Entity, 0, len(entries))
	for _, entry := range entries {
		entities = append(entities, entry.Entity)
	}
	return entities, nil
}

func writeTable(w io.Writer, entities []wire.Entity, fingerprint string) error {
	table := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
	fmt.Fprintln(table, "ID\tKIND\tVERSION\tORIGIN\tX\tY\tWIDTH\tHEIGHT\tFILL")
	for _, entity := range entities {
		fmt.Fprintf(table, "%s\t%s\t%d\t%s\t%g\t%g\t%g\t%g\t%s\n",
			entity.ID, entity.Kind, entity.Version, entity.Origin,
			entity.X, entity.Y, entity.Width, entity.Height, entity.Fill)
	}
	if err := table.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d entities, fingerprint %s\n", len(entities), fingerprint)
	return err
}

func writeDiagnostic(w io.Writer, entities []wire.Entity) error {
	for _, entity := range entities {
		data, err := codec.Marshal(entity)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", entity.ID, err)
		}
		notation, err := codec.Diagnose(data)
		if err != nil {
			return fmt.Errorf("diagnosing %s: %w", entity.ID, err)
		}
		if _, err := fmt.Fprintln(w, notation); err != nil {
			return err
		}
	}
	return nil
}
