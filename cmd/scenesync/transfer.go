// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/scenesync/cmd/scenesync/cli"
	"github.com/bureau-foundation/scenesync/lib/scenefile"
	"github.com/bureau-foundation/scenesync/lib/wire"
)

// importOrigin marks entities written by "scenesync import" when the
// configuration names no peer.
const importOrigin = "import"

func (a *app) exportCommand() *cli.Command {
	var (
		options  storeOptions
		output   string
		compress string
	)
	return &cli.Command{
		Name:    "export",
		Summary: "Write the room's entities to a file",
		Description: `Write every entity in the configured room to a file as a CBOR
sequence, optionally compressed with zstd or LZ4.`,
		Usage: "scenesync export [flags]",
		Examples: []cli.Example{
			{
				Description: "Back up a room with zstd compression",
				Command:     "scenesync export --room lobby --compress zstd -o lobby.cbor.zst",
			},
			{
				Description: "Copy a room between backends",
				Command:     "scenesync export --backend redis | scenesync import --backend postgres -",
			},
		},
		Flags: func(flagSet *pflag.FlagSet) {
			options.register(flagSet)
			flagSet.StringVarP(&output, "output", "o", "-", "output file, - for stdout")
			flagSet.StringVar(&compress, "compress", "none", "compression: none, zstd, or lz4")
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("export takes no positional arguments, got %q", args[0])
			}
			compression, err := scenefile.ParseCompression(compress)
			if err != nil {
				return err
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

			write := func(w io.Writer) error { return scenefile.Write(w, entities, compression) }
			if output == "-" {
				err = write(a.stdout)
			} else {
				err = writeFile(output, write)
			}
			if err != nil {
				return err
			}
			session.logger.Info("scene exported",
				"room", session.config.Store.Room,
				"entities", len(entities),
				"compression", compression,
			)
			return nil
		},
	}
}

func (a *app) importCommand() *cli.Command {
	var (
		options storeOptions
		format  string
	)
	return &cli.Command{
		Name:    "import",
		Summary: "Load entities from a file into the room",
		Description: `Write the entities in a file into the configured room.

The file may be a CBOR sequence from "scenesync export" (compressed or
not), a JSON array of entities, or the document printed by "scenesync
inspect --format json". JSON may contain comments and trailing commas.

Every imported entity is written with a version one past both its own
and the store's current version for that id, so connected peers accept
it. Entities with an unknown kind or missing required fields are
skipped with a warning.`,
		Usage: "scenesync import [flags] <file>",
		Examples: []cli.Example{
			{
				Description: "Restore a backup",
				Command:     "scenesync import --room lobby lobby.cbor.zst",
			},
			{
				Description: "Seed a room from hand-written JSON",
				Command:     "scenesync import --format json seed.jsonc",
			},
		},
		Flags: func(flagSet *pflag.FlagSet) {
			options.register(flagSet)
			flagSet.StringVar(&format, "format", "auto", "input format: auto, cbor, or json")
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("import takes exactly one file argument (- for stdin)")
			}
			inputFormat, err := scenefile.ParseFormat(format)
			if err != nil {
				return err
			}

			var r io.Reader = a.stdin
			if args[0] != "-" {
				file, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("opening input: %w", err)
				}
				defer file.Close()
				r = file
			}
			entities, err := scenefile.Read(r, inputFormat)
			if err != nil {
				return err
			}

			ctx := context.Background()
			session, err := a.openSession(ctx, &options)
			if err != nil {
				return err
			}
			defer session.finish()

			imported, err := a.importEntities(ctx, session, entities)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "imported %d of %d entities into room %s\n",
				imported, len(entities), session.config.Store.Room)
			return nil
		},
	}
}

func (a *app) importEntities(ctx context.Context, session *session, entities []wire.Entity) (int, error) {
	existing, err := storeEntities(ctx, session.store)
	if err != nil {
		return 0, err
	}
	versions := make(map[string]uint64, len(existing))
	for _, entity := range existing {
		versions[entity.ID] = entity.Version
	}

	origin := session.config.Peer.ID
	if origin == "" {
		origin = importOrigin
	}

	imported := 0
	for index, entity := range entities {
		entity = entity.Normalize()
		if err := entity.Validate(); err != nil {
			session.logger.Warn("skipping invalid entity", "index", index, "error", err)
			continue
		}
		if !entity.Kind.Known() {
			session.logger.Warn("skipping entity of unknown kind", "entity_id", entity.ID, "kind", entity.Kind)
			continue
		}
		entity.Version = max(entity.Version, versions[entity.ID]) + 1
		entity.Origin = origin
		if err := session.store.Set(ctx, entity.ID, entity); err != nil {
			return imported, fmt.Errorf("writing %s: %w", entity.ID, err)
		}
		versions[entity.ID] = entity.Version
		imported++
	}
	return imported, nil
}

// writeFile creates path and fills it with write, reporting a failed
// close as well as a failed write.
func writeFile(path string, write func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	if err := write(file); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing output: %w", err)
	}
	return nil
}
