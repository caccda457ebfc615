// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package scenefile reads and writes scenes outside of any store.
//
// The export format is a CBOR sequence: wire entities encoded back to
// back with no framing, optionally wrapped in a zstd or LZ4 stream.
// Read also accepts JSON, with comments and trailing commas allowed
// (JSONC), either as an array of entities or as the [Document] object
// that `scenesync inspect --format json` prints.
package scenefile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/scenesync/lib/codec"
	"github.com/bureau-foundation/scenesync/lib/wire"
)

// Format is the encoding of a scene file after decompression.
type Format int

const (
	// FormatAuto picks JSON when the content starts with '[' or '{'
	// and CBOR otherwise.
	FormatAuto Format = iota
	FormatCBOR
	FormatJSON
)

// ParseFormat converts a flag value to a Format.
func ParseFormat(name string) (Format, error) {
	switch name {
	case "", "auto":
		return FormatAuto, nil
	case "cbor":
		return FormatCBOR, nil
	case "json", "jsonc":
		return FormatJSON, nil
	default:
		return FormatAuto, fmt.Errorf("scenefile: unknown format %q (want auto, cbor, or json)", name)
	}
}

// Document is the JSON form of a scene with its identifying metadata.
type Document struct {
	Room        string        `json:"room,omitempty"`
	Fingerprint string        `json:"fingerprint,omitempty"`
	Entities    []wire.Entity `json:"entities"`
}

// Write encodes entities to w as a CBOR sequence.
func Write(w io.Writer, entities []wire.Entity, compression Compression) error {
	stream, err := compressWriter(w, compression)
	if err != nil {
		return err
	}
	encoder := codec.NewEncoder(stream)
	for _, entity := range entities {
		if err := encoder.Encode(entity); err != nil {
			stream.Close()
			return fmt.Errorf("scenefile: encoding entity %s: %w", entity.ID, err)
		}
	}
	if err := stream.Close(); err != nil {
		return fmt.Errorf("scenefile: finishing %s stream: %w", compression, err)
	}
	return nil
}

// Read decodes every entity in r. Entities are returned as stored;
// callers normalize and validate.
func Read(r io.Reader, format Format) ([]wire.Entity, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("scenefile: reading: %w", err)
	}
	data, err = decompress(data)
	if err != nil {
		return nil, err
	}

	if format == FormatAuto {
		format = FormatCBOR
		if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{' || trimmed[0] == '/') {
			format = FormatJSON
		}
	}
	if format == FormatJSON {
		return readJSON(data)
	}
	return readCBOR(data)
}

func readCBOR(data []byte) ([]wire.Entity, error) {
	var entities []wire.Entity
	decoder := codec.NewDecoder(bytes.NewReader(data))
	for {
		var entity wire.Entity
		err := decoder.Decode(&entity)
		if errors.Is(err, io.EOF) {
			return entities, nil
		}
		if err != nil {
			return nil, fmt.Errorf("scenefile: decoding entity %d: %w", len(entities), err)
		}
		entities = append(entities, entity)
	}
}

func readJSON(data []byte) ([]wire.Entity, error) {
	stripped := bytes.TrimSpace(jsonc.ToJSON(data))
	if len(stripped) > 0 && stripped[0] == '{' {
		var document Document
		if err := json.Unmarshal(stripped, &document); err != nil {
			return nil, fmt.Errorf("scenefile: parsing scene document: %w", err)
		}
		return document.Entities, nil
	}
	var entities []wire.Entity
	if err := json.Unmarshal(stripped, &entities); err != nil {
		return nil, fmt.Errorf("scenefile: parsing entity list: %w", err)
	}
	return entities, nil
}
