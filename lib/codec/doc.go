// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the CBOR configuration shared by every scenesync
// component that stores or exchanges wire entities in binary form.
//
// Two formats are in use:
//
//   - JSON where the substrate speaks JSON: Matrix state event
//     content, Postgres JSONB columns, JSONC scene files, and CLI
//     output.
//   - CBOR everywhere else: Redis hash values and change messages,
//     SQLite blobs, export files, and the input to scene fingerprints.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2), so the
// same entity always encodes to the same bytes. Fingerprints depend on
// this.
//
// Types shared between both formats carry only `json` struct tags;
// fxamacker/cbor falls back to them when `cbor` tags are absent.
package codec
