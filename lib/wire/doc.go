// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire defines the transport and storage form of one
// synchronized scene entity.
//
// An Entity is a flat value: whole-entity writes overwrite every field
// at once, so there is no partial-field merge and no nested state. The
// same struct is encoded as JSON (Matrix state events, Postgres JSONB,
// scene files) and as deterministic CBOR (Redis, SQLite, exports).
//
// Optional fields are read with defaults applied by Normalize: scale
// factors default to 1, angle and version to 0, and text entities to
// "Text" in 20pt Arial. A zero value is indistinguishable from an
// absent one, so a scale factor of exactly 0 also reads as 1.
package wire
