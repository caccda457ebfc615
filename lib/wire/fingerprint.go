// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"cmp"
	"encoding/hex"
	"fmt"
	"slices"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/scenesync/lib/codec"
)

// Fingerprint hashes a set of entities into a short hex digest that is
// independent of input order. Entities are normalized first and the
// Origin field is cleared, so two peers holding the same scene agree
// on the fingerprint even when different peers wrote the entries.
func Fingerprint(entities []Entity) (string, error) {
	canonical := make([]Entity, len(entities))
	for i, entity := range entities {
		entity = entity.Normalize()
		entity.Origin = ""
		canonical[i] = entity
	}
	slices.SortFunc(canonical, func(a, b Entity) int { return cmp.Compare(a.ID, b.ID) })

	data, err := codec.Marshal(canonical)
	if err != nil {
		return "", fmt.Errorf("wire: encoding fingerprint input: %w", err)
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:16]), nil
}
