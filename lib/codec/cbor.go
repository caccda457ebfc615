// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

// Bounds on decoded input. Records come from shared stores any peer
// can write, and an entity is a flat map of about twenty fields, so a
// scene file holding a few hundred thousand entities is the largest
// legitimate array.
const (
	maxNesting  = 16
	maxMapPairs = 1024
	maxElements = 1 << 20
)

func init() {
	encOptions := cbor.CoreDetEncOptions()
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	encoder, err := encOptions.EncMode()
	if err != nil {
		panic("codec: CBOR encoder: " + err.Error())
	}

	decoder, err := cbor.DecOptions{
		// map[string]any rather than map[interface{}]interface{}, so
		// untyped values print and re-encode as JSON.
		DefaultMapType:   reflect.TypeOf(map[string]any(nil)),
		TextUnmarshaler:  cbor.TextUnmarshalerTextString,
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
		MaxNestedLevels:  maxNesting,
		MaxMapPairs:      maxMapPairs,
		MaxArrayElements: maxElements,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder: " + err.Error())
	}
	encMode, decMode = encoder, decoder
}

// Marshal encodes v using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v. Unknown fields are ignored; a
// map with a repeated key is rejected, so two readers can never
// disagree about which value of a duplicated field wins.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Encoder writes a CBOR sequence.
type Encoder = cbor.Encoder

// Decoder reads a CBOR sequence.
type Decoder = cbor.Decoder

// NewEncoder returns an encoder writing deterministic CBOR to w.
func NewEncoder(w io.Writer) *Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder returns a decoder reading CBOR items from r.
func NewDecoder(r io.Reader) *Decoder {
	return decMode.NewDecoder(r)
}

// Diagnose returns the RFC 8949 diagnostic notation for data. Used by
// the CLI to show raw store values.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
