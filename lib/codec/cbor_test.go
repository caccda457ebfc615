// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

type sampleShape struct {
	ID      string  `json:"id"`
	Kind    string  `json:"kind"`
	Width   float64 `json:"width"`
	Stroke  string  `json:"stroke,omitempty"`
	Version uint64  `json:"version,omitempty"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := sampleShape{ID: "shape-1", Kind: "rectangle", Width: 120.5, Version: 3}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded sampleShape
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != original {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	first, err := Marshal(map[string]any{"b": 2, "a": 1, "c": "three"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for range 10 {
		again, err := Marshal(map[string]any{"c": "three", "a": 1, "b": 2})
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatal("map encoding is not deterministic")
		}
	}
}

func TestJSONTagsControlFieldNames(t *testing.T) {
	data, err := Marshal(sampleShape{ID: "x", Kind: "text"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	diagnostic, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if !strings.Contains(diagnostic, `"kind"`) {
		t.Errorf("diagnostic %s lacks the json field name", diagnostic)
	}
	if strings.Contains(diagnostic, `"stroke"`) {
		t.Errorf("diagnostic %s includes an omitempty field", diagnostic)
	}
}

func TestDecodeIntoAnyUsesStringKeys(t *testing.T) {
	data, err := Marshal(sampleShape{ID: "x"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, ok := decoded.(map[string]any); !ok {
		t.Fatalf("decoded type %T, want map[string]any", decoded)
	}
}

func TestEncoderDecoderSequence(t *testing.T) {
	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for _, id := range []string{"a", "b", "c"} {
		if err := encoder.Encode(sampleShape{ID: id}); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	decoder := NewDecoder(&buffer)
	var ids []string
	for {
		var shape sampleShape
		err := decoder.Decode(&shape)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		ids = append(ids, shape.ID)
	}
	if strings.Join(ids, ",") != "a,b,c" {
		t.Fatalf("decoded %v, want [a b c]", ids)
	}
}

func TestUnmarshalRejectsDuplicateKeys(t *testing.T) {
	// {"id": "a", "id": "b"}
	data := []byte{0xa2, 0x62, 'i', 'd', 0x61, 'a', 0x62, 'i', 'd', 0x61, 'b'}
	var shape sampleShape
	if err := Unmarshal(data, &shape); err == nil {
		t.Fatalf("duplicate key decoded as %+v", shape)
	}
}

func TestUnmarshalRejectsDeepNesting(t *testing.T) {
	data := append(bytes.Repeat([]byte{0x81}, maxNesting+1), 0x00)
	var decoded any
	if err := Unmarshal(data, &decoded); err == nil {
		t.Fatal("expected nesting limit error")
	}

	shallow := append(bytes.Repeat([]byte{0x81}, maxNesting-1), 0x00)
	if err := Unmarshal(shallow, &decoded); err != nil {
		t.Fatalf("nesting within the limit: %v", err)
	}
}
