// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/bureau-foundation/scenesync/lib/codec"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		name  string
		want  Kind
		known bool
	}{
		{"rectangle", KindRectangle, true},
		{"rect", KindRectangle, true},
		{"circle", KindEllipse, true},
		{"line", KindSegment, true},
		{"text", KindText, true},
		{"hexagon", Kind("hexagon"), false},
		{"", Kind(""), false},
	}
	for _, test := range tests {
		got, known := ParseKind(test.name)
		if got != test.want || known != test.known {
			t.Errorf("ParseKind(%q) = (%q, %v), want (%q, %v)", test.name, got, known, test.want, test.known)
		}
	}
}

func TestNormalizeDefaults(t *testing.T) {
	text := Entity{ID: "t", Kind: KindText, Fill: "#000"}.Normalize()
	if text.ScaleX != 1 || text.ScaleY != 1 {
		t.Errorf("scale = (%v, %v), want (1, 1)", text.ScaleX, text.ScaleY)
	}
	if text.Text != DefaultText || text.FontSize != DefaultFontSize || text.FontFamily != DefaultFontFamily {
		t.Errorf("text defaults = (%q, %v, %q)", text.Text, text.FontSize, text.FontFamily)
	}

	segment := Entity{ID: "s", Kind: "line", Fill: "#ff0000"}.Normalize()
	if segment.Kind != KindSegment {
		t.Errorf("kind = %q, want %q", segment.Kind, KindSegment)
	}
	if segment.Stroke != "#ff0000" || segment.StrokeWidth != DefaultSegmentStrokeSize {
		t.Errorf("segment stroke = (%q, %v), want (#ff0000, 2)", segment.Stroke, segment.StrokeWidth)
	}

	// Explicit values survive.
	custom := Entity{ID: "c", Kind: KindText, Fill: "#000", Text: "hello", FontSize: 32, ScaleX: 2}.Normalize()
	if custom.Text != "hello" || custom.FontSize != 32 || custom.ScaleX != 2 {
		t.Errorf("explicit fields overwritten: %+v", custom)
	}

	// Non-text kinds get no text defaults.
	rectangle := Entity{ID: "r", Kind: KindRectangle, Fill: "#fff"}.Normalize()
	if rectangle.Text != "" || rectangle.FontSize != 0 {
		t.Errorf("rectangle acquired text defaults: %+v", rectangle)
	}
}

func TestValidate(t *testing.T) {
	if err := (Entity{ID: "a", Kind: KindRectangle, Fill: "#fff"}).Validate(); err != nil {
		t.Fatalf("Validate valid entity: %v", err)
	}

	err := Entity{FontSize: -1}.Validate()
	if err == nil {
		t.Fatal("Validate accepted an empty entity")
	}
	for _, want := range []string{"id is required", "kind is required", "fill is required", "fontSize"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestJSONFieldNames(t *testing.T) {
	data, err := json.Marshal(Entity{ID: "a", Kind: KindText, Fill: "#000", FontSize: 32, FontFamily: "Mono"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, want := range []string{`"fontSize":32`, `"fontFamily":"Mono"`, `"kind":"text"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("JSON %s lacks %s", data, want)
		}
	}
	if strings.Contains(string(data), "scaleX") {
		t.Errorf("JSON %s includes an omitted default", data)
	}
}

func TestCBORPreservesSegmentEndpoints(t *testing.T) {
	original := Entity{ID: "s", Kind: KindSegment, Fill: "#000", X1: 10, Y1: 10, X2: 50, Y2: 80, Version: 4}
	data, err := codec.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded Entity
	if err := codec.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != original {
		t.Fatalf("decoded %+v, want %+v", decoded, original)
	}
}

func TestFingerprintOrderIndependent(t *testing.T) {
	a := Entity{ID: "a", Kind: KindRectangle, Fill: "#fff", Version: 1, Origin: "peer-1"}
	b := Entity{ID: "b", Kind: "circle", Fill: "#000", Version: 2}

	first, err := Fingerprint([]Entity{a, b})
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}

	b.Kind = KindEllipse
	b.ScaleX, b.ScaleY = 1, 1
	a.Origin = "peer-2"
	second, err := Fingerprint([]Entity{b, a})
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if first != second {
		t.Fatalf("fingerprints differ: %s vs %s", first, second)
	}

	a.Version = 2
	third, err := Fingerprint([]Entity{a, b})
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if third == first {
		t.Fatal("fingerprint did not change with the version")
	}
}
