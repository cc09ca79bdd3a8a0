package feature

import (
	"errors"
	"math"
	"testing"
)

func TestCoerceLenientDefaults(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want float64
	}{
		{"float", 3.5, 3.5},
		{"int", 42, 42},
		{"numeric string", "12.5", 12.5},
		{"padded string", " 7 ", 7},
		{"garbage string", "abc", 0},
		{"nil", nil, 0},
		{"bool true", true, 1},
		{"object", map[string]any{}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Coerce(tc.in); got != tc.want {
				t.Fatalf("Coerce(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestFromMapDefaultsMissingToZero(t *testing.T) {
	rec := FromMap(map[string]any{"count": 100.0, "bogus": 1.0})
	if rec.Get("count") != 100 {
		t.Fatalf("count = %v", rec.Get("count"))
	}
	if rec.Get("src_bytes") != 0 {
		t.Fatalf("src_bytes should default to 0, got %v", rec.Get("src_bytes"))
	}
	if _, ok := rec["bogus"]; ok {
		t.Fatal("non-required feature should be dropped")
	}
	if len(rec) != len(Required) {
		t.Fatalf("record has %d features, want %d", len(rec), len(Required))
	}
}

func TestMissing(t *testing.T) {
	raw := map[string]any{}
	for _, name := range Required {
		raw[name] = 0.0
	}
	if m := Missing(raw); m != nil {
		t.Fatalf("expected no missing features, got %v", m)
	}
	delete(raw, "serror_rate")
	delete(raw, "duration")
	m := Missing(raw)
	if len(m) != 2 || m[0] != "duration" || m[1] != "serror_rate" {
		t.Fatalf("missing = %v", m)
	}
}

func TestFromStringsRejectsGarbage(t *testing.T) {
	cells := map[string]string{}
	for _, name := range Required {
		cells[name] = "0"
	}
	if _, err := FromStrings(cells); err != nil {
		t.Fatalf("valid row: %v", err)
	}

	cells["src_bytes"] = "not-a-number"
	if _, err := FromStrings(cells); err == nil {
		t.Fatal("expected error for non-numeric cell")
	}

	cells["src_bytes"] = "0"
	delete(cells, "dst_bytes")
	_, err := FromStrings(cells)
	if !errors.Is(err, ErrMissingFeature) {
		t.Fatalf("err = %v, want ErrMissingFeature", err)
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		feature string
		raw     float64
		want    float64
	}{
		{"src_bytes", 100, 0.01},
		{"count", 2, 0.02},
		{"serror_rate", 0.001, 0.05},
		{"serror_rate", 1.0, 5.0},        // exactly at the clamp
		{"src_bytes", 10_000_000, 5.0},   // clamped high
		{"src_bytes", -10_000_000, -5.0}, // clamped low
		{"unknown_feature", 123, 0},
	}
	for _, tc := range cases {
		got := Normalize(tc.feature, tc.raw)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("Normalize(%s, %v) = %v, want %v", tc.feature, tc.raw, got, tc.want)
		}
	}
}
