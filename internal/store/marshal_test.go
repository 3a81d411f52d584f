package store

import (
	"encoding/json"
	"testing"
)

func TestMarshalDetails_Empty(t *testing.T) {
	for _, m := range []map[string]any{nil, {}} {
		got, err := marshalDetails(m)
		if err != nil {
			t.Fatalf("marshalDetails(%v) failed: %v", m, err)
		}
		if got != "{}" {
			t.Errorf("marshalDetails(%v) = %q, want %q", m, got, "{}")
		}
	}
}

func TestMarshalDetails_SortsKeys(t *testing.T) {
	m := map[string]any{
		"process_var": 0.25,
		"min_count":   0.5,
		"n_grid":      40,
	}

	got, err := marshalDetails(m)
	if err != nil {
		t.Fatalf("marshalDetails() failed: %v", err)
	}

	want := `{"min_count":0.5,"n_grid":40,"process_var":0.25}`
	if got != want {
		t.Errorf("marshalDetails() = %q, want %q", got, want)
	}
}

func TestMarshalDetails_NoHTMLEscaping(t *testing.T) {
	m := map[string]any{"input": "data/<scrape>&run.json"}

	got, err := marshalDetails(m)
	if err != nil {
		t.Fatalf("marshalDetails() failed: %v", err)
	}

	want := `{"input":"data/<scrape>&run.json"}`
	if got != want {
		t.Errorf("marshalDetails() = %q, want %q", got, want)
	}
}

func TestUnmarshalDetails_Empty(t *testing.T) {
	for _, data := range []string{"", "{}"} {
		got, err := unmarshalDetails(data)
		if err != nil {
			t.Fatalf("unmarshalDetails(%q) failed: %v", data, err)
		}
		if got == nil {
			t.Fatalf("unmarshalDetails(%q) = nil, want empty map", data)
		}
		if len(got) != 0 {
			t.Errorf("unmarshalDetails(%q) = %v, want empty map", data, got)
		}
	}
}

func TestUnmarshalDetails_LargeIntegers(t *testing.T) {
	// Values beyond 2^53 must not round through float64
	got, err := unmarshalDetails(`{"seed":18446744073709551615}`)
	if err != nil {
		t.Fatalf("unmarshalDetails() failed: %v", err)
	}

	n, ok := got["seed"].(json.Number)
	if !ok {
		t.Fatalf("seed decoded as %T, want json.Number", got["seed"])
	}
	if n.String() != "18446744073709551615" {
		t.Errorf("seed = %q, want %q", n.String(), "18446744073709551615")
	}
}

func TestUnmarshalDetails_Malformed(t *testing.T) {
	if _, err := unmarshalDetails(`{"broken":`); err == nil {
		t.Error("expected error for malformed JSON, got nil")
	}
}

func TestDetails_RoundTrip(t *testing.T) {
	m := map[string]any{
		"process_var": 0.25,
		"workers":     4,
	}

	stored, err := marshalDetails(m)
	if err != nil {
		t.Fatalf("marshalDetails() failed: %v", err)
	}

	got, err := unmarshalDetails(stored)
	if err != nil {
		t.Fatalf("unmarshalDetails() failed: %v", err)
	}

	if got["process_var"] != json.Number("0.25") {
		t.Errorf("process_var = %v, want 0.25", got["process_var"])
	}
	if got["workers"] != json.Number("4") {
		t.Errorf("workers = %v, want 4", got["workers"])
	}
}
