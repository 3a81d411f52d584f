package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// marshalDetails converts a params or summary map to JSON TEXT for
// storage. Go's json.Marshal sorts map keys alphabetically, so equal
// maps always produce identical stored text. HTML escaping is disabled
// so file paths with special characters round-trip verbatim.
func marshalDetails(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return "", fmt.Errorf("marshal details: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalDetails parses stored JSON TEXT back into a map. Numbers
// decode via json.Number to avoid float64 precision loss on large
// integer values.
func unmarshalDetails(data string) (map[string]any, error) {
	if data == "" || data == "{}" {
		return map[string]any{}, nil
	}

	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()

	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("unmarshal details: %w", err)
	}
	return m, nil
}
