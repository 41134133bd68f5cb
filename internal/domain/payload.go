package domain

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// Payload is the custom data attached to a notification. Push providers only
// carry string values, so any JSON value is accepted and kept as its string
// form: strings verbatim, everything else as compact JSON text.
type Payload map[string]string

func (p *Payload) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*p = nil
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("data must be a JSON object: %w", err)
	}
	out := make(Payload, len(raw))
	for k, v := range raw {
		v = bytes.TrimSpace(v)
		switch {
		case bytes.Equal(v, []byte("null")):
			continue
		case len(v) > 0 && v[0] == '"':
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return fmt.Errorf("data.%s: %w", k, err)
			}
			out[k] = s
		default:
			var buf bytes.Buffer
			if err := json.Compact(&buf, v); err != nil {
				return fmt.Errorf("data.%s: %w", k, err)
			}
			out[k] = buf.String()
		}
	}
	*p = out
	return nil
}

// Merge returns a new payload holding base overlaid with p. Keys in p win.
func (p Payload) Merge(base Payload) Payload {
	out := make(Payload, len(base)+len(p))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range p {
		out[k] = v
	}
	return out
}
