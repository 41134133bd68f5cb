package roster

import (
	"bytes"
	"strings"

	"github.com/goccy/go-json"
)

type decodeError struct{ msg string }

func (e *decodeError) Error() string { return "decode roster: " + e.msg }

type envelope struct {
	Status json.RawMessage `json:"status"`
	Data   []entry         `json:"data"`
}

type entry struct {
	UserID json.RawMessage `json:"user_id"`
}

// Decode parses a roster document into normalized user ids. Two shapes are
// accepted: the API envelope {"status": true, "data": [{"user_id": ...}]} and a
// bare array of entries, as stored in snapshots. user_id may be a JSON string
// or number; entries without a usable id are dropped and duplicates collapse.
func Decode(b []byte) ([]string, error) {
	b = bytes.TrimSpace(b)
	var entries []entry
	if len(b) > 0 && b[0] == '[' {
		if err := json.Unmarshal(b, &entries); err != nil {
			return nil, &decodeError{msg: err.Error()}
		}
	} else {
		var env envelope
		if err := json.Unmarshal(b, &env); err != nil {
			return nil, &decodeError{msg: err.Error()}
		}
		if !truthy(env.Status) {
			return nil, &decodeError{msg: "status is not successful"}
		}
		if env.Data == nil {
			return nil, &decodeError{msg: "data is not an array"}
		}
		entries = env.Data
	}

	seen := make(map[string]struct{}, len(entries))
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		id := NormalizeID(e.UserID)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// NormalizeID renders a raw user_id as the canonical recipient id: strings are
// trimmed, numbers keep their literal text, anything else is rejected.
func NormalizeID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch c := raw[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return strings.TrimSpace(s)
	case c == '-' || (c >= '0' && c <= '9'):
		return string(raw)
	default:
		return ""
	}
}

func truthy(raw json.RawMessage) bool {
	switch strings.ToLower(strings.Trim(string(bytes.TrimSpace(raw)), `"`)) {
	case "true", "1", "ok", "success":
		return true
	}
	return false
}
