package mel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ParseMembership decodes a stored custom membership payload: a JSON array of
// equipment ids given as strings or integers. Blank, "null" and "[]" mean no
// membership. Anything else that does not decode returns ErrMalformedMembership.
func ParseMembership(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil, nil
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var items []any
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMembership, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", ErrMalformedMembership)
	}

	ids := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for i, item := range items {
		id, err := membershipID(item)
		if err != nil {
			return nil, fmt.Errorf("%w: element %d: %v", ErrMalformedMembership, i, err)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

func membershipID(item any) (string, error) {
	switch v := item.(type) {
	case string:
		id := strings.TrimSpace(v)
		if id == "" {
			return "", fmt.Errorf("empty id")
		}
		return id, nil
	case json.Number:
		n, err := strconv.ParseInt(v.String(), 10, 64)
		if err != nil {
			return "", fmt.Errorf("id %s is not an integer", v)
		}
		return strconv.FormatInt(n, 10), nil
	default:
		return "", fmt.Errorf("unsupported id type %T", item)
	}
}

// EncodeMembership renders ids in the canonical stored form. A nil or empty
// slice encodes as the empty string.
func EncodeMembership(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ids); err != nil {
		return ""
	}
	return strings.TrimSpace(buf.String())
}
