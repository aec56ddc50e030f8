package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type page[T any] struct {
	Results []T `json:"results"`
}

// DecodeList accepts either a bare JSON array or a paginated {"results": [...]}
// envelope and returns the items. A null body yields an empty list.
func DecodeList[T any](raw []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []T{}, nil
	}

	switch trimmed[0] {
	case '[':
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("failed to decode list: %w", err)
		}
		return items, nil
	case '{':
		var p page[T]
		if err := json.Unmarshal(trimmed, &p); err != nil {
			return nil, fmt.Errorf("failed to decode paginated list: %w", err)
		}
		if p.Results == nil {
			return []T{}, nil
		}
		return p.Results, nil
	default:
		return nil, fmt.Errorf("unexpected list payload starting with %q", trimmed[0])
	}
}
