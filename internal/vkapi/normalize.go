package vkapi

import (
	"github.com/goccy/go-json"
)

// ItemsVersion is the first API version that wraps collections in
// {"count": N, "items": [...]}.
const ItemsVersion = 4.93

// Record is one raw remote object.
type Record = map[string]any

// UnwrapItems returns the "items" collection of a mapping response when the
// effective version wraps collections, and raw unchanged otherwise.
func UnwrapItems(raw any, version float64) any {
	if version < ItemsVersion {
		return raw
	}
	if m, ok := raw.(map[string]any); ok {
		if items, ok := m["items"]; ok {
			return items
		}
	}
	return raw
}

// Normalize turns a decoded response into a sequence of records.
//
// A single mapping becomes a one-element sequence. In a sequence, a nested
// non-empty sequence contributes its first element and bare numbers (the
// count prefix some methods emit) are skipped.
func Normalize(raw any, version float64) ([]Record, error) {
	raw = UnwrapItems(raw, version)

	switch v := raw.(type) {
	case map[string]any:
		return []Record{v}, nil
	case []any:
		out := make([]Record, 0, len(v))
		for _, el := range v {
			if nested, ok := el.([]any); ok {
				if len(nested) == 0 {
					continue
				}
				el = nested[0]
			}
			switch item := el.(type) {
			case map[string]any:
				out = append(out, item)
			case json.Number, float64, int, int64:
				continue
			default:
				return nil, &MalformedError{Kind: NotRecord, Value: el}
			}
		}
		return out, nil
	default:
		return nil, &MalformedError{Kind: NotCollection, Value: raw}
	}
}
