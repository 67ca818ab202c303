package docstore

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Number converts any numeric value to float64.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// Strings converts a list value to []string, dropping non-string elements.
func Strings(v any) []string {
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...)
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Maps converts a list value to a slice of field maps, dropping non-map elements.
func Maps(v any) []Data {
	list, ok := v.([]any)
	if !ok {
		if typed, ok := v.([]Data); ok {
			return typed
		}
		return nil
	}
	out := make([]Data, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// normalize deep-copies a value into the canonical document shape: numbers as
// float64, lists as []any, maps as map[string]any, times in UTC. now replaces
// ServerTimestamp.
func normalize(v any, now time.Time) (any, error) {
	switch val := v.(type) {
	case nil, bool, string, float64:
		return val, nil
	case serverTimestamp:
		return now.UTC(), nil
	case time.Time:
		return val.UTC(), nil
	case float32, int, int32, int64:
		n, _ := Number(val)
		return n, nil
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			n, err := normalize(item, now)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case []Data:
		out := make([]any, len(val))
		for i, item := range val {
			n, err := normalize(item, now)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			n, err := normalize(item, now)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", k, err)
			}
			out[k] = n
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

func normalizeData(data Data, now time.Time) (Data, error) {
	n, err := normalize(map[string]any(data), now)
	if err != nil {
		return nil, err
	}
	return n.(map[string]any), nil
}

func mergeData(dst, src Data) Data {
	out := make(Data, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		out[k] = v
	}
	return out
}

// typeRank follows Firestore's cross-type ordering.
func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64, float32, int, int32, int64:
		return 2
	case time.Time:
		return 3
	case string:
		return 4
	case []any:
		return 5
	case map[string]any:
		return 6
	default:
		return 7
	}
}

func compareValues(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch av := a.(type) {
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		default:
			return 1
		}
	case time.Time:
		return av.Compare(b.(time.Time))
	case string:
		return strings.Compare(av, b.(string))
	}
	if an, ok := Number(a); ok {
		bn, _ := Number(b)
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		}
	}
	return 0
}

// applyQuery filters, orders and limits snapshots in memory. Backends that
// cannot push ordering down to their engine share this implementation so
// they all agree on ordering semantics.
func applyQuery(docs []Snapshot, q Query) []Snapshot {
	out := make([]Snapshot, 0, len(docs))
	for _, d := range docs {
		if q.OrderBy != "" {
			if _, ok := d.Data[q.OrderBy]; !ok {
				continue
			}
		}
		out = append(out, d)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if q.OrderBy != "" {
			c := compareValues(out[i].Data[q.OrderBy], out[j].Data[q.OrderBy])
			if c != 0 {
				if q.Direction == Desc {
					return c > 0
				}
				return c < 0
			}
		}
		if q.Direction == Desc && q.OrderBy != "" {
			return out[i].Ref.ID > out[j].Ref.ID
		}
		return out[i].Ref.ID < out[j].Ref.ID
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}
