package docstore

import (
	"encoding/json"
	"fmt"
	"time"
)

// The SQL backends persist documents as JSON. Timestamps are wrapped as
// {"$ts": "<RFC3339Nano>"} so they decode back into time.Time.
const timestampKey = "$ts"

func encodeData(data Data) ([]byte, error) {
	b, err := json.Marshal(wrapTimes(data))
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return b, nil
}

func decodeData(b []byte) (Data, error) {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return unwrapTimes(raw).(map[string]any), nil
}

func wrapTimes(v any) any {
	switch val := v.(type) {
	case time.Time:
		return map[string]any{timestampKey: val.UTC().Format(time.RFC3339Nano)}
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = wrapTimes(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = wrapTimes(item)
		}
		return out
	default:
		return v
	}
}

func unwrapTimes(v any) any {
	switch val := v.(type) {
	case map[string]any:
		if len(val) == 1 {
			if s, ok := val[timestampKey].(string); ok {
				if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
					return t
				}
			}
		}
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = unwrapTimes(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = unwrapTimes(item)
		}
		return out
	default:
		return v
	}
}
