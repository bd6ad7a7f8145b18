package model

import (
	"math"
	"time"
)

// Flat-map conversion helpers shared by the DTO ToMap/FromMap pairs.
// Values coming back from a JSON payload column arrive as float64/string,
// so every reader coerces rather than type-asserts a single concrete type.

// Round6 rounds to 6 decimal places, the precision all numeric DTO fields
// are serialized with
func Round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// MapFloat reads a numeric field from a flat map, 0 if absent
func MapFloat(m map[string]interface{}, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// MapInt reads an integer field from a flat map, 0 if absent
func MapInt(m map[string]interface{}, key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// MapInt64 reads an int64 field from a flat map, 0 if absent
func MapInt64(m map[string]interface{}, key string) int64 {
	switch v := m[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// MapBool reads a boolean field from a flat map, false if absent
func MapBool(m map[string]interface{}, key string) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return false
}

// MapString reads a string field from a flat map, "" if absent
func MapString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// MapTime reads an RFC 3339 timestamp field from a flat map,
// the zero time if absent or unparseable
func MapTime(m map[string]interface{}, key string) time.Time {
	s := MapString(m, key)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
