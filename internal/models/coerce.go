package models

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ToNumber coerces v the way a loosely typed client would: numbers pass
// through, numeric strings are parsed, everything else becomes 0.
func ToNumber(v any) float64 {
	switch n := v.(type) {
	case float64:
		return finite(n)
	case float32:
		return finite(float64(n))
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0
		}
		return finite(f)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return finite(f)
	case bool:
		if n {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// ToInt is ToNumber truncated toward zero.
func ToInt(v any) int {
	return int(math.Trunc(ToNumber(v)))
}

// ToString returns v when it is a string and "" otherwise.
func ToString(v any) string {
	s, _ := v.(string)
	return s
}

// ToBool accepts booleans and their string forms.
func ToBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, _ := strconv.ParseBool(b)
		return parsed
	default:
		return false
	}
}

// ToMap returns v as a field map, or nil.
func ToMap(v any) map[string]any {
	switch m := v.(type) {
	case map[string]any:
		return m
	case Document:
		return m
	default:
		return nil
	}
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
