package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// FiniteNonNegative returns v as a float when it is a finite number >= 0,
// and 0 otherwise. Numeric strings are accepted, with an optional
// trailing percent sign ("91.2%").
func FiniteNonNegative(v any) float64 {
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}

// Count is FiniteNonNegative truncated to an int.
func Count(v any) int {
	f := FiniteNonNegative(v)
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(f)
}

// Object returns v when it is a JSON object, else an empty map.
func Object(v any) map[string]any {
	if m, ok := v.(map[string]any); ok && m != nil {
		return m
	}
	return map[string]any{}
}

// Array returns v when it is a JSON array, else an empty slice.
func Array(v any) []any {
	if a, ok := v.([]any); ok && a != nil {
		return a
	}
	return []any{}
}

// String returns v when it is a string. Numbers are formatted; anything
// else yields "".
func String(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// Strings keeps the string elements of a JSON array, in order.
func Strings(v any) []string {
	arr := Array(v)
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Counts maps every entry of a JSON object through Count.
func Counts(v any) map[string]int {
	obj := Object(v)
	out := make(map[string]int, len(obj))
	for k, val := range obj {
		out[k] = Count(val)
	}
	return out
}

// Floats maps every entry of a JSON object through FiniteNonNegative.
func Floats(v any) map[string]float64 {
	obj := Object(v)
	out := make(map[string]float64, len(obj))
	for k, val := range obj {
		out[k] = FiniteNonNegative(val)
	}
	return out
}

// First returns the first key of obj holding a non-nil value.
func First(obj map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := obj[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// SortedKeys returns the keys of m in lexical order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case int32:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(t)
		s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func describe(v any) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%T", v)
}
