package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Payload is the structured body of an Entry and the parameter map of a
// CapabilityCall. Values inside follow the JSON value model (see Canonicalize).
type Payload = map[string]any

// Canonicalize validates v against the JSON value model and returns an owned,
// canonical copy of it. The canonical form contains only:
//
//	nil, bool, string, int64, float64, []any, map[string]any
//
// Integers that fit in int64 become int64. Floats with no fractional part
// inside ±2^53 also become int64, so 1.0 is stored as int64(1) and -0.0 as
// int64(0), the same values a JSON round trip produces. Every other number
// becomes float64. Values that are not JSON-compatible natively (structs,
// typed slices and maps) are marshaled through encoding/json and decoded back.
// NaN, ±Inf, channels, functions and cyclic structures are rejected.
//
// The returned value never aliases memory reachable from v.
func Canonicalize(v any) (any, error) {
	return canonicalize(v, 0)
}

// maxDepth bounds nesting so that self-referencing maps and slices fail
// instead of recursing forever.
const maxDepth = 256

func canonicalize(v any, depth int) (any, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("value nested deeper than %d levels (cyclic?)", maxDepth)
	}
	switch x := v.(type) {
	case nil:
		return nil, nil
	case bool:
		return x, nil
	case string:
		return x, nil
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint:
		return canonicalUint(uint64(x)), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		return canonicalUint(x), nil
	case float32:
		return canonicalFloat(float64(x))
	case float64:
		return canonicalFloat(x)
	case json.Number:
		return canonicalNumber(x)
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			c, err := canonicalize(item, depth+1)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out[i] = c
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			c, err := canonicalize(item, depth+1)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			out[k] = c
		}
		return out, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return DecodeValue(data)
	}
}

// CanonicalizePayload is Canonicalize for string-keyed maps. A nil payload
// becomes an empty map.
func CanonicalizePayload(p Payload) (Payload, error) {
	if p == nil {
		return Payload{}, nil
	}
	c, err := Canonicalize(p)
	if err != nil {
		return nil, err
	}
	return c.(map[string]any), nil
}

// DecodeValue parses JSON text into the canonical value model.
func DecodeValue(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected trailing data after JSON value")
	}
	return Canonicalize(raw)
}

// DecodePayload parses a JSON object into a canonical Payload.
func DecodePayload(data []byte) (Payload, error) {
	v, err := DecodeValue(data)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected JSON object, got %T", v)
	}
	return m, nil
}

// EncodeValue renders a canonical value as compact JSON text.
func EncodeValue(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Clone deep-copies a value already in canonical form. It is the cheap
// counterpart to Canonicalize used on the way out of a store.
func Clone(v any) any {
	switch x := v.(type) {
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = Clone(item)
		}
		return out
	case map[string]any:
		return ClonePayload(x)
	default:
		return x
	}
}

// ClonePayload deep-copies a canonical payload. A nil payload clones to nil.
func ClonePayload(p Payload) Payload {
	if p == nil {
		return nil
	}
	out := make(map[string]any, len(p))
	for k, item := range p {
		out[k] = Clone(item)
	}
	return out
}

func canonicalUint(u uint64) any {
	if u > math.MaxInt64 {
		return float64(u)
	}
	return int64(u)
}

func canonicalFloat(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("unsupported float value %v", f)
	}
	if f == math.Trunc(f) && f >= -(1<<53) && f <= 1<<53 {
		return int64(f), nil
	}
	return f, nil
}

func canonicalNumber(n json.Number) (any, error) {
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("invalid number %q: %w", n.String(), err)
	}
	return canonicalFloat(f)
}
