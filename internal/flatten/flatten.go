// Package flatten turns nested JSON values into single-level records whose
// keys are dotted paths. Objects are expanded; arrays are kept whole as their
// re-encoded JSON text.
package flatten

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// Record is an ordered mapping of dotted keys to leaf values. Values are
// string, float64, bool, nil or the JSON text of an array.
type Record struct {
	keys   []string
	values map[string]any
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{values: make(map[string]any)}
}

// Set stores value under key. The first Set of a key fixes its position.
func (r *Record) Set(key string, value any) {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Get returns the value stored under key.
func (r *Record) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Keys returns the keys in order of first appearance.
func (r *Record) Keys() []string {
	return append([]string(nil), r.keys...)
}

// Len reports the number of keys.
func (r *Record) Len() int {
	return len(r.keys)
}

// Map returns an unordered copy of the record.
func (r *Record) Map() map[string]any {
	out := make(map[string]any, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// Flatten flattens an already decoded JSON value (the shapes produced by
// encoding/json into an any). Map keys are visited in sorted order.
// A nil or non-object top-level value yields an empty record.
func Flatten(value any, prefix string) *Record {
	rec := NewRecord()
	prefix = strings.TrimRight(prefix, ".")
	if prefix == "" {
		if m, ok := value.(map[string]any); ok {
			walkValue(rec, m, "")
		}
		return rec
	}
	if value != nil {
		walkValue(rec, value, prefix)
	}
	return rec
}

func walkValue(rec *Record, value any, prefix string) {
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walkValue(rec, v[k], join(prefix, k))
		}
	case []any:
		text := "[]"
		if data, err := json.Marshal(v); err == nil {
			if normalized, err := arrayText(data); err == nil {
				text = normalized
			}
		}
		store(rec, prefix, text)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			store(rec, prefix, v.String())
			return
		}
		store(rec, prefix, f)
	case int:
		store(rec, prefix, float64(v))
	case int64:
		store(rec, prefix, float64(v))
	default:
		store(rec, prefix, v)
	}
}

// FlattenJSON flattens raw JSON text, keeping document key order.
// Empty input or a top-level null yields an empty record. Top-level values
// other than objects have no key to live under and also yield an empty record
// unless prefix is set.
func FlattenJSON(raw []byte, prefix string) (*Record, error) {
	rec := NewRecord()
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return rec, nil
	}
	if !gjson.ValidBytes(trimmed) {
		return nil, fmt.Errorf("invalid JSON body")
	}

	root := gjson.ParseBytes(trimmed)
	prefix = strings.TrimRight(prefix, ".")
	if prefix == "" && !root.IsObject() {
		return rec, nil
	}
	if root.Type == gjson.Null {
		return rec, nil
	}
	if err := walkResult(rec, root, prefix); err != nil {
		return nil, err
	}
	return rec, nil
}

// ErrNotObject is returned by FlattenObject for a body that is valid JSON
// but neither an object nor null.
var ErrNotObject = errors.New("JSON body is not an object")

// FlattenObject flattens a request body that must hold a JSON object. Empty
// input and null are treated as an empty object.
func FlattenObject(raw []byte) (*Record, error) {
	rec, err := FlattenJSON(raw, "")
	if err != nil {
		return nil, err
	}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 {
		root := gjson.ParseBytes(trimmed)
		if !root.IsObject() && root.Type != gjson.Null {
			return nil, ErrNotObject
		}
	}
	return rec, nil
}

func walkResult(rec *Record, res gjson.Result, prefix string) error {
	switch {
	case res.IsObject():
		var walkErr error
		res.ForEach(func(key, value gjson.Result) bool {
			walkErr = walkResult(rec, value, join(prefix, key.String()))
			return walkErr == nil
		})
		return walkErr
	case res.IsArray():
		text, err := arrayText([]byte(res.Raw))
		if err != nil {
			return fmt.Errorf("encode array at %q: %w", prefix, err)
		}
		store(rec, prefix, text)
	case res.Type == gjson.String:
		store(rec, prefix, res.String())
	case res.Type == gjson.Number:
		store(rec, prefix, res.Float())
	case res.Type == gjson.True:
		store(rec, prefix, true)
	case res.Type == gjson.False:
		store(rec, prefix, false)
	default:
		store(rec, prefix, nil)
	}
	return nil
}

// arrayText re-encodes a JSON array in canonical form: numbers as their
// shortest float64 text, non-ASCII and HTML characters left unescaped, and
// object keys sorted.
func arrayText(raw []byte) (string, error) {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// store drops values that would end up under an empty key.
func store(rec *Record, prefix string, value any) {
	key := strings.TrimRight(prefix, ".")
	if key == "" {
		return
	}
	rec.Set(key, value)
}
