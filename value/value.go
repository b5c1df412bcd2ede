// Package value implements RuntimeValue, the single data representation
// shared by variable bindings, event payloads, repository entities, and
// the plugin JSON exchange format.
package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Kind discriminates the variants of a RuntimeValue.
type Kind int

const (
	// KindNull is the null/absent value.
	KindNull Kind = iota
	// KindBool is a boolean value.
	KindBool
	// KindInt is a 64-bit signed integer.
	KindInt
	// KindFloat is an IEEE-754 double.
	KindFloat
	// KindString is a UTF-8 string.
	KindString
	// KindSequence is an ordered list of RuntimeValue.
	KindSequence
	// KindMapping is a string-keyed map of RuntimeValue.
	KindMapping
)

// TypeLabel names of each Kind, used verbatim in the plugin qualifier
// invocation protocol's "type" field (spec §4.9).
func (k Kind) TypeLabel() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindInt:
		return "integer"
	case KindFloat:
		return "double"
	case KindString:
		return "string"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	default:
		return "unknown"
	}
}

// Value is a closed sum type over null, boolean, integer, double,
// string, sequence, and mapping. It is used uniformly as variable
// contents and as the plugin exchange format. A tagged struct (rather
// than a bare interface{}) keeps booleans from silently degrading to
// integers on a JSON round trip, which a naive map[string]interface{}
// unmarshal into float64 would otherwise do.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	seq  []Value
	m    map[string]Value
	keys []string // insertion order of m, for deterministic iteration/printing
}

// Null is the null RuntimeValue.
var Null = Value{kind: KindNull}

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int wraps a 64-bit integer.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float wraps a double.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// String wraps a UTF-8 string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Sequence wraps an ordered list.
func Sequence(items ...Value) Value { return Value{kind: KindSequence, seq: items} }

// NewMapping returns an empty mapping builder.
func NewMapping() Value {
	return Value{kind: KindMapping, m: map[string]Value{}}
}

// Kind returns the value's variant.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Bool returns the boolean payload; ok is false if v is not KindBool.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// Int returns the integer payload; ok is false if v is not KindInt.
func (v Value) Int() (int64, bool) { return v.i, v.kind == KindInt }

// Float returns the float payload, widening an integer if necessary.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	default:
		return 0, false
	}
}

// Str returns the string payload; ok is false if v is not KindString.
func (v Value) Str() (string, bool) { return v.s, v.kind == KindString }

// Items returns the sequence payload; ok is false if v is not KindSequence.
func (v Value) Items() ([]Value, bool) { return v.seq, v.kind == KindSequence }

// Field returns a mapping's value for key, and whether key was present.
func (v Value) Field(key string) (Value, bool) {
	if v.kind != KindMapping {
		return Null, false
	}
	val, ok := v.m[key]
	return val, ok
}

// Keys returns a mapping's keys in insertion order.
func (v Value) Keys() []string {
	if v.kind != KindMapping {
		return nil
	}
	out := make([]string, len(v.keys))
	copy(out, v.keys)
	return out
}

// WithField returns a copy of the mapping with key set to val. Safe to
// call on the zero Value of NewMapping(); panics if v is not a mapping.
func (v Value) WithField(key string, val Value) Value {
	if v.kind != KindMapping {
		panic("value: WithField on non-mapping")
	}
	m := make(map[string]Value, len(v.m)+1)
	for k, existing := range v.m {
		m[k] = existing
	}
	keys := v.keys
	if _, exists := v.m[key]; !exists {
		keys = append(append([]string{}, v.keys...), key)
	}
	m[key] = val
	return Value{kind: KindMapping, m: m, keys: keys}
}

// Len returns the number of elements in a sequence or mapping, else 0.
func (v Value) Len() int {
	switch v.kind {
	case KindSequence:
		return len(v.seq)
	case KindMapping:
		return len(v.m)
	default:
		return 0
	}
}

// Equal reports deep structural equality.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindInt:
		return a.i == b.i
	case KindFloat:
		return a.f == b.f
	case KindString:
		return a.s == b.s
	case KindSequence:
		if len(a.seq) != len(b.seq) {
			return false
		}
		for i := range a.seq {
			if !Equal(a.seq[i], b.seq[i]) {
				return false
			}
		}
		return true
	case KindMapping:
		if len(a.m) != len(b.m) {
			return false
		}
		for k, av := range a.m {
			bv, ok := b.m[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// MarshalJSON implements json.Marshaler. Booleans are emitted as JSON
// booleans, never as 0/1, so a round trip through JSON never degrades
// them to integers.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(v.b)
	case KindInt:
		return json.Marshal(v.i)
	case KindFloat:
		return json.Marshal(v.f)
	case KindString:
		return json.Marshal(v.s)
	case KindSequence:
		buf := bytes.NewBufferString("[")
		for i, item := range v.seq {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := item.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case KindMapping:
		buf := bytes.NewBufferString("{")
		keys := v.orderedKeys()
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			buf.Write(kb)
			buf.WriteByte(':')
			vb, err := v.m[k].MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("value: unknown kind %d", v.kind)
	}
}

func (v Value) orderedKeys() []string {
	if len(v.keys) == len(v.m) {
		return v.keys
	}
	keys := make([]string, 0, len(v.m))
	for k := range v.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// UnmarshalJSON implements json.Unmarshaler using json.Number to keep
// integral JSON numbers as KindInt rather than always widening to
// KindFloat, and decodes true/false as KindBool rather than float64.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*v = FromInterface(raw)
	return nil
}

// FromInterface converts a decoded-with-UseNumber JSON value (or a
// plain Go value built from bool/int64/float64/string/[]interface{}/
// map[string]interface{}) into a Value.
func FromInterface(raw interface{}) Value {
	switch t := raw.(type) {
	case nil:
		return Null
	case bool:
		return Bool(t)
	case string:
		return String(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i)
		}
		f, _ := t.Float64()
		return Float(f)
	case int:
		return Int(int64(t))
	case int64:
		return Int(t)
	case float64:
		return Float(t)
	case []interface{}:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = FromInterface(item)
		}
		return Sequence(items...)
	case map[string]interface{}:
		out := NewMapping()
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = out.WithField(k, FromInterface(t[k]))
		}
		return out
	case Value:
		return t
	default:
		return Null
	}
}
