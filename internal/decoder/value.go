package decoder

import "iter"

// Value is one decoded data section field. The zero Value has kind
// KindExtended and reports false from every accessor.
type Value struct {
	kind Kind
	str  string
	raw  []byte
	num  uint64
	flt  float64
	list []Value
	m    *Map
}

// StringValue returns a String value.
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// BytesValue returns a Bytes value.
func BytesValue(b []byte) Value { return Value{kind: KindBytes, raw: b} }

// Uint16Value returns a Uint16 value.
func Uint16Value(v uint16) Value { return Value{kind: KindUint16, num: uint64(v)} }

// Uint32Value returns a Uint32 value.
func Uint32Value(v uint32) Value { return Value{kind: KindUint32, num: uint64(v)} }

// Uint64Value returns a Uint64 value.
func Uint64Value(v uint64) Value { return Value{kind: KindUint64, num: v} }

// Int32Value returns an Int32 value.
func Int32Value(v int32) Value { return Value{kind: KindInt32, num: uint64(uint32(v))} }

// Float64Value returns a Float64 value.
func Float64Value(v float64) Value { return Value{kind: KindFloat64, flt: v} }

// Float32Value returns a Float32 value.
func Float32Value(v float32) Value { return Value{kind: KindFloat32, flt: float64(v)} }

// BoolValue returns a Bool value.
func BoolValue(v bool) Value {
	val := Value{kind: KindBool}
	if v {
		val.num = 1
	}
	return val
}

// SliceValue returns a Slice value.
func SliceValue(items []Value) Value { return Value{kind: KindSlice, list: items} }

// MapValue returns a Map value.
func MapValue(m *Map) Value { return Value{kind: KindMap, m: m} }

// Kind returns the kind of the value.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v holds a decoded value.
func (v Value) IsValid() bool { return v.kind.IsSupported() }

// AsString returns the string held by v.
func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }

// AsBytes returns the bytes held by v.
func (v Value) AsBytes() ([]byte, bool) { return v.raw, v.kind == KindBytes }

// AsUint16 returns the uint16 held by v.
func (v Value) AsUint16() (uint16, bool) { return uint16(v.num), v.kind == KindUint16 }

// AsUint32 returns the uint32 held by v.
func (v Value) AsUint32() (uint32, bool) { return uint32(v.num), v.kind == KindUint32 }

// AsUint64 returns the uint64 held by v.
func (v Value) AsUint64() (uint64, bool) { return v.num, v.kind == KindUint64 }

// AsInt32 returns the int32 held by v.
func (v Value) AsInt32() (int32, bool) { return int32(uint32(v.num)), v.kind == KindInt32 }

// AsFloat64 returns the float64 held by v.
func (v Value) AsFloat64() (float64, bool) { return v.flt, v.kind == KindFloat64 }

// AsFloat32 returns the float32 held by v.
func (v Value) AsFloat32() (float32, bool) { return float32(v.flt), v.kind == KindFloat32 }

// AsBool returns the bool held by v.
func (v Value) AsBool() (bool, bool) { return v.num != 0, v.kind == KindBool }

// AsSlice returns the elements held by v.
func (v Value) AsSlice() ([]Value, bool) { return v.list, v.kind == KindSlice }

// AsMap returns the map held by v.
func (v Value) AsMap() (*Map, bool) { return v.m, v.kind == KindMap && v.m != nil }

// Path follows keys through nested maps. It returns false as soon as a step
// is not a map or lacks the key.
func (v Value) Path(keys ...string) (Value, bool) {
	cur := v
	for _, key := range keys {
		m, ok := cur.AsMap()
		if !ok {
			return Value{}, false
		}
		if cur, ok = m.Get(key); !ok {
			return Value{}, false
		}
	}
	return cur, true
}

// Interface converts v into plain Go values: map[string]any, []any, string,
// []byte and the matching numeric types. Invalid values become nil.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindBytes:
		return v.raw
	case KindUint16:
		return uint16(v.num)
	case KindUint32:
		return uint32(v.num)
	case KindUint64:
		return v.num
	case KindInt32:
		return int32(uint32(v.num))
	case KindFloat64:
		return v.flt
	case KindFloat32:
		return float32(v.flt)
	case KindBool:
		return v.num != 0
	case KindSlice:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	case KindMap:
		out := make(map[string]any, v.m.Len())
		for key, item := range v.m.All() {
			out[key] = item.Interface()
		}
		return out
	default:
		return nil
	}
}

// Map is a string keyed map that remembers insertion order.
type Map struct {
	keys   []string
	values []Value
	index  map[string]int
}

// NewMap returns an empty map with room for n entries.
func NewMap(n int) *Map {
	return &Map{
		keys:   make([]string, 0, n),
		values: make([]Value, 0, n),
		index:  make(map[string]int, n),
	}
}

// Set appends key with value. It returns false, leaving the map unchanged,
// if key is already present.
func (m *Map) Set(key string, value Value) bool {
	if _, ok := m.index[key]; ok {
		return false
	}
	m.index[key] = len(m.keys)
	m.keys = append(m.keys, key)
	m.values = append(m.values, value)
	return true
}

// Len returns the number of entries.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Get returns the value stored under key.
func (m *Map) Get(key string) (Value, bool) {
	if m == nil {
		return Value{}, false
	}
	i, ok := m.index[key]
	if !ok {
		return Value{}, false
	}
	return m.values[i], true
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.keys...)
}

// All iterates over the entries in insertion order.
func (m *Map) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		if m == nil {
			return
		}
		for i, key := range m.keys {
			if !yield(key, m.values[i]) {
				return
			}
		}
	}
}
