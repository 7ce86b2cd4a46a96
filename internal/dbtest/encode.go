// Package dbtest builds small MMDB images in memory for tests. Writer
// produces well-formed databases with mmdbwriter. Image and Tree lay out
// bytes by hand for fixtures that are malformed or need an exact shape.
package dbtest

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// Kind numbers used in control bytes.
const (
	KindPointer   = 1
	KindString    = 2
	KindFloat64   = 3
	KindBytes     = 4
	KindUint16    = 5
	KindUint32    = 6
	KindMap       = 7
	KindInt32     = 8
	KindUint64    = 9
	KindUint128   = 10
	KindSlice     = 11
	KindContainer = 12
	KindEndMarker = 13
	KindBool      = 14
	KindFloat32   = 15
)

// Raw is copied into the output as is.
type Raw []byte

// KV is one entry of an ordered Map.
type KV struct {
	Key   string
	Value any
}

// Map is a map that is encoded in slice order.
type Map []KV

// With returns a copy of m with key set to v, replacing an existing entry.
func (m Map) With(key string, v any) Map {
	out := make(Map, 0, len(m)+1)
	replaced := false
	for _, kv := range m {
		if kv.Key == key {
			kv.Value = v
			replaced = true
		}
		out = append(out, kv)
	}
	if !replaced {
		out = append(out, KV{key, v})
	}
	return out
}

// Without returns a copy of m without key.
func (m Map) Without(key string) Map {
	out := make(Map, 0, len(m))
	for _, kv := range m {
		if kv.Key != key {
			out = append(out, kv)
		}
	}
	return out
}

// Control returns the control bytes for a field of kind with the given size.
func Control(kind int, size int) []byte {
	var out []byte
	var ext []byte
	if kind > KindMap {
		out = append(out, 0)
		ext = []byte{byte(kind - 7)}
	} else {
		out = append(out, byte(kind<<5))
	}

	var extra []byte
	switch {
	case size < 29:
		out[0] |= byte(size)
	case size < 29+256:
		out[0] |= 29
		extra = []byte{byte(size - 29)}
	case size < 285+65536:
		out[0] |= 30
		v := size - 285
		extra = []byte{byte(v >> 8), byte(v)}
	default:
		out[0] |= 31
		v := size - 65821
		extra = []byte{byte(v >> 16), byte(v >> 8), byte(v)}
	}
	out = append(out, ext...)
	return append(out, extra...)
}

// Pointer encodes a pointer to target, relative to the pointer base, using
// the smallest size class that fits.
func Pointer(target uint) []byte {
	switch {
	case target < 2048:
		return []byte{byte(KindPointer<<5) | byte(target>>8&0x7), byte(target)}
	case target < 526336:
		v := target - 2048
		return []byte{byte(KindPointer<<5) | 1<<3 | byte(v>>16&0x7), byte(v >> 8), byte(v)}
	case target < 526336+1<<27:
		v := target - 526336
		return []byte{byte(KindPointer<<5) | 2<<3 | byte(v>>24&0x7), byte(v >> 16), byte(v >> 8), byte(v)}
	default:
		out := []byte{byte(KindPointer<<5) | 3<<3, 0, 0, 0, 0}
		binary.BigEndian.PutUint32(out[1:], uint32(target))
		return out
	}
}

// Unsupported returns an empty field of a kind the reader rejects: 10
// (uint128), 12 (data cache container) or 13 (end marker).
func Unsupported(kind int) Raw {
	return Raw(Control(kind, 0))
}

// Encode serializes v. Supported inputs are string, []byte, uint16, uint32,
// uint64, int32, float64, float32, bool, []any, Map, map[string]any and Raw.
func Encode(v any) []byte {
	switch v := v.(type) {
	case Raw:
		return append([]byte(nil), v...)
	case string:
		return append(Control(KindString, len(v)), v...)
	case []byte:
		return append(Control(KindBytes, len(v)), v...)
	case uint16:
		return encodeUint(KindUint16, uint64(v))
	case uint32:
		return encodeUint(KindUint32, uint64(v))
	case uint64:
		return encodeUint(KindUint64, v)
	case int32:
		if v < 0 {
			b := make([]byte, 4)
			binary.BigEndian.PutUint32(b, uint32(v))
			return append(Control(KindInt32, 4), b...)
		}
		return encodeUint(KindInt32, uint64(v))
	case float64:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, math.Float64bits(v))
		return append(Control(KindFloat64, 8), b...)
	case float32:
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, math.Float32bits(v))
		return append(Control(KindFloat32, 4), b...)
	case bool:
		if v {
			return Control(KindBool, 1)
		}
		return Control(KindBool, 0)
	case []any:
		out := Control(KindSlice, len(v))
		for _, item := range v {
			out = append(out, Encode(item)...)
		}
		return out
	case Map:
		out := Control(KindMap, len(v))
		for _, kv := range v {
			out = append(out, Encode(kv.Key)...)
			out = append(out, Encode(kv.Value)...)
		}
		return out
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m := make(Map, 0, len(keys))
		for _, k := range keys {
			m = append(m, KV{k, v[k]})
		}
		return Encode(m)
	default:
		panic(fmt.Sprintf("dbtest: cannot encode %T", v))
	}
}

func encodeUint(kind int, v uint64) []byte {
	var b []byte
	for v > 0 {
		b = append([]byte{byte(v)}, b...)
		v >>= 8
	}
	return append(Control(kind, len(b)), b...)
}
