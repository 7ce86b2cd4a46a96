package decoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueAccessors(t *testing.T) {
	s, ok := StringValue("DE").AsString()
	assert.True(t, ok)
	assert.Equal(t, "DE", s)

	_, ok = StringValue("DE").AsUint16()
	assert.False(t, ok, "kind mismatch")

	i, ok := Int32Value(-5).AsInt32()
	assert.True(t, ok)
	assert.Equal(t, int32(-5), i)

	f, ok := Float32Value(1.5).AsFloat32()
	assert.True(t, ok)
	assert.Equal(t, float32(1.5), f)

	b, ok := BoolValue(true).AsBool()
	assert.True(t, ok)
	assert.True(t, b)

	var zero Value
	assert.False(t, zero.IsValid())
	assert.Nil(t, zero.Interface())
	_, ok = zero.AsMap()
	assert.False(t, ok)
}

func TestMap(t *testing.T) {
	m := NewMap(2)
	require.True(t, m.Set("b", Uint32Value(2)))
	require.True(t, m.Set("a", Uint32Value(1)))
	require.False(t, m.Set("b", Uint32Value(3)), "duplicate key")

	assert.Equal(t, 2, m.Len())
	assert.Equal(t, []string{"b", "a"}, m.Keys())

	v, ok := m.Get("b")
	require.True(t, ok)
	n, _ := v.AsUint32()
	assert.Equal(t, uint32(2), n)

	_, ok = m.Get("c")
	assert.False(t, ok)

	var keys []string
	for k := range m.All() {
		keys = append(keys, k)
		break
	}
	assert.Equal(t, []string{"b"}, keys)

	var nilMap *Map
	assert.Zero(t, nilMap.Len())
	assert.Nil(t, nilMap.Keys())
	_, ok = nilMap.Get("a")
	assert.False(t, ok)
	for range nilMap.All() {
		t.Fatal("nil map has no entries")
	}
}

func TestValuePath(t *testing.T) {
	country := NewMap(1)
	country.Set("iso_code", StringValue("FR"))
	record := NewMap(2)
	record.Set("country", MapValue(country))
	record.Set("languages", SliceValue([]Value{StringValue("fr")}))
	v := MapValue(record)

	iso, ok := v.Path("country", "iso_code")
	require.True(t, ok)
	s, _ := iso.AsString()
	assert.Equal(t, "FR", s)

	self, ok := v.Path()
	require.True(t, ok)
	assert.Equal(t, KindMap, self.Kind())

	_, ok = v.Path("country", "names")
	assert.False(t, ok)
	_, ok = v.Path("languages", "0")
	assert.False(t, ok, "paths do not index slices")
	_, ok = v.Path("country", "iso_code", "x")
	assert.False(t, ok)

	assert.Equal(t, map[string]any{
		"country":   map[string]any{"iso_code": "FR"},
		"languages": []any{"fr"},
	}, v.Interface())
}
