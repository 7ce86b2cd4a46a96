package decoder

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peerwatch/geoipdb/internal/dberrors"
	"github.com/peerwatch/geoipdb/internal/dbtest"
)

// decodeHex decodes the single field in hexStr and checks that all of it
// was consumed.
func decodeHex(t *testing.T, hexStr string) Value {
	t.Helper()
	buf, err := hex.DecodeString(hexStr)
	require.NoError(t, err, "Failed to decode hex string: %s", hexStr)
	return decodeAll(t, buf)
}

func decodeAll(t *testing.T, buf []byte) Value {
	t.Helper()
	d := NewDataDecoder(buf, 0)
	v, next, err := d.Decode(0)
	require.NoError(t, err)
	require.Equal(t, uint(len(buf)), next, "offset was not advanced past the field")
	return v
}

func decodeErr(t *testing.T, buf []byte) error {
	t.Helper()
	d := NewDataDecoder(buf, 0)
	_, _, err := d.Decode(0)
	require.Error(t, err)
	return err
}

// Helper function to create reasonable test names from potentially long hex strings.
func makeTestName(hexStr string) string {
	if len(hexStr) <= 20 {
		return hexStr
	}
	return hexStr[:16] + "..." + hexStr[len(hexStr)-4:]
}

func TestDecodeBool(t *testing.T) {
	tests := map[string]bool{
		"0007": false,
		"0107": true,
		"0507": true,
	}

	for hexStr, expected := range tests {
		t.Run(hexStr, func(t *testing.T) {
			v := decodeHex(t, hexStr)
			result, ok := v.AsBool()
			require.True(t, ok)
			require.Equal(t, expected, result)
		})
	}
}

func TestDecodeDouble(t *testing.T) {
	tests := map[string]float64{
		"680000000000000000": 0.0,
		"683FE0000000000000": 0.5,
		"68400921FB54442EEA": 3.14159265359,
		"68405EC00000000000": 123.0,
		"6841D000000007F8F4": 1073741824.12457,
		"68BFE0000000000000": -0.5,
		"68C00921FB54442EEA": -3.14159265359,
		"68C1D000000007F8F4": -1073741824.12457,
	}

	for hexStr, expected := range tests {
		t.Run(hexStr, func(t *testing.T) {
			result, ok := decodeHex(t, hexStr).AsFloat64()
			require.True(t, ok)
			if expected == 0 {
				require.InDelta(t, expected, result, 0)
			} else {
				require.InEpsilon(t, expected, result, 1e-15)
			}
		})
	}
}

func TestDecodeFloat(t *testing.T) {
	tests := map[string]float32{
		"040800000000": float32(0.0),
		"04083F800000": float32(1.0),
		"04083F8CCCCD": float32(1.1),
		"04084048F5C3": float32(3.14),
		"0408461C3FF6": float32(9999.99),
		"0408BF800000": float32(-1.0),
		"0408BF8CCCCD": float32(-1.1),
		"0408C048F5C3": -float32(3.14),
		"0408C61C3FF6": float32(-9999.99),
	}

	for hexStr, expected := range tests {
		t.Run(hexStr, func(t *testing.T) {
			result, ok := decodeHex(t, hexStr).AsFloat32()
			require.True(t, ok)
			if expected == 0 {
				require.InDelta(t, expected, result, 0)
			} else {
				require.InEpsilon(t, expected, result, 1e-6)
			}
		})
	}
}

func TestDecodeFloatSizes(t *testing.T) {
	for _, hexStr := range []string{"6700000000000000", "69000000000000000000", "0308000000", "0508000000000000"} {
		t.Run(hexStr, func(t *testing.T) {
			buf, err := hex.DecodeString(hexStr)
			require.NoError(t, err)
			err = decodeErr(t, buf)
			var dbErr dberrors.InvalidDatabaseError
			require.ErrorAs(t, err, &dbErr)
			assert.Contains(t, err.Error(), "size of")
		})
	}
}

func TestDecodeInt32(t *testing.T) {
	tests := map[string]int32{
		"0001":         int32(0),
		"0401ffffffff": int32(-1),
		"0101ff":       int32(255),
		"0401ffffff01": int32(-255),
		"020101f4":     int32(500),
		"0401fffffe0c": int32(-500),
		"0201ffff":     int32(65535),
		"0401ffff0001": int32(-65535),
		"0301ffffff":   int32(16777215),
		"0401ff000001": int32(-16777215),
		"04017fffffff": int32(2147483647),
		"040180000001": int32(-2147483647),
	}

	for hexStr, expected := range tests {
		t.Run(hexStr, func(t *testing.T) {
			result, ok := decodeHex(t, hexStr).AsInt32()
			require.True(t, ok)
			require.Equal(t, expected, result)
		})
	}
}

func TestDecodeUint16(t *testing.T) {
	tests := map[string]uint16{
		"a0":     uint16(0),
		"a1ff":   uint16(255),
		"a201f4": uint16(500),
		"a22a78": uint16(10872),
		"a2ffff": uint16(65535),
	}

	for hexStr, expected := range tests {
		t.Run(hexStr, func(t *testing.T) {
			result, ok := decodeHex(t, hexStr).AsUint16()
			require.True(t, ok)
			require.Equal(t, expected, result)
		})
	}
}

func TestDecodeUint32(t *testing.T) {
	tests := map[string]uint32{
		"c0":         uint32(0),
		"c1ff":       uint32(255),
		"c201f4":     uint32(500),
		"c22a78":     uint32(10872),
		"c2ffff":     uint32(65535),
		"c3ffffff":   uint32(16777215),
		"c4ffffffff": uint32(4294967295),
	}

	for hexStr, expected := range tests {
		t.Run(hexStr, func(t *testing.T) {
			result, ok := decodeHex(t, hexStr).AsUint32()
			require.True(t, ok)
			require.Equal(t, expected, result)
		})
	}
}

func TestDecodeUint64(t *testing.T) {
	ctrlByte := "02"

	tests := map[string]uint64{
		"00" + ctrlByte:                      uint64(0),
		"02" + ctrlByte + "01f4":             uint64(500),
		"02" + ctrlByte + "2a78":             uint64(10872),
		"08" + ctrlByte + "ffffffffffffffff": uint64(18446744073709551615),
	}

	for hexStr, expected := range tests {
		t.Run(hexStr, func(t *testing.T) {
			result, ok := decodeHex(t, hexStr).AsUint64()
			require.True(t, ok)
			require.Equal(t, expected, result)
		})
	}
}

func TestDecodeUintTooLarge(t *testing.T) {
	tests := map[string]string{
		"a3000000":             "Uint16 size of 3",
		"c50000000000":         "Uint32 size of 5",
		"09020000000000000000": "Uint64 size of 9",
		"05010000000000":       "Int32 size of 5",
	}
	for hexStr, msg := range tests {
		t.Run(hexStr, func(t *testing.T) {
			buf, err := hex.DecodeString(hexStr)
			require.NoError(t, err)
			assert.ErrorContains(t, decodeErr(t, buf), msg)
		})
	}
}

var testStrings = map[string]string{
	"40":       "",
	"4131":     "1",
	"43E4BABA": "人",
	"5b313233343536373839303132333435363738393031323334353637":         "123456789012345678901234567",
	"5c31323334353637383930313233343536373839303132333435363738":       "1234567890123456789012345678",
	"5d003132333435363738393031323334353637383930313233343536373839":   "12345678901234567890123456789",
	"5d01313233343536373839303132333435363738393031323334353637383930": "123456789012345678901234567890",
	"5e00d7" + strings.Repeat("78", 500):                               strings.Repeat("x", 500),
	"5e06b3" + strings.Repeat("78", 2000):                              strings.Repeat("x", 2000),
	"5f001053" + strings.Repeat("78", 70000):                           strings.Repeat("x", 70000),
}

func TestDecodeString(t *testing.T) {
	for hexStr, expected := range testStrings {
		t.Run(makeTestName(hexStr), func(t *testing.T) {
			result, ok := decodeHex(t, hexStr).AsString()
			require.True(t, ok)
			require.Equal(t, expected, result)
		})
	}
}

func TestDecodeByte(t *testing.T) {
	for key, val := range testStrings {
		oldCtrl, err := hex.DecodeString(key[0:2])
		require.NoError(t, err)
		newCtrl := (oldCtrl[0] & 0x1f) | (byte(KindBytes) << 5)
		hexStr := hex.EncodeToString([]byte{newCtrl}) + key[2:]

		t.Run(makeTestName(hexStr), func(t *testing.T) {
			result, ok := decodeHex(t, hexStr).AsBytes()
			require.True(t, ok)
			require.Equal(t, []byte(val), result)
		})
	}
}

func TestDecodeBytesDoesNotAlias(t *testing.T) {
	buf := dbtest.Encode([]byte{1, 2, 3})
	result, ok := decodeAll(t, buf).AsBytes()
	require.True(t, ok)
	buf[len(buf)-1] = 9
	assert.Equal(t, []byte{1, 2, 3}, result)
}

func TestDecodeMap(t *testing.T) {
	tests := map[string]map[string]any{
		"e0":                             {},
		"e142656e43466f6f":               {"en": "Foo"},
		"e242656e43466f6f427a6843e4baba": {"en": "Foo", "zh": "人"},
		"e1446e616d65e242656e43466f6f427a6843e4baba": {
			"name": map[string]any{"en": "Foo", "zh": "人"},
		},
		"e1496c616e677561676573020442656e427a68": {
			"languages": []any{"en", "zh"},
		},
	}

	for hexStr, expected := range tests {
		t.Run(makeTestName(hexStr), func(t *testing.T) {
			v := decodeHex(t, hexStr)
			require.Equal(t, KindMap, v.Kind())
			require.Equal(t, expected, v.Interface())
		})
	}
}

func TestDecodeMapKeepsInsertionOrder(t *testing.T) {
	buf := dbtest.Encode(dbtest.Map{{Key: "zz", Value: "1"}, {Key: "aa", Value: "2"}, {Key: "mm", Value: "3"}})
	m, ok := decodeAll(t, buf).AsMap()
	require.True(t, ok)
	assert.Equal(t, []string{"zz", "aa", "mm"}, m.Keys())

	var values []string
	for _, v := range m.All() {
		s, _ := v.AsString()
		values = append(values, s)
	}
	assert.Equal(t, []string{"1", "2", "3"}, values)
}

func TestDecodeMapInvalidKeys(t *testing.T) {
	nonString := append(dbtest.Control(dbtest.KindMap, 1), dbtest.Encode(uint16(1))...)
	nonString = append(nonString, dbtest.Encode("x")...)
	assert.ErrorContains(t, decodeErr(t, nonString), "unexpected type when decoding map key")

	duplicate := dbtest.Encode(dbtest.Map{{Key: "a", Value: "1"}, {Key: "a", Value: "2"}})
	assert.ErrorContains(t, decodeErr(t, duplicate), `duplicate map key "a"`)
}

func TestDecodeSlice(t *testing.T) {
	tests := map[string][]any{
		"0004":                 {},
		"010443466f6f":         {"Foo"},
		"020443466f6f43e4baba": {"Foo", "人"},
	}

	for hexStr, expected := range tests {
		t.Run(hexStr, func(t *testing.T) {
			v := decodeHex(t, hexStr)
			items, ok := v.AsSlice()
			require.True(t, ok)
			require.Len(t, items, len(expected))
			require.Equal(t, expected, v.Interface())
		})
	}
}

// An extended kind with a size of 29 or more reads the extended type byte
// before the size bytes.
func TestDecodeExtendedKindWithLongSize(t *testing.T) {
	// Slice of 29+1 elements, each an empty uint16.
	buf := append([]byte{0x1d, 0x04, 0x01}, []byte(strings.Repeat("\xa0", 30))...)
	v := decodeAll(t, buf)
	items, ok := v.AsSlice()
	require.True(t, ok)
	require.Len(t, items, 30)
	n, ok := items[29].AsUint16()
	require.True(t, ok)
	assert.Equal(t, uint16(0), n)

	// Swapping the two bytes makes 0x01 the extended type (Int32) and 0x04
	// the size extension, so the size is 33.
	err := decodeErr(t, []byte{0x1d, 0x01, 0x04})
	var dbErr dberrors.InvalidDatabaseError
	require.ErrorAs(t, err, &dbErr)
	assert.ErrorContains(t, err, "Int32 size of 33")
}

func TestDecodeUnsupportedKinds(t *testing.T) {
	tests := map[string]string{
		"0003":     "Uint128",
		"02030001": "Uint128",
		"0005":     "Container",
		"0006":     "EndMarker",
	}
	for hexStr, kind := range tests {
		t.Run(hexStr, func(t *testing.T) {
			buf, err := hex.DecodeString(hexStr)
			require.NoError(t, err)
			err = decodeErr(t, buf)

			var kindErr dberrors.UnsupportedKindError
			require.ErrorAs(t, err, &kindErr)
			assert.Equal(t, kind, kindErr.Kind)
		})
	}
}

func TestDecodeInvalidExtendedKind(t *testing.T) {
	for _, hexStr := range []string{"0000", "00ff", "0009"} {
		t.Run(hexStr, func(t *testing.T) {
			buf, err := hex.DecodeString(hexStr)
			require.NoError(t, err)
			var dbErr dberrors.InvalidDatabaseError
			require.ErrorAs(t, decodeErr(t, buf), &dbErr)
		})
	}
}

func TestPointersInDecoder(t *testing.T) {
	// A map followed by a map whose value points back into the first.
	first := dbtest.Encode(dbtest.Map{{Key: "long_key", Value: "long_value1"}})
	valueOffset := uint(len(dbtest.Encode(dbtest.Map{})) + len(dbtest.Encode("long_key")))
	buf := append([]byte(nil), first...)
	secondOffset := uint(len(buf))
	buf = append(buf, dbtest.Control(dbtest.KindMap, 1)...)
	buf = append(buf, dbtest.Encode("long_key2")...)
	buf = append(buf, dbtest.Pointer(valueOffset)...)
	thirdOffset := uint(len(buf))
	buf = append(buf, dbtest.Pointer(0)...)

	d := NewDataDecoder(buf, 0)
	expected := map[uint]map[string]any{
		0:            {"long_key": "long_value1"},
		secondOffset: {"long_key2": "long_value1"},
		thirdOffset:  {"long_key": "long_value1"},
	}
	for offset, want := range expected {
		v, _, err := d.Decode(offset)
		require.NoError(t, err)
		assert.Equal(t, want, v.Interface())
	}

	_, next, err := d.Decode(thirdOffset)
	require.NoError(t, err)
	assert.Equal(t, uint(len(buf)), next, "offset advances past the pointer only")
}

func TestPointerSizeClasses(t *testing.T) {
	for _, target := range []uint{10, 2047, 2048, 3000, 526335, 526336, 600000} {
		value := dbtest.Encode("pointee")
		buf := make([]byte, target, int(target)+len(value)+5)
		buf = append(buf, value...)
		ptrOffset := uint(len(buf))
		buf = append(buf, dbtest.Pointer(target)...)

		d := NewDataDecoder(buf, 0)
		v, next, err := d.Decode(ptrOffset)
		require.NoError(t, err, "target %d", target)
		s, _ := v.AsString()
		assert.Equal(t, "pointee", s, "target %d", target)
		assert.Equal(t, uint(len(buf)), next, "target %d", target)
	}
}

func TestPointerBase(t *testing.T) {
	prefix := []byte("0123456789")
	buf := append(append([]byte(nil), prefix...), dbtest.Encode("US")...)
	ptrOffset := uint(len(buf))
	buf = append(buf, dbtest.Pointer(0)...)

	d := NewDataDecoder(buf, uint(len(prefix)))
	assert.Equal(t, uint(len(prefix)), d.PointerBase())
	v, _, err := d.Decode(ptrOffset)
	require.NoError(t, err)
	s, _ := v.AsString()
	assert.Equal(t, "US", s)
}

func TestPointerErrors(t *testing.T) {
	beyond := dbtest.Pointer(100)
	assert.ErrorContains(t, decodeErr(t, beyond), "beyond the end")

	truncated := dbtest.Pointer(3000)[:2]
	assert.ErrorContains(t, decodeErr(t, truncated), "unexpected end of database")

	chained := append(dbtest.Encode("x"), dbtest.Pointer(0)...)
	chained = append(chained, dbtest.Pointer(uint(len(dbtest.Encode("x"))))...)
	d := NewDataDecoder(chained, 0)
	_, _, err := d.Decode(uint(len(chained) - 2))
	assert.ErrorContains(t, err, "pointer to a pointer")
}

func TestBoundsChecking(t *testing.T) {
	tests := map[string][]byte{
		"string":      {0x44, 0x41},
		"bytes":       {0x84, 0x41},
		"uint32":      {0xc4, 0x01},
		"double":      {0x68, 0x00},
		"size 30":     {0x5e, 0x00},
		"extended":    {0x01},
		"map key":     {0xe1},
		"map value":   {0xe1, 0x41, 0x61},
		"slice":       {0x02, 0x04, 0x41, 0x61},
		"empty input": {},
	}
	for name, buf := range tests {
		t.Run(name, func(t *testing.T) {
			err := decodeErr(t, buf)
			assert.Contains(t, err.Error(), "unexpected end of database")
		})
	}
}

func TestDecodeErrorPath(t *testing.T) {
	buf := dbtest.Encode(dbtest.Map{
		{Key: "country", Value: dbtest.Map{
			{Key: "names", Value: []any{"a", dbtest.Unsupported(dbtest.KindContainer)}},
		}},
	})
	err := decodeErr(t, buf)

	var ctxErr dberrors.ContextualError
	require.ErrorAs(t, err, &ctxErr)
	assert.Equal(t, "/country/names/1", ctxErr.Path)
}

func TestMaximumDepth(t *testing.T) {
	var buf []byte
	for range maximumDataStructureDepth + 1 {
		buf = append(buf, dbtest.Control(dbtest.KindSlice, 1)...)
	}
	buf = append(buf, dbtest.Encode("leaf")...)
	assert.ErrorContains(t, decodeErr(t, buf), "maximum data structure depth")

	level := len(dbtest.Control(dbtest.KindSlice, 1))
	ok := buf[len(buf)-len(dbtest.Encode("leaf"))-level*maximumDataStructureDepth:]
	_ = decodeAll(t, ok)
}

func TestCapacityHint(t *testing.T) {
	// A map claiming a huge size must fail on the missing bytes rather than
	// preallocate.
	buf := dbtest.Control(dbtest.KindMap, 16_000_000)
	assert.ErrorContains(t, decodeErr(t, buf), "unexpected end of database")
}

func TestStringCacheInDecoder(t *testing.T) {
	buf := dbtest.Encode([]any{"DE", "DE", "hello", "hello"})
	d := NewDataDecoder(buf, 0).WithStringCache(NewStringCache())
	v, _, err := d.Decode(0)
	require.NoError(t, err)
	assert.Equal(t, []any{"DE", "DE", "hello", "hello"}, v.Interface())
}
