// Package geodata exposes the decoded value types returned by
// Result.Record.
package geodata

import "github.com/peerwatch/geoipdb/internal/decoder"

// Kind identifies the type of a decoded value.
type Kind = decoder.Kind

// Value is a decoded data section value.
type Value = decoder.Value

// Map is an insertion ordered map of decoded values.
type Map = decoder.Map

// Kind constants for decoded data.
const (
	KindExtended  = decoder.KindExtended
	KindPointer   = decoder.KindPointer
	KindString    = decoder.KindString
	KindFloat64   = decoder.KindFloat64
	KindBytes     = decoder.KindBytes
	KindUint16    = decoder.KindUint16
	KindUint32    = decoder.KindUint32
	KindMap       = decoder.KindMap
	KindInt32     = decoder.KindInt32
	KindUint64    = decoder.KindUint64
	KindUint128   = decoder.KindUint128
	KindSlice     = decoder.KindSlice
	KindContainer = decoder.KindContainer
	KindEndMarker = decoder.KindEndMarker
	KindBool      = decoder.KindBool
	KindFloat32   = decoder.KindFloat32
)
