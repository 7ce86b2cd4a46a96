// Package decoder decodes values in the data section.
package decoder

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/peerwatch/geoipdb/internal/dberrors"
)

// Kind constants for the different MMDB data kinds.
type Kind int

// MMDB data kind constants.
const (
	// KindExtended indicates an extended kind.
	KindExtended Kind = iota
	// KindPointer is a pointer to another location in the data section.
	KindPointer
	// KindString is a UTF-8 string.
	KindString
	// KindFloat64 is a 64-bit floating point number.
	KindFloat64
	// KindBytes is a byte slice.
	KindBytes
	// KindUint16 is a 16-bit unsigned integer.
	KindUint16
	// KindUint32 is a 32-bit unsigned integer.
	KindUint32
	// KindMap is a map from strings to other data types.
	KindMap
	// KindInt32 is a 32-bit signed integer.
	KindInt32
	// KindUint64 is a 64-bit unsigned integer.
	KindUint64
	// KindUint128 is a 128-bit unsigned integer.
	KindUint128
	// KindSlice is an array of values.
	KindSlice
	// KindContainer is a data cache container.
	KindContainer
	// KindEndMarker marks the end of the data section.
	KindEndMarker
	// KindBool is a boolean value.
	KindBool
	// KindFloat32 is a 32-bit floating point number.
	KindFloat32
)

var kindNames = [...]string{
	KindExtended:  "Extended",
	KindPointer:   "Pointer",
	KindString:    "String",
	KindFloat64:   "Float64",
	KindBytes:     "Bytes",
	KindUint16:    "Uint16",
	KindUint32:    "Uint32",
	KindMap:       "Map",
	KindInt32:     "Int32",
	KindUint64:    "Uint64",
	KindUint128:   "Uint128",
	KindSlice:     "Slice",
	KindContainer: "Container",
	KindEndMarker: "EndMarker",
	KindBool:      "Bool",
	KindFloat32:   "Float32",
}

// String returns the name of the kind, or Unknown(n) outside the known range.
func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Unknown(%d)", int(k))
}

// IsContainer returns true if the Kind represents a container type (Map or Slice).
func (k Kind) IsContainer() bool {
	return k == KindMap || k == KindSlice
}

// IsSupported reports whether values of this kind can be decoded.
func (k Kind) IsSupported() bool {
	switch k {
	case KindString, KindFloat64, KindBytes, KindUint16, KindUint32, KindMap,
		KindInt32, KindUint64, KindSlice, KindBool, KindFloat32:
		return true
	default:
		return false
	}
}

// Pointer biases for the four pointer size classes.
var pointerValueOffsets = [4]uint{0, 2048, 526336, 0}

// DataDecoder reads individual fields out of an MMDB buffer. Pointers are
// resolved relative to pointerBase, which is the start of the data section
// for records and the first byte after the marker for metadata.
type DataDecoder struct {
	buffer      []byte
	pointerBase uint
	strings     *StringCache
}

// NewDataDecoder creates a [DataDecoder].
func NewDataDecoder(buffer []byte, pointerBase uint) DataDecoder {
	return DataDecoder{buffer: buffer, pointerBase: pointerBase}
}

// WithStringCache returns a copy of d that interns decoded strings in sc.
func (d DataDecoder) WithStringCache(sc *StringCache) DataDecoder {
	d.strings = sc
	return d
}

// Buffer returns the underlying buffer for direct access.
func (d *DataDecoder) Buffer() []byte {
	return d.buffer
}

// PointerBase returns the offset pointers are resolved against.
func (d *DataDecoder) PointerBase() uint {
	return d.pointerBase
}

// DecodeCtrlData decodes the control byte and data info at the given offset.
// For pointers, the returned size holds the raw low five bits of the control
// byte for DecodePointer.
func (d *DataDecoder) DecodeCtrlData(offset uint) (Kind, uint, uint, error) {
	if offset >= uint(len(d.buffer)) {
		return 0, 0, 0, dberrors.NewOffsetError()
	}
	ctrlByte := d.buffer[offset]
	newOffset := offset + 1

	kindNum := Kind(ctrlByte >> 5)
	if kindNum == KindPointer {
		return kindNum, uint(ctrlByte & 0x1f), newOffset, nil
	}
	if kindNum == KindExtended {
		if newOffset >= uint(len(d.buffer)) {
			return 0, 0, 0, dberrors.NewOffsetError()
		}
		kindNum = Kind(int(d.buffer[newOffset]) + 7)
		newOffset++
		if kindNum <= KindMap || kindNum > KindFloat32 {
			return 0, 0, 0, dberrors.NewInvalidDatabaseError(
				"invalid extended type: %d", int(kindNum),
			)
		}
	}

	size, newOffset, err := d.sizeFromCtrlByte(ctrlByte, newOffset)
	return kindNum, size, newOffset, err
}

func (d *DataDecoder) sizeFromCtrlByte(ctrlByte byte, offset uint) (uint, uint, error) {
	size := uint(ctrlByte & 0x1f)
	if size < 29 {
		return size, offset, nil
	}

	bytesToRead := size - 28
	newOffset := offset + bytesToRead
	if newOffset > uint(len(d.buffer)) {
		return 0, 0, dberrors.NewOffsetError()
	}
	sizeBytes := d.buffer[offset:newOffset]

	switch size {
	case 29:
		size = 29 + uint(sizeBytes[0])
	case 30:
		size = 285 + uintFromBytes(0, sizeBytes)
	default:
		size = 65821 + uintFromBytes(0, sizeBytes)
	}
	return size, newOffset, nil
}

// DecodePointer decodes a pointer whose control byte carried size. It
// returns the absolute buffer offset of the target and the offset just past
// the pointer itself.
func (d *DataDecoder) DecodePointer(size, offset uint) (uint, uint, error) {
	pointerSize := ((size >> 3) & 0x3) + 1
	newOffset := offset + pointerSize
	if newOffset > uint(len(d.buffer)) {
		return 0, 0, dberrors.NewOffsetError()
	}
	var prefix uint
	if pointerSize != 4 {
		prefix = size & 0x7
	}
	unpacked := uintFromBytes(prefix, d.buffer[offset:newOffset])

	pointer := unpacked + pointerValueOffsets[pointerSize-1] + d.pointerBase
	if pointer >= uint(len(d.buffer)) {
		return 0, 0, dberrors.NewInvalidDatabaseError(
			"pointer to offset %d is beyond the end of the database", pointer,
		)
	}
	return pointer, newOffset, nil
}

// DecodeString decodes a string from the given offset.
func (d *DataDecoder) DecodeString(size, offset uint) (string, uint, error) {
	newOffset := offset + size
	if newOffset > uint(len(d.buffer)) {
		return "", 0, dberrors.NewOffsetError()
	}
	if d.strings != nil {
		return d.strings.InternAt(offset, size, d.buffer), newOffset, nil
	}
	return string(d.buffer[offset:newOffset]), newOffset, nil
}

// DecodeBytes decodes a byte slice from the given offset. The result is a
// copy and does not alias the database buffer.
func (d *DataDecoder) DecodeBytes(size, offset uint) ([]byte, uint, error) {
	newOffset := offset + size
	if newOffset > uint(len(d.buffer)) {
		return nil, 0, dberrors.NewOffsetError()
	}
	bytes := make([]byte, size)
	copy(bytes, d.buffer[offset:newOffset])
	return bytes, newOffset, nil
}

// DecodeFloat64 decodes a 64-bit float from the given offset.
func (d *DataDecoder) DecodeFloat64(size, offset uint) (float64, uint, error) {
	if size != 8 {
		return 0, 0, dberrors.NewInvalidDatabaseError(
			"the data section contains bad data (float64 size of %v)", size,
		)
	}
	newOffset := offset + size
	if newOffset > uint(len(d.buffer)) {
		return 0, 0, dberrors.NewOffsetError()
	}
	bits := binary.BigEndian.Uint64(d.buffer[offset:newOffset])
	return math.Float64frombits(bits), newOffset, nil
}

// DecodeFloat32 decodes a 32-bit float from the given offset.
func (d *DataDecoder) DecodeFloat32(size, offset uint) (float32, uint, error) {
	if size != 4 {
		return 0, 0, dberrors.NewInvalidDatabaseError(
			"the data section contains bad data (float32 size of %v)", size,
		)
	}
	newOffset := offset + size
	if newOffset > uint(len(d.buffer)) {
		return 0, 0, dberrors.NewOffsetError()
	}
	bits := binary.BigEndian.Uint32(d.buffer[offset:newOffset])
	return math.Float32frombits(bits), newOffset, nil
}

// DecodeInt32 decodes a 32-bit signed integer from the given offset. Short
// encodings are zero padded on the left, so only a four byte value can be
// negative.
func (d *DataDecoder) DecodeInt32(size, offset uint) (int32, uint, error) {
	val, newOffset, err := d.decodeUint(KindInt32, size, offset, 4)
	return int32(uint32(val)), newOffset, err
}

// DecodeUint16 decodes a 16-bit unsigned integer from the given offset.
func (d *DataDecoder) DecodeUint16(size, offset uint) (uint16, uint, error) {
	val, newOffset, err := d.decodeUint(KindUint16, size, offset, 2)
	return uint16(val), newOffset, err
}

// DecodeUint32 decodes a 32-bit unsigned integer from the given offset.
func (d *DataDecoder) DecodeUint32(size, offset uint) (uint32, uint, error) {
	val, newOffset, err := d.decodeUint(KindUint32, size, offset, 4)
	return uint32(val), newOffset, err
}

// DecodeUint64 decodes a 64-bit unsigned integer from the given offset.
func (d *DataDecoder) DecodeUint64(size, offset uint) (uint64, uint, error) {
	return d.decodeUint(KindUint64, size, offset, 8)
}

func (d *DataDecoder) decodeUint(kind Kind, size, offset, width uint) (uint64, uint, error) {
	if size > width {
		return 0, 0, dberrors.NewInvalidDatabaseError(
			"the data section contains bad data (%s size of %v)", kind, size,
		)
	}
	newOffset := offset + size
	if newOffset > uint(len(d.buffer)) {
		return 0, 0, dberrors.NewOffsetError()
	}
	var val uint64
	for _, b := range d.buffer[offset:newOffset] {
		val = (val << 8) | uint64(b)
	}
	return val, newOffset, nil
}

func uintFromBytes(prefix uint, uintBytes []byte) uint {
	val := prefix
	for _, b := range uintBytes {
		val = (val << 8) | uint(b)
	}
	return val
}
