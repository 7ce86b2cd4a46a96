package decoder

import "github.com/peerwatch/geoipdb/internal/dberrors"

// This is the value used in libmaxminddb.
const maximumDataStructureDepth = 512

// Decode decodes the field at offset. It returns the value and the offset of
// the next field. When the field is a pointer, the value is the pointee's
// and the returned offset is the one just past the pointer.
func (d *DataDecoder) Decode(offset uint) (Value, uint, error) {
	return d.decode(offset, 0)
}

func (d *DataDecoder) decode(offset uint, depth int) (Value, uint, error) {
	if depth > maximumDataStructureDepth {
		return Value{}, 0, dberrors.WrapWithContext(
			dberrors.NewInvalidDatabaseError(
				"exceeded maximum data structure depth; database is likely corrupt",
			),
			offset, "",
		)
	}
	kindNum, size, dataOffset, err := d.DecodeCtrlData(offset)
	if err != nil {
		return Value{}, 0, dberrors.WrapWithContext(err, offset, "")
	}

	if kindNum != KindPointer {
		return d.decodeFromKind(kindNum, size, offset, dataOffset, depth+1)
	}

	pointer, nextOffset, err := d.DecodePointer(size, dataOffset)
	if err != nil {
		return Value{}, 0, dberrors.WrapWithContext(err, offset, "")
	}
	kindNum, size, dataOffset, err = d.DecodeCtrlData(pointer)
	if err != nil {
		return Value{}, 0, dberrors.WrapWithContext(err, pointer, "")
	}
	if kindNum == KindPointer {
		return Value{}, 0, dberrors.WrapWithContext(
			dberrors.NewInvalidDatabaseError("pointer to a pointer"),
			pointer, "",
		)
	}
	value, _, err := d.decodeFromKind(kindNum, size, pointer, dataOffset, depth+1)
	if err != nil {
		return Value{}, 0, err
	}
	return value, nextOffset, nil
}

// decodeFromKind decodes the payload of a field whose control data started
// at fieldOffset and whose payload starts at offset.
func (d *DataDecoder) decodeFromKind(
	kindNum Kind,
	size uint,
	fieldOffset uint,
	offset uint,
	depth int,
) (Value, uint, error) {
	var (
		value Value
		err   error
	)
	switch kindNum {
	case KindMap:
		return d.decodeMap(size, fieldOffset, offset, depth)
	case KindSlice:
		return d.decodeSlice(size, offset, depth)
	case KindBool:
		// The size bits hold the value; there is no payload.
		return BoolValue(size != 0), offset, nil
	case KindString:
		var v string
		v, offset, err = d.DecodeString(size, offset)
		value = StringValue(v)
	case KindBytes:
		var v []byte
		v, offset, err = d.DecodeBytes(size, offset)
		value = BytesValue(v)
	case KindFloat64:
		var v float64
		v, offset, err = d.DecodeFloat64(size, offset)
		value = Float64Value(v)
	case KindFloat32:
		var v float32
		v, offset, err = d.DecodeFloat32(size, offset)
		value = Float32Value(v)
	case KindUint16:
		var v uint16
		v, offset, err = d.DecodeUint16(size, offset)
		value = Uint16Value(v)
	case KindUint32:
		var v uint32
		v, offset, err = d.DecodeUint32(size, offset)
		value = Uint32Value(v)
	case KindUint64:
		var v uint64
		v, offset, err = d.DecodeUint64(size, offset)
		value = Uint64Value(v)
	case KindInt32:
		var v int32
		v, offset, err = d.DecodeInt32(size, offset)
		value = Int32Value(v)
	case KindUint128, KindContainer, KindEndMarker:
		err = dberrors.UnsupportedKindError{Kind: kindNum.String()}
	default:
		err = dberrors.NewInvalidDatabaseError("unknown type: %d", int(kindNum))
	}
	if err != nil {
		return Value{}, 0, dberrors.WrapWithContext(err, fieldOffset, "")
	}
	return value, offset, nil
}

func (d *DataDecoder) decodeMap(size, fieldOffset, offset uint, depth int) (Value, uint, error) {
	m := NewMap(d.capacityHint(size, offset))
	for range size {
		keyOffset := offset
		key, valueOffset, err := d.decode(keyOffset, depth)
		if err != nil {
			return Value{}, 0, err
		}
		keyStr, ok := key.AsString()
		if !ok {
			return Value{}, 0, dberrors.WrapWithContext(
				dberrors.NewInvalidDatabaseError(
					"unexpected type when decoding map key: %v", key.Kind(),
				),
				keyOffset, "",
			)
		}

		value, nextOffset, err := d.decode(valueOffset, depth)
		if err != nil {
			return Value{}, 0, dberrors.WrapWithContext(
				err, valueOffset, dberrors.MapSegment(keyStr),
			)
		}
		if !m.Set(keyStr, value) {
			return Value{}, 0, dberrors.WrapWithContext(
				dberrors.NewInvalidDatabaseError("duplicate map key %q", keyStr),
				fieldOffset, "",
			)
		}
		offset = nextOffset
	}
	return MapValue(m), offset, nil
}

func (d *DataDecoder) decodeSlice(size, offset uint, depth int) (Value, uint, error) {
	items := make([]Value, 0, d.capacityHint(size, offset))
	for i := range size {
		value, nextOffset, err := d.decode(offset, depth)
		if err != nil {
			return Value{}, 0, dberrors.WrapWithContext(
				err, offset, dberrors.SliceSegment(int(i)),
			)
		}
		items = append(items, value)
		offset = nextOffset
	}
	return SliceValue(items), offset, nil
}

// capacityHint bounds preallocation by the bytes left in the buffer, since
// every element takes at least one byte.
func (d *DataDecoder) capacityHint(size, offset uint) int {
	remaining := uint(0)
	if offset < uint(len(d.buffer)) {
		remaining = uint(len(d.buffer)) - offset
	}
	return int(min(size, remaining))
}
