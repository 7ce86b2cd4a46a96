package geoipdb

import (
	"bytes"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/peerwatch/geoipdb/internal/dberrors"
	"github.com/peerwatch/geoipdb/internal/decoder"
)

const (
	// MaxDatabaseSize is the largest database accepted, in bytes.
	MaxDatabaseSize = 64 << 20

	// The metadata marker must occur within this many bytes of the end.
	maxMetadataSize = 128 << 10

	dataSectionSeparatorSize = 16

	supportedFormatVersion = 2
	supportedIPVersion     = 6
	supportedRecordSize    = 24
)

var metadataStartMarker = []byte("\xAB\xCD\xEFMaxMind.com")

// Metadata holds the metadata decoded from the database file.
type Metadata struct {
	Description              map[string]string `geoip:"description"`
	DatabaseType             string            `geoip:"database_type"`
	Languages                []string          `geoip:"languages"`
	BinaryFormatMajorVersion uint              `geoip:"binary_format_major_version"`
	BinaryFormatMinorVersion uint              `geoip:"binary_format_minor_version"`
	BuildEpoch               uint64            `geoip:"build_epoch"`
	IPVersion                uint              `geoip:"ip_version"`
	NodeCount                uint              `geoip:"node_count"`
	RecordSize               uint              `geoip:"record_size"`
}

// findMetadata returns the offset of the marker and of the first byte after
// it. Only the tail of the buffer is searched, and the last occurrence wins
// since the marker bytes could also appear inside the data section.
func findMetadata(buffer []byte) (markerStart, metadataStart uint, err error) {
	searchFrom := 0
	if len(buffer) > maxMetadataSize {
		searchFrom = len(buffer) - maxMetadataSize
	}
	i := bytes.LastIndex(buffer[searchFrom:], metadataStartMarker)
	if i == -1 {
		return 0, 0, ErrNoMetadata
	}
	markerStart = uint(searchFrom + i)
	return markerStart, markerStart + uint(len(metadataStartMarker)), nil
}

type metadataField struct {
	key      string
	kind     decoder.Kind
	required bool
	// elem is the kind required for slice elements or map values.
	elem decoder.Kind
}

// Checked in this order so the first problem reported matches the order in
// which the layout is derived.
var metadataFields = []metadataField{
	{key: "binary_format_major_version", kind: decoder.KindUint16, required: true},
	{key: "binary_format_minor_version", kind: decoder.KindUint16},
	{key: "ip_version", kind: decoder.KindUint16, required: true},
	{key: "record_size", kind: decoder.KindUint16, required: true},
	{key: "node_count", kind: decoder.KindUint32, required: true},
	{key: "database_type", kind: decoder.KindString, required: true},
	{key: "build_epoch", kind: decoder.KindUint64, required: true},
	{key: "languages", kind: decoder.KindSlice, elem: decoder.KindString},
	{key: "description", kind: decoder.KindMap, elem: decoder.KindString},
}

func parseMetadata(buffer []byte, metadataStart uint) (Metadata, error) {
	d := decoder.NewDataDecoder(buffer, metadataStart)
	value, _, err := d.Decode(metadataStart)
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: %w", ErrInvalidMetadata, err)
	}
	fields, ok := value.AsMap()
	if !ok {
		return Metadata{}, ErrInvalidMetadata
	}

	for _, f := range metadataFields {
		if err := checkMetadataField(fields, f); err != nil {
			return Metadata{}, err
		}
		if err := checkSupported(fields, f.key); err != nil {
			return Metadata{}, err
		}
	}

	var metadata Metadata
	unmarshaler, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "geoip",
		Result:  &metadata,
	})
	if err != nil {
		return Metadata{}, err
	}
	if err := unmarshaler.Decode(value.Interface()); err != nil {
		return Metadata{}, fmt.Errorf("%w: %w", ErrInvalidMetadata, err)
	}
	return metadata, nil
}

func checkMetadataField(fields *decoder.Map, f metadataField) error {
	v, ok := fields.Get(f.key)
	if !ok {
		if f.required {
			return &dberrors.MetadataError{Key: f.key, Missing: true}
		}
		return nil
	}
	if v.Kind() != f.kind {
		return &dberrors.MetadataError{Key: f.key}
	}
	switch f.kind {
	case decoder.KindSlice:
		items, _ := v.AsSlice()
		for _, item := range items {
			if item.Kind() != f.elem {
				return &dberrors.MetadataError{Key: f.key}
			}
		}
	case decoder.KindMap:
		m, _ := v.AsMap()
		for _, item := range m.All() {
			if item.Kind() != f.elem {
				return &dberrors.MetadataError{Key: f.key}
			}
		}
	}
	return nil
}

// checkSupported rejects values that are well typed but describe a layout
// this reader does not handle.
func checkSupported(fields *decoder.Map, key string) error {
	v, _ := fields.Get(key)
	n, _ := v.AsUint16()
	switch key {
	case "binary_format_major_version":
		if n != supportedFormatVersion {
			minor, _ := fields.Get("binary_format_minor_version")
			minorVersion, _ := minor.AsUint16()
			return &dberrors.UnsupportedError{
				Field: "database version",
				Value: fmt.Sprintf("%d.%d", n, minorVersion),
			}
		}
	case "ip_version":
		if n != supportedIPVersion {
			return &dberrors.UnsupportedError{Field: "IP version", Value: n}
		}
	case "record_size":
		if n != supportedRecordSize {
			return &dberrors.UnsupportedError{Field: "record size", Value: n}
		}
	}
	return nil
}
