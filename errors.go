package geoipdb

import (
	"errors"

	"github.com/peerwatch/geoipdb/internal/dberrors"
)

var (
	// ErrDatabaseSize is returned for buffers and files larger than
	// MaxDatabaseSize.
	ErrDatabaseSize = errors.New("unsupported database file size")
	// ErrNoMetadata is returned when no metadata marker is found.
	ErrNoMetadata = errors.New("invalid MaxMind DB file: no metadata")
	// ErrInvalidMetadata is returned when the metadata section does not
	// decode to a map.
	ErrInvalidMetadata = errors.New("invalid MaxMind DB file: invalid metadata")
)

// InvalidDatabaseError is returned when the database contains invalid data
// and cannot be parsed.
type InvalidDatabaseError = dberrors.InvalidDatabaseError

// UnsupportedKindError is returned when a record holds a value type this
// package does not decode.
type UnsupportedKindError = dberrors.UnsupportedKindError

// MetadataError is returned when a metadata entry is missing or has the
// wrong type.
type MetadataError = dberrors.MetadataError

// UnsupportedError is returned when the metadata names a format version, IP
// version or record size this package does not support.
type UnsupportedError = dberrors.UnsupportedError

// ContextualError carries the offset and path at which decoding failed.
type ContextualError = dberrors.ContextualError
