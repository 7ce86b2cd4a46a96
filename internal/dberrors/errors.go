// Package dberrors holds the error types shared by the decoder and the
// database reader.
package dberrors

import "fmt"

// InvalidDatabaseError is returned when the database contains invalid data
// and cannot be parsed.
type InvalidDatabaseError struct {
	message string
}

// NewOffsetError reports a read past the end of the buffer.
func NewOffsetError() InvalidDatabaseError {
	return InvalidDatabaseError{"unexpected end of database"}
}

// NewInvalidDatabaseError formats an InvalidDatabaseError.
func NewInvalidDatabaseError(format string, args ...any) InvalidDatabaseError {
	return InvalidDatabaseError{fmt.Sprintf(format, args...)}
}

func (e InvalidDatabaseError) Error() string {
	return e.message
}

// UnsupportedKindError is returned when the data section holds a value of a
// kind this reader does not decode (uint128, data cache container, end
// marker).
type UnsupportedKindError struct {
	Kind string
}

func (e UnsupportedKindError) Error() string {
	return fmt.Sprintf("unsupported data type: %s", e.Kind)
}

// MetadataError describes a required or optional metadata entry that is
// missing or has the wrong type.
type MetadataError struct {
	Key     string
	Missing bool
}

func (e *MetadataError) Error() string {
	if e.Missing {
		return fmt.Sprintf("metadata error: '%s' entry not found", e.Key)
	}
	return fmt.Sprintf("metadata error: '%s' entry has invalid type", e.Key)
}

// UnsupportedError is returned when a metadata value is well formed but
// names a layout this reader does not handle.
type UnsupportedError struct {
	Field string
	Value any
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported %s: %v", e.Field, e.Value)
}
