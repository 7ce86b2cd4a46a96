package dberrors

import (
	"fmt"
	"strconv"
	"strings"
)

// ContextualError attaches the data section offset and, when known, the
// map/slice path at which decoding failed.
type ContextualError struct {
	Err    error
	Path   string
	Offset uint
}

func (e ContextualError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("at offset %d, path %s: %v", e.Offset, e.Path, e.Err)
	}
	return fmt.Sprintf("at offset %d: %v", e.Offset, e.Err)
}

func (e ContextualError) Unwrap() error {
	return e.Err
}

// WrapWithContext wraps err with offset. An error that already carries
// context gets the path segment prepended instead of a second wrapper.
func WrapWithContext(err error, offset uint, segment string) error {
	if err == nil {
		return nil
	}
	if ce, ok := err.(ContextualError); ok {
		if segment != "" {
			ce.Path = joinPath(segment, ce.Path)
		}
		return ce
	}
	ce := ContextualError{Err: err, Offset: offset}
	if segment != "" {
		ce.Path = joinPath(segment, "")
	}
	return ce
}

// MapSegment returns the path segment for a map key.
func MapSegment(key string) string { return key }

// SliceSegment returns the path segment for slice index i.
func SliceSegment(i int) string { return strconv.Itoa(i) }

func joinPath(segment, rest string) string {
	var b strings.Builder
	b.WriteByte('/')
	b.WriteString(segment)
	if rest != "" && rest != "/" {
		b.WriteString(rest)
	}
	return b.String()
}
