// Package geoipdb reads MaxMind DB files and resolves IP addresses to ISO
// country codes.
//
// Only IPv6 databases with 24-bit records are supported. IPv4 addresses are
// looked up under their IPv4-mapped IPv6 form.
package geoipdb

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"sync/atomic"
	"time"

	"github.com/peerwatch/geoipdb/cache"
	"github.com/peerwatch/geoipdb/internal/dberrors"
	"github.com/peerwatch/geoipdb/internal/decoder"
)

// Database holds the index and data section of a MaxMind DB. It is safe for
// concurrent use once constructed.
type Database struct {
	buffer    []byte
	mapped    bool
	closed    atomic.Bool
	decoder   decoder.DataDecoder
	countries countryResolver

	// Metadata is the decoded metadata section.
	Metadata Metadata

	nodeCount      uint
	nodeByteSize   uint
	recordByteSize uint
	indexSize      uint
	// ipv4Start is the node reached after walking ::ffff:0:0/96.
	ipv4Start       uint
	ipv4StartBitLen int
}

// Open memory-maps the database at path. Call Close to release the mapping.
func Open(path string, opts ...Option) (*Database, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck // the mapping outlives the descriptor

	stats, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := stats.Size()
	if size > MaxDatabaseSize {
		return nil, fmt.Errorf("%s: %w (%d bytes)", path, ErrDatabaseSize, size)
	}
	if size == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoMetadata)
	}

	data, err := mmap(f, int(size))
	if err != nil {
		return nil, fmt.Errorf("mapping %s: %w", path, err)
	}

	db, err := newDatabase(data, opts)
	if err != nil {
		if unmapErr := munmap(data); unmapErr != nil {
			err = errors.Join(err, unmapErr)
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	db.mapped = true
	return db, nil
}

// FromBytes builds a Database from an in-memory copy of a database file. The
// Database takes ownership of buffer; the caller must not modify it.
func FromBytes(buffer []byte, opts ...Option) (*Database, error) {
	if len(buffer) > MaxDatabaseSize {
		return nil, fmt.Errorf("%w (%d bytes)", ErrDatabaseSize, len(buffer))
	}
	return newDatabase(buffer, opts)
}

func newDatabase(buffer []byte, opts []Option) (*Database, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.countries == nil {
		o.countries = cache.NewMap()
	}

	markerStart, metadataStart, err := findMetadata(buffer)
	if err != nil {
		return nil, err
	}
	metadata, err := parseMetadata(buffer, metadataStart)
	if err != nil {
		return nil, err
	}

	nodeByteSize := metadata.RecordSize / 4
	indexSize := metadata.NodeCount * nodeByteSize
	dataSectionStart := indexSize + dataSectionSeparatorSize
	if dataSectionStart > markerStart {
		return nil, dberrors.NewInvalidDatabaseError("no data section found")
	}
	for _, b := range buffer[indexSize:dataSectionStart] {
		if b != 0 {
			return nil, dberrors.NewInvalidDatabaseError(
				"the data section separator at offset %d is not zero", indexSize,
			)
		}
	}

	// Data pointers never reach into the metadata, so the decoder only sees
	// the bytes before the marker.
	d := decoder.NewDataDecoder(buffer[:markerStart], dataSectionStart).
		WithStringCache(decoder.NewStringCache())

	db := &Database{
		buffer:         buffer,
		decoder:        d,
		Metadata:       metadata,
		nodeCount:      metadata.NodeCount,
		nodeByteSize:   nodeByteSize,
		recordByteSize: nodeByteSize / 2,
		indexSize:      indexSize,
	}
	db.countries = countryResolver{cache: o.countries, decode: db.decodeCountry}
	db.ipv4Start, db.ipv4StartBitLen = db.findIPv4Start()
	return db, nil
}

// Close releases the memory mapping, if any, and empties the country cache.
// The Database must not be used afterwards.
func (db *Database) Close() error {
	if !db.closed.CompareAndSwap(false, true) {
		return nil
	}
	db.countries.cache.Purge()
	if !db.mapped {
		return nil
	}
	return munmap(db.buffer)
}

// Lookup resolves addr. Errors from malformed records are reported through
// the Result rather than returned, so a single corrupt leaf only affects the
// addresses that reach it.
func (db *Database) Lookup(addr netip.Addr) Result {
	if db.closed.Load() {
		return Result{db: db, ip: addr, err: errors.New("cannot call Lookup on a closed database")}
	}
	if !addr.IsValid() {
		return Result{db: db, ip: addr, err: errors.New("invalid IP address")}
	}
	id, prefixLen, found := db.lookupNode(addr)
	res := Result{db: db, ip: addr, node: id, prefixLen: prefixLen, found: found}
	if found {
		res.country = db.countries.resolve(id)
	}
	return res
}

// LookupCountry returns the ISO country code for addr. The bool is false
// when the address is not in the database; it is true with an empty string
// when the matching record has no country.
func (db *Database) LookupCountry(addr netip.Addr) (string, bool) {
	res := db.Lookup(addr)
	return res.country, res.found
}

// Type returns the database type label, e.g. "GeoLite2-Country".
func (db *Database) Type() string { return db.Metadata.DatabaseType }

// IPVersion returns the IP version of the search tree. It is always 6.
func (db *Database) IPVersion() uint { return db.Metadata.IPVersion }

// BuildEpoch returns the time the database was built.
func (db *Database) BuildEpoch() time.Time {
	return time.Unix(int64(db.Metadata.BuildEpoch), 0).UTC()
}

// NodeCount returns the number of nodes in the search tree.
func (db *Database) NodeCount() uint { return db.nodeCount }

// NodeByteSize returns the width of one node in bytes.
func (db *Database) NodeByteSize() uint { return db.nodeByteSize }

// RecordByteSize returns the width of one record in bytes.
func (db *Database) RecordByteSize() uint { return db.recordByteSize }

// IndexSize returns the size of the search tree in bytes.
func (db *Database) IndexSize() uint { return db.indexSize }

// Size returns the size of the database buffer in bytes.
func (db *Database) Size() int { return len(db.buffer) }

// CachedCountries returns the number of memoized terminal records.
func (db *Database) CachedCountries() int { return db.countries.cache.Len() }
