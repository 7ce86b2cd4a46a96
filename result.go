package geoipdb

import (
	"errors"
	"net/netip"

	"github.com/peerwatch/geoipdb/geodata"
)

// Result is the outcome of a lookup.
type Result struct {
	db        *Database
	err       error
	ip        netip.Addr
	country   string
	node      uint
	prefixLen int
	found     bool
}

// Found reports whether the address is in the database.
func (r Result) Found() bool { return r.found }

// Country returns the ISO country code of the matching record. It is empty
// when the address was not found or the record has no country.
func (r Result) Country() string { return r.country }

// Err returns the error, if any, encountered while performing the lookup.
func (r Result) Err() error { return r.err }

// Addr returns the address that was looked up.
func (r Result) Addr() netip.Addr { return r.ip }

// Prefix returns the network the matching record covers. IPv4 lookups
// report an IPv4 prefix. For addresses that were not found, the prefix is
// the largest network known to be absent.
func (r Result) Prefix() netip.Prefix {
	if !r.ip.IsValid() {
		return netip.Prefix{}
	}
	ip := r.ip
	bits := r.prefixLen
	if ip.Is4() {
		bits -= 96
		if bits < 0 {
			// The record covers more than the IPv4 space; report it as
			// the IPv4-mapped IPv6 network.
			ip = netip.AddrFrom16(ip.As16())
			bits = r.prefixLen
		}
	}
	prefix, err := ip.Prefix(bits)
	if err != nil {
		return netip.Prefix{}
	}
	return prefix
}

// Record decodes the full value stored for the matching record. It returns
// the zero Value and no error when the address was not found.
func (r Result) Record() (geodata.Value, error) {
	if r.err != nil {
		return geodata.Value{}, r.err
	}
	if !r.found {
		return geodata.Value{}, nil
	}
	if r.db.closed.Load() {
		return geodata.Value{}, errors.New("cannot call Record on a closed database")
	}
	offset, err := r.db.dataOffset(r.node)
	if err != nil {
		return geodata.Value{}, err
	}
	value, _, err := r.db.decoder.Decode(offset)
	if err != nil {
		return geodata.Value{}, err
	}
	return value, nil
}
