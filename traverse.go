package geoipdb

import (
	"errors"
	"iter"
	"net/netip"
)

type networkOptions struct {
	skipAliases bool
}

// NetworksOption configures Networks.
type NetworksOption func(*networkOptions)

// SkipAliasedNetworks makes Networks report the IPv4 space only once, under
// its IPv4 prefixes. Other paths into the IPv4 subtree, such as ::/96 or the
// 6to4 and Teredo ranges in MaxMind databases, are skipped.
func SkipAliasedNetworks(o *networkOptions) {
	o.skipAliases = true
}

// mappedPrefix is ::ffff:0:0/96 as bytes.
var mappedPrefix = netip.AddrFrom4([4]byte{}).As16()

// Networks iterates over every network that has a record, in address order.
// Networks inside ::ffff:0:0/96 are reported as IPv4 prefixes. Iteration
// stops at the first malformed node, which is reported as a Result with a
// non-nil Err.
func (db *Database) Networks(opts ...NetworksOption) iter.Seq[Result] {
	var o networkOptions
	for _, opt := range opts {
		opt(&o)
	}
	return func(yield func(Result) bool) {
		if db.closed.Load() {
			yield(Result{err: errors.New("cannot call Networks on a closed database")})
			return
		}
		db.walk(0, [16]byte{}, 0, o, yield)
	}
}

// walk visits the subtree rooted at node, which is reached by the first
// depth bits of ip. It returns false once yield asks to stop.
func (db *Database) walk(node uint, ip [16]byte, depth int, o networkOptions, yield func(Result) bool) bool {
	switch {
	case node == db.nodeCount:
		return true
	case node > db.nodeCount:
		return yield(db.networkResult(node, ip, depth))
	case depth == 128:
		return yield(Result{
			db:  db,
			err: errors.New("invalid search tree: node at maximum depth"),
		})
	}
	if o.skipAliases && node == db.ipv4Start && !isMappedPath(ip, depth) {
		return true
	}
	for bit := range uint(2) {
		child := ip
		if bit == 1 {
			child[depth>>3] |= 1 << (7 - uint(depth&7))
		}
		if !db.walk(db.readRecord(node, bit), child, depth+1, o, yield) {
			return false
		}
	}
	return true
}

func isMappedPath(ip [16]byte, depth int) bool {
	return depth == 96 && [12]byte(ip[:12]) == [12]byte(mappedPrefix[:12])
}

func (db *Database) networkResult(id uint, ip [16]byte, depth int) Result {
	addr := netip.AddrFrom16(ip)
	if depth >= 96 && [12]byte(ip[:12]) == [12]byte(mappedPrefix[:12]) {
		addr = addr.Unmap()
	}
	return Result{
		db:        db,
		ip:        addr,
		country:   db.countries.resolve(id),
		node:      id,
		prefixLen: depth,
		found:     true,
	}
}
