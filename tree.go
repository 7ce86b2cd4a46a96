package geoipdb

import (
	"net/netip"

	"github.com/peerwatch/geoipdb/internal/dberrors"
)

// lookupNode walks the search tree for addr. It returns the terminal record
// and the number of bits consumed to reach it; ok is false when the address
// is not in the database.
func (db *Database) lookupNode(addr netip.Addr) (id uint, prefixLen int, ok bool) {
	ip := addr.As16()

	node := uint(0)
	i := 0
	if addr.Is4() || addr.Is4In6() {
		node, i = db.ipv4Start, db.ipv4StartBitLen
	}
	for ; i < 128 && node < db.nodeCount; i++ {
		bit := uint(ip[i>>3]>>(7-uint(i&7))) & 1
		node = db.readRecord(node, bit)
	}
	switch {
	case node == db.nodeCount:
		return 0, i, false
	case node > db.nodeCount:
		return node, i, true
	default:
		// All 128 bits used without leaving the tree.
		return 0, i, false
	}
}

// findIPv4Start walks the 96 bits of ::ffff:0:0/96, under which IPv4
// addresses are stored. A walk that leaves the tree early stops there.
func (db *Database) findIPv4Start() (uint, int) {
	prefix := netip.AddrFrom4([4]byte{}).As16()
	node := uint(0)
	i := 0
	for ; i < 96 && node < db.nodeCount; i++ {
		bit := uint(prefix[i>>3]>>(7-uint(i&7))) & 1
		node = db.readRecord(node, bit)
	}
	return node, i
}

// readRecord returns the left (bit 0) or right (bit 1) record of node.
func (db *Database) readRecord(node, bit uint) uint {
	offset := node*db.nodeByteSize + bit*db.recordByteSize
	var v uint
	for _, b := range db.buffer[offset : offset+db.recordByteSize] {
		v = v<<8 | uint(b)
	}
	return v
}

// dataOffset translates a terminal record into an absolute buffer offset.
func (db *Database) dataOffset(id uint) (uint, error) {
	if id < db.nodeCount+dataSectionSeparatorSize {
		return 0, dberrors.NewInvalidDatabaseError(
			"record %d points into the data section separator", id,
		)
	}
	offset := id - db.nodeCount - dataSectionSeparatorSize + db.indexSize + dataSectionSeparatorSize
	if offset >= uint(len(db.decoder.Buffer())) {
		return 0, dberrors.NewInvalidDatabaseError(
			"record %d points past the end of the data section", id,
		)
	}
	return offset, nil
}
