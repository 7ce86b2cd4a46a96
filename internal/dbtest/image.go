package dbtest

import (
	"bytes"
	"fmt"
	"net/netip"
)

// MetadataMarker introduces the metadata section.
var MetadataMarker = []byte("\xAB\xCD\xEFMaxMind.com")

// SeparatorSize is the width of the zero block between index and data.
const SeparatorSize = 16

// Image is the raw layout of a database: index records, data section and
// metadata.
type Image struct {
	// Records holds the left and right record of every node.
	Records [][2]uint32
	// Data is the encoded data section.
	Data []byte
	// Metadata is encoded after the marker.
	Metadata Map
	// Pad adds zero bytes between the data section and the marker.
	Pad int
}

// DefaultMetadata returns a metadata map that passes validation.
func DefaultMetadata(nodeCount uint32) Map {
	return Map{
		{"binary_format_major_version", uint16(2)},
		{"binary_format_minor_version", uint16(0)},
		{"build_epoch", uint64(1700000000)},
		{"database_type", "Test-Country"},
		{"description", Map{{"en", "Test Database"}}},
		{"ip_version", uint16(6)},
		{"languages", []any{"en"}},
		{"node_count", nodeCount},
		{"record_size", uint16(24)},
	}
}

// DataRecord returns the record value pointing at dataOffset within the
// data section of a tree with nodeCount nodes.
func DataRecord(nodeCount uint32, dataOffset int) uint32 {
	return nodeCount + SeparatorSize + uint32(dataOffset)
}

// Bytes serializes the image. A nil Metadata map is replaced with
// DefaultMetadata.
func (im Image) Bytes() []byte {
	meta := im.Metadata
	if meta == nil {
		meta = DefaultMetadata(uint32(len(im.Records)))
	}
	var buf bytes.Buffer
	for _, rec := range im.Records {
		for _, r := range rec {
			if r >= 1<<24 {
				panic(fmt.Sprintf("dbtest: record %d does not fit in 24 bits", r))
			}
			buf.Write([]byte{byte(r >> 16), byte(r >> 8), byte(r)})
		}
	}
	buf.Write(make([]byte, SeparatorSize))
	buf.Write(im.Data)
	buf.Write(make([]byte, im.Pad))
	buf.Write(MetadataMarker)
	buf.Write(Encode(meta))
	return buf.Bytes()
}

// Tree builds a search tree from prefixes. Values are encoded once each and
// shared by every prefix inserted with an equal encoding.
type Tree struct {
	root    *treeNode
	data    []byte
	offsets map[string]int
}

type treeNode struct {
	child [2]*treeNode
	leaf  [2]int
}

func newTreeNode() *treeNode {
	return &treeNode{leaf: [2]int{-1, -1}}
}

// NewTree returns an empty tree.
func NewTree() *Tree {
	return &Tree{root: newTreeNode(), offsets: map[string]int{}}
}

// Insert maps prefix to value. IPv4 prefixes are stored under their
// IPv4-mapped IPv6 form. A more specific prefix can be inserted after a
// less specific one.
func (t *Tree) Insert(prefix netip.Prefix, value any) {
	addr := prefix.Addr()
	bits := prefix.Bits()
	if addr.Is4() {
		bits += 96
	}
	if bits <= 0 {
		panic("dbtest: cannot insert a zero length prefix")
	}
	ip := addr.As16()
	data := t.addData(Encode(value))

	n := t.root
	for i := 0; i < bits; i++ {
		bit := (ip[i>>3] >> (7 - uint(i%8))) & 1
		if i == bits-1 {
			n.child[bit] = nil
			n.leaf[bit] = data
			return
		}
		if n.child[bit] == nil {
			next := newTreeNode()
			if n.leaf[bit] >= 0 {
				next.leaf = [2]int{n.leaf[bit], n.leaf[bit]}
				n.leaf[bit] = -1
			}
			n.child[bit] = next
		}
		n = n.child[bit]
	}
}

func (t *Tree) addData(encoded []byte) int {
	if off, ok := t.offsets[string(encoded)]; ok {
		return off
	}
	off := len(t.data)
	t.data = append(t.data, encoded...)
	t.offsets[string(encoded)] = off
	return off
}

// Image lays out the tree breadth first with the root as node 0.
func (t *Tree) Image() Image {
	var order []*treeNode
	ids := map[*treeNode]uint32{}
	queue := []*treeNode{t.root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		ids[n] = uint32(len(order))
		order = append(order, n)
		for _, c := range n.child {
			if c != nil {
				queue = append(queue, c)
			}
		}
	}

	nodeCount := uint32(len(order))
	records := make([][2]uint32, len(order))
	for i, n := range order {
		for side := range 2 {
			switch {
			case n.child[side] != nil:
				records[i][side] = ids[n.child[side]]
			case n.leaf[side] >= 0:
				records[i][side] = DataRecord(nodeCount, n.leaf[side])
			default:
				records[i][side] = nodeCount
			}
		}
	}
	return Image{
		Records:  records,
		Data:     append([]byte(nil), t.data...),
		Metadata: DefaultMetadata(nodeCount),
	}
}

// Bytes is shorthand for t.Image().Bytes().
func (t *Tree) Bytes() []byte {
	return t.Image().Bytes()
}

// Country returns the usual record layout for a country code.
func Country(iso string) Map {
	return Map{
		{"continent", Map{{"code", "EU"}}},
		{"country", Map{{"iso_code", iso}, {"names", Map{{"en", iso}}}}},
	}
}
