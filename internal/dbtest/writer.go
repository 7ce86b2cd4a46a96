package dbtest

import (
	"bytes"
	"fmt"
	"net/netip"

	"github.com/maxmind/mmdbwriter"
	"github.com/maxmind/mmdbwriter/mmdbtype"
	"go4.org/netipx"
)

// Writer builds well-formed databases with mmdbwriter, using the same
// metadata as DefaultMetadata. IPv4 networks are also reachable through
// ::/96 and the 6to4 and Teredo ranges, as in MaxMind's own databases.
//
// Fixtures that must break the format on purpose use Image or Tree instead.
type Writer struct {
	tree *mmdbwriter.Tree
}

// NewWriter returns an empty writer.
func NewWriter() *Writer {
	tree, err := mmdbwriter.New(mmdbwriter.Options{
		DatabaseType:            "Test-Country",
		Description:             map[string]string{"en": "Test Database"},
		Languages:               []string{"en"},
		BuildEpoch:              1700000000,
		IPVersion:               6,
		RecordSize:              24,
		IncludeReservedNetworks: true,
	})
	if err != nil {
		panic(fmt.Sprintf("dbtest: creating writer: %v", err))
	}
	return &Writer{tree: tree}
}

// Insert maps prefix to value. Values take the same Go types as Encode,
// except Raw.
func (w *Writer) Insert(prefix netip.Prefix, value any) *Writer {
	if err := w.tree.Insert(netipx.PrefixIPNet(prefix), dataType(value)); err != nil {
		panic(fmt.Sprintf("dbtest: inserting %s: %v", prefix, err))
	}
	return w
}

// Bytes serializes the database.
func (w *Writer) Bytes() []byte {
	var buf bytes.Buffer
	if _, err := w.tree.WriteTo(&buf); err != nil {
		panic(fmt.Sprintf("dbtest: writing database: %v", err))
	}
	return buf.Bytes()
}

func dataType(v any) mmdbtype.DataType {
	switch v := v.(type) {
	case string:
		return mmdbtype.String(v)
	case []byte:
		return mmdbtype.Bytes(v)
	case bool:
		return mmdbtype.Bool(v)
	case uint16:
		return mmdbtype.Uint16(v)
	case uint32:
		return mmdbtype.Uint32(v)
	case uint64:
		return mmdbtype.Uint64(v)
	case int32:
		return mmdbtype.Int32(v)
	case float32:
		return mmdbtype.Float32(v)
	case float64:
		return mmdbtype.Float64(v)
	case []any:
		out := make(mmdbtype.Slice, len(v))
		for i, e := range v {
			out[i] = dataType(e)
		}
		return out
	case Map:
		out := make(mmdbtype.Map, len(v))
		for _, kv := range v {
			out[mmdbtype.String(kv.Key)] = dataType(kv.Value)
		}
		return out
	case map[string]any:
		out := make(mmdbtype.Map, len(v))
		for k, e := range v {
			out[mmdbtype.String(k)] = dataType(e)
		}
		return out
	default:
		panic(fmt.Sprintf("dbtest: cannot write %T", v))
	}
}
