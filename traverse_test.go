package geoipdb

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peerwatch/geoipdb/internal/dbtest"
)

type network struct {
	Prefix  string
	Country string
}

func collectNetworks(t *testing.T, db *Database, opts ...NetworksOption) []network {
	t.Helper()
	var got []network
	for res := range db.Networks(opts...) {
		require.NoError(t, res.Err())
		got = append(got, network{res.Prefix().String(), res.Country()})
	}
	return got
}

func TestNetworks(t *testing.T) {
	db := countryTree(t)

	assert.Equal(t, []network{
		{"1.0.0.0/24", "AU"},
		{"10.0.0.0/8", "DE"},
		{"81.2.69.0/24", "GB"},
		{"2001:db8::/32", "US"},
		{"2a02:cf40::/29", ""},
	}, collectNetworks(t, db, SkipAliasedNetworks))
}

func TestNetworksIncludesIPv4Aliases(t *testing.T) {
	db := countryTree(t)

	assert.Equal(t, []network{
		{"::100:0/120", "AU"},
		{"::a00:0/104", "DE"},
		{"::5102:4500/120", "GB"},
		{"1.0.0.0/24", "AU"},
		{"10.0.0.0/8", "DE"},
		{"81.2.69.0/24", "GB"},
		{"2001:0:100::/56", "AU"},
		{"2001:0:a00::/40", "DE"},
		{"2001:0:5102:4500::/56", "GB"},
		{"2001:db8::/32", "US"},
		{"2002:100::/40", "AU"},
		{"2002:a00::/24", "DE"},
		{"2002:5102:4500::/40", "GB"},
		{"2a02:cf40::/29", ""},
	}, collectNetworks(t, db))
}

func TestNetworksStopsEarly(t *testing.T) {
	db := countryTree(t)

	var got []string
	for res := range db.Networks(SkipAliasedNetworks) {
		got = append(got, res.Prefix().String())
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"1.0.0.0/24", "10.0.0.0/8"}, got)
}

// aliasedImage has its IPv4 subtree under ::ffff:0:0/96 and a second path
// into the same subtree at 8000::/1.
func aliasedImage() dbtest.Image {
	const ipv4Root = 96
	const nodeCount = ipv4Root + 1
	mapped := netip.AddrFrom4([4]byte{}).As16()

	data := dbtest.Encode(dbtest.Country("JP"))
	second := len(data)
	data = append(data, dbtest.Encode(dbtest.Country("KR"))...)

	records := make([][2]uint32, nodeCount)
	for i := range ipv4Root {
		bit := mapped[i/8] >> (7 - i%8) & 1
		records[i][bit] = uint32(i + 1)
		records[i][1-bit] = nodeCount
	}
	records[0][1] = ipv4Root
	records[ipv4Root] = [2]uint32{
		dbtest.DataRecord(nodeCount, 0),
		dbtest.DataRecord(nodeCount, second),
	}
	return dbtest.Image{Records: records, Data: data}
}

func TestNetworksAliases(t *testing.T) {
	db, err := FromBytes(aliasedImage().Bytes())
	require.NoError(t, err)

	country, _ := db.LookupCountry(netip.MustParseAddr("1.2.3.4"))
	assert.Equal(t, "JP", country)
	country, _ = db.LookupCountry(netip.MustParseAddr("200.0.0.1"))
	assert.Equal(t, "KR", country)
	country, _ = db.LookupCountry(netip.MustParseAddr("c000::1"))
	assert.Equal(t, "KR", country)

	assert.Equal(t, []network{
		{"0.0.0.0/1", "JP"},
		{"128.0.0.0/1", "KR"},
		{"8000::/2", "JP"},
		{"c000::/2", "KR"},
	}, collectNetworks(t, db))

	assert.Equal(t, []network{
		{"0.0.0.0/1", "JP"},
		{"128.0.0.0/1", "KR"},
	}, collectNetworks(t, db, SkipAliasedNetworks))
}

func TestNetworksClosed(t *testing.T) {
	db, err := FromBytes(aliasedImage().Bytes())
	require.NoError(t, err)
	require.NoError(t, db.Close())

	var errs []error
	for res := range db.Networks() {
		errs = append(errs, res.Err())
	}
	require.Len(t, errs, 1)
	assert.Error(t, errs[0])
}
