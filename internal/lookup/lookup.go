// Package lookup defines what the HTTP layer needs from a country database.
package lookup

import (
	"errors"
	"net/netip"

	"github.com/peerwatch/geoipdb"
)

// ErrNotLoaded is returned while no database is available.
var ErrNotLoaded = errors.New("no database loaded")

// CountryLookup resolves IP addresses to ISO-3166 country codes.
type CountryLookup interface {
	// LookupCountry returns the country of addr. found is false when the
	// address is not covered by the database; country may be empty even
	// when found is true.
	LookupCountry(addr netip.Addr) (country string, found bool, err error)

	// Metadata returns the metadata of the database currently in use.
	Metadata() (geoipdb.Metadata, error)

	// Ready returns nil once a database is available.
	Ready() error
}
