// Package reload keeps a geoipdb.Database current while its file is
// replaced on disk.
package reload

import (
	"net/netip"
	"sync"

	"github.com/peerwatch/geoipdb"
	"github.com/peerwatch/geoipdb/internal/lookup"
)

// Holder owns the database in use and swaps it for a new one on reload.
// Lookups hold a read lock, so a replaced database is only closed once no
// lookup can still be reading its mapping.
type Holder struct {
	mu sync.RWMutex
	db *geoipdb.Database
}

var _ lookup.CountryLookup = (*Holder)(nil)

// NewHolder returns a Holder serving db, which may be nil.
func NewHolder(db *geoipdb.Database) *Holder {
	return &Holder{db: db}
}

// LookupCountry implements lookup.CountryLookup.
func (h *Holder) LookupCountry(addr netip.Addr) (string, bool, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.db == nil {
		return "", false, lookup.ErrNotLoaded
	}
	res := h.db.Lookup(addr)
	if err := res.Err(); err != nil {
		return "", false, err
	}
	return res.Country(), res.Found(), nil
}

// Metadata implements lookup.CountryLookup.
func (h *Holder) Metadata() (geoipdb.Metadata, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.db == nil {
		return geoipdb.Metadata{}, lookup.ErrNotLoaded
	}
	return h.db.Metadata, nil
}

// Ready implements lookup.CountryLookup.
func (h *Holder) Ready() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.db == nil {
		return lookup.ErrNotLoaded
	}
	return nil
}

// CachedCountries returns the number of records memoized by the current
// database.
func (h *Holder) CachedCountries() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.db == nil {
		return 0
	}
	return h.db.CachedCountries()
}

// Replace installs db and closes the database it replaces.
func (h *Holder) Replace(db *geoipdb.Database) error {
	h.mu.Lock()
	old := h.db
	h.db = db
	h.mu.Unlock()

	if old == nil {
		return nil
	}
	return old.Close()
}

// Close closes the current database. Lookups fail with
// lookup.ErrNotLoaded afterwards.
func (h *Holder) Close() error {
	return h.Replace(nil)
}
