package geoipdb

import "github.com/peerwatch/geoipdb/cache"

// Option configures a Database.
type Option func(*options)

type options struct {
	countries cache.Cache
}

// WithCountryCache sets the cache used to memoize the country resolved for
// each terminal record. The default is cache.NewMap().
func WithCountryCache(c cache.Cache) Option {
	return func(o *options) {
		o.countries = c
	}
}
