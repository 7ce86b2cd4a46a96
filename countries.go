package geoipdb

import "github.com/peerwatch/geoipdb/cache"

// countryResolver memoizes the country code decoded for each terminal
// record. Records without a usable country resolve to "" and are memoized
// as well.
type countryResolver struct {
	cache  cache.Cache
	decode func(id uint) string
}

func (r countryResolver) resolve(id uint) string {
	if country, ok := r.cache.Load(id); ok {
		return country
	}
	country := r.decode(id)
	r.cache.Store(id, country)
	return country
}

// decodeCountry returns country.iso_code from the record at id. Malformed
// records yield "".
func (db *Database) decodeCountry(id uint) string {
	offset, err := db.dataOffset(id)
	if err != nil {
		return ""
	}
	record, _, err := db.decoder.Decode(offset)
	if err != nil {
		return ""
	}
	iso, ok := record.Path("country", "iso_code")
	if !ok {
		return ""
	}
	country, _ := iso.AsString()
	return country
}
