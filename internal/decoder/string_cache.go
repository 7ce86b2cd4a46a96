package decoder

import "sync"

// StringCache interns short strings by their buffer offset. Two letter
// upper case strings, which covers ISO country codes, come from a static
// table. Safe for concurrent use.
type StringCache struct {
	twoLetter [26 * 26]string

	mu    sync.RWMutex
	cache [512]cacheEntry
}

type cacheEntry struct {
	str    string
	offset uint
}

// NewStringCache creates a new bounded string cache.
func NewStringCache() *StringCache {
	sc := &StringCache{}
	for a := byte('A'); a <= 'Z'; a++ {
		for b := byte('A'); b <= 'Z'; b++ {
			sc.twoLetter[int(a-'A')*26+int(b-'A')] = string([]byte{a, b})
		}
	}
	return sc
}

// InternAt returns a canonical string for data[offset:offset+size].
func (sc *StringCache) InternAt(offset, size uint, data []byte) string {
	const (
		minCachedLen = 2   // single byte strings not worth caching
		maxCachedLen = 100 // reasonable upper bound for geographic strings
	)

	if size < minCachedLen || size > maxCachedLen {
		return string(data[offset : offset+size])
	}
	if size == 2 {
		a, b := data[offset], data[offset+1]
		if a >= 'A' && a <= 'Z' && b >= 'A' && b <= 'Z' {
			return sc.twoLetter[int(a-'A')*26+int(b-'A')]
		}
	}

	i := offset % uint(len(sc.cache))

	sc.mu.RLock()
	entry := sc.cache[i]
	sc.mu.RUnlock()
	if entry.offset == offset && len(entry.str) == int(size) {
		return entry.str
	}

	str := string(data[offset : offset+size])

	sc.mu.Lock()
	sc.cache[i] = cacheEntry{offset: offset, str: str}
	sc.mu.Unlock()

	return str
}
