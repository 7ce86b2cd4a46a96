//go:build plan9 || js || wasip1

package geoipdb

import (
	"io"
	"os"
)

// Platforms without mmap read the file into memory instead.
func mmap(f *os.File, length int) ([]byte, error) {
	data := make([]byte, length)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, err
	}
	return data, nil
}

func munmap([]byte) error { return nil }
