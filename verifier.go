package geoipdb

import (
	"fmt"

	"github.com/peerwatch/geoipdb/internal/dberrors"
)

// Verify checks the integrity of the whole database: the metadata, every
// record of the search tree, the data section separator and every value a
// record points to. Lookups never require it; it is meant for tooling.
func (db *Database) Verify() error {
	if err := db.verifyMetadata(); err != nil {
		return err
	}
	offsets, err := db.verifySearchTree()
	if err != nil {
		return err
	}
	for _, b := range db.buffer[db.indexSize : db.indexSize+dataSectionSeparatorSize] {
		if b != 0 {
			return dberrors.NewInvalidDatabaseError("unexpected byte in data separator: %v", b)
		}
	}
	for offset, id := range offsets {
		if _, _, err := db.decoder.Decode(offset); err != nil {
			return fmt.Errorf("decoding record %d: %w", id, err)
		}
	}
	return nil
}

func (db *Database) verifyMetadata() error {
	m := db.Metadata
	switch {
	case m.BinaryFormatMajorVersion != supportedFormatVersion:
		return testError("binary_format_major_version", supportedFormatVersion, m.BinaryFormatMajorVersion)
	case m.IPVersion != supportedIPVersion:
		return testError("ip_version", supportedIPVersion, m.IPVersion)
	case m.RecordSize != supportedRecordSize:
		return testError("record_size", supportedRecordSize, m.RecordSize)
	case m.DatabaseType == "":
		return testError("database_type", "non-empty string", m.DatabaseType)
	case m.NodeCount == 0:
		return testError("node_count", "positive integer", m.NodeCount)
	case m.BuildEpoch == 0:
		return testError("build_epoch", "positive integer", m.BuildEpoch)
	}
	return nil
}

// verifySearchTree checks every record and returns the data offsets they
// reference, keyed to one record id pointing at each.
func (db *Database) verifySearchTree() (map[uint]uint, error) {
	offsets := make(map[uint]uint)
	for node := range db.nodeCount {
		for bit := range uint(2) {
			id := db.readRecord(node, bit)
			if id <= db.nodeCount {
				continue
			}
			offset, err := db.dataOffset(id)
			if err != nil {
				return nil, fmt.Errorf("node %d: %w", node, err)
			}
			offsets[offset] = id
		}
	}
	return offsets, nil
}

func testError(field string, expected, actual any) error {
	return dberrors.NewInvalidDatabaseError(
		"%v - Expected: %v Actual: %v", field, expected, actual,
	)
}
