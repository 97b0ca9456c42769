package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/poiesic/docpipe/core"
)

// Key prefixes for different data types
const (
	jobRecordPrefix    = "jobrec"
	jobParentPrefix    = "jobpar"
	vectorRecordPrefix = "vecrec"
	graphEntityPrefix  = "gphent"
	graphNamePrefix    = "gphnam"
	graphRelPrefix     = "gphrel"
	graphRelSrcPrefix  = "gphrsi"
)

// makeJobKey generates a key for a job record by ID.
func makeJobKey(id string) []byte {
	return []byte(jobRecordPrefix + ":" + id)
}

// makeJobParentKey generates a composite key for the parent lineage index.
// Format: prefix:parentID:childID
func makeJobParentKey(parentID, childID string) []byte {
	return []byte(jobParentPrefix + ":" + parentID + ":" + childID)
}

// makePartialJobParentKey generates the iteration prefix for lineage queries.
func makePartialJobParentKey(parentID string) []byte {
	return []byte(jobParentPrefix + ":" + parentID + ":")
}

// makeVectorKey generates a key for a vector record by content-addressed ID.
func makeVectorKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", vectorRecordPrefix, id))
}

// makeGraphEntityKey generates a key for a graph entity by ID.
func makeGraphEntityKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", graphEntityPrefix, id))
}

// makeGraphNameKey generates a composite key for the entity name index.
// Format: prefix:lowercasedName:entityID. Names are not unique across types,
// so the entity ID is part of the key.
func makeGraphNameKey(name string, id core.ID) []byte {
	prefix := []byte(graphNamePrefix + ":" + name + ":")
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	// BigEndian keeps lexicographic iteration order stable
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makePartialGraphNameKey generates the iteration prefix for name lookups.
func makePartialGraphNameKey(name string) []byte {
	return []byte(graphNamePrefix + ":" + name + ":")
}

// makeGraphRelKey generates a key for a graph relation by ID.
func makeGraphRelKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", graphRelPrefix, id))
}

// makeGraphRelSrcKey generates a composite key for the relation source index.
// Format: prefix:sourceID:relationID
func makeGraphRelSrcKey(sourceID, relID core.ID) []byte {
	prefix := []byte(graphRelSrcPrefix + ":")
	buf := make([]byte, len(prefix)+16)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(sourceID))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(relID))
	return buf
}

// makePartialGraphRelSrcKey generates the iteration prefix for relation
// queries by source entity.
func makePartialGraphRelSrcKey(sourceID core.ID) []byte {
	prefix := []byte(graphRelSrcPrefix + ":")
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(sourceID))
	return buf
}
