package topic

import (
	"encoding/binary"
)

// Keyspace helpers for Pebble keys.
//
// Layout (byte-wise, lexicographically sortable):
// - ns/{ns}/topic/{name}/m
// - ns/{ns}/topic/{name}/e/{off_be8}
// - ns/{ns}/cursor/{name}/{group}

var (
	sep        = byte('/')
	nsPrefix   = []byte("ns/")
	topicSeg   = []byte("/topic/")
	cursorSeg  = []byte("/cursor/")
	metaSuffix = []byte("/m")
	entrySeg   = []byte("/e/")
)

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

// KeyTopicMeta builds the topic metadata key.
func KeyTopicMeta(namespace, name string) []byte {
	k := make([]byte, 0, len(namespace)+len(name)+16)
	k = append(k, nsPrefix...)
	k = append(k, namespace...)
	k = append(k, topicSeg...)
	k = append(k, name...)
	k = append(k, metaSuffix...)
	return k
}

// KeyTopicEntry builds the entry key with a big-endian offset so entries
// sort in offset order.
func KeyTopicEntry(namespace, name string, offset uint64) []byte {
	k := make([]byte, 0, len(namespace)+len(name)+24)
	k = append(k, nsPrefix...)
	k = append(k, namespace...)
	k = append(k, topicSeg...)
	k = append(k, name...)
	k = append(k, entrySeg...)
	k = appendBE8(k, offset)
	return k
}

// entryOffset recovers the offset from an entry key.
func entryOffset(key []byte) uint64 {
	return binary.BigEndian.Uint64(key[len(key)-8:])
}

// KeyCursor builds the durable cursor key for a consumer group.
func KeyCursor(namespace, name, group string) []byte {
	k := make([]byte, 0, len(namespace)+len(name)+len(group)+16)
	k = append(k, nsPrefix...)
	k = append(k, namespace...)
	k = append(k, cursorSeg...)
	k = append(k, name...)
	k = append(k, sep)
	k = append(k, group...)
	return k
}
