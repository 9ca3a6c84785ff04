package topic

import (
	"bytes"
	"testing"
)

func TestEntryKeysSortByOffset(t *testing.T) {
	prev := KeyTopicEntry("ns", "orders", 0)
	for _, off := range []uint64{1, 2, 255, 256, 1 << 20, 1 << 40} {
		k := KeyTopicEntry("ns", "orders", off)
		if bytes.Compare(prev, k) >= 0 {
			t.Fatalf("keys not increasing at offset %d", off)
		}
		if entryOffset(k) != off {
			t.Fatalf("round trip offset %d, got %d", off, entryOffset(k))
		}
		prev = k
	}
}

func TestKeyPrefixesDisjoint(t *testing.T) {
	meta := KeyTopicMeta("ns", "orders")
	entry := KeyTopicEntry("ns", "orders", 0)
	cursor := KeyCursor("ns", "orders", "g1")
	if bytes.HasPrefix(entry, meta) || bytes.HasPrefix(meta, entry) {
		t.Fatalf("meta and entry keys overlap")
	}
	if bytes.HasPrefix(cursor, meta) {
		t.Fatalf("cursor and meta keys overlap")
	}
}

func TestKeysIsolateTopics(t *testing.T) {
	a := KeyTopicEntry("ns", "a", 7)
	b := KeyTopicEntry("ns", "b", 7)
	if bytes.Equal(a, b) {
		t.Fatalf("different topics share entry keys")
	}
	x := KeyTopicEntry("ns1", "a", 7)
	y := KeyTopicEntry("ns2", "a", 7)
	if bytes.Equal(x, y) {
		t.Fatalf("different namespaces share entry keys")
	}
}
