// Package namespace stores namespace metadata records. Topics live under a
// namespace; namespaces are created lazily when auto-creation is allowed.
package namespace

import (
	"encoding/json"
	"time"

	pebblestore "github.com/restatedev/pubsub/internal/storage/pebble"
	"github.com/cockroachdb/pebble"
)

// Meta holds namespace metadata and optional limits.
type Meta struct {
	Name            string `json:"name"`
	CreatedAtMs     int64  `json:"createdAtMs"`
	PayloadMaxBytes int    `json:"payloadMaxBytes"`
	HeadersMaxBytes int    `json:"headersMaxBytes"`
}

// Defaults returns baseline limits for new namespaces.
func Defaults() Meta {
	return Meta{
		PayloadMaxBytes: 1 << 20,  // 1 MiB
		HeadersMaxBytes: 16 << 10, // 16 KiB
	}
}

var nsMetaPrefix = []byte("nsmeta/")

func nsMetaKey(ns string) []byte {
	k := make([]byte, 0, len(nsMetaPrefix)+len(ns))
	k = append(k, nsMetaPrefix...)
	k = append(k, ns...)
	return k
}

// EnsureNamespace creates a namespace meta record if absent, returning the
// effective meta. Idempotent.
func EnsureNamespace(db *pebblestore.DB, name string) (Meta, error) {
	key := nsMetaKey(name)
	if b, err := db.Get(key); err == nil && len(b) > 0 {
		var m Meta
		if err := json.Unmarshal(b, &m); err == nil {
			return m, nil
		}
		// rewrite below if the stored record is corrupted
	}
	m := Defaults()
	m.Name = name
	m.CreatedAtMs = time.Now().UnixMilli()
	buf, err := json.Marshal(m)
	if err != nil {
		return Meta{}, err
	}
	if err := db.Set(key, buf); err != nil {
		return Meta{}, err
	}
	return m, nil
}

// Get loads namespace meta without creating it.
func Get(db *pebblestore.DB, name string) (Meta, bool, error) {
	b, err := db.Get(nsMetaKey(name))
	if err != nil {
		if pebblestore.IsNotFound(err) {
			return Meta{}, false, nil
		}
		return Meta{}, false, err
	}
	var m Meta
	if err := json.Unmarshal(b, &m); err != nil {
		return Meta{}, false, err
	}
	return m, true, nil
}

// List returns the names of all known namespaces in lexical order.
func List(db *pebblestore.DB) ([]string, error) {
	hi := append(append([]byte{}, nsMetaPrefix...), 0xFF)
	it, err := db.NewIter(&pebble.IterOptions{LowerBound: nsMetaPrefix, UpperBound: hi})
	if err != nil {
		return nil, err
	}
	defer func() { _ = it.Close() }()
	var out []string
	for ok := it.First(); ok; ok = it.Next() {
		k := it.Key()
		if len(k) > len(nsMetaPrefix) {
			out = append(out, string(k[len(nsMetaPrefix):]))
		}
	}
	return out, nil
}
