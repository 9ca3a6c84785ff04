package topic

import (
	"encoding/binary"
)

// CommitCursor durably stores the next-to-read offset for a consumer group.
// Idempotent and monotonic: a commit below the stored offset is ignored.
// The read-compare-write runs under the writer lock so concurrent commits
// cannot regress the cursor.
func (t *Topic) CommitCursor(group string, offset uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := KeyCursor(t.namespace, t.name, group)
	cur, err := t.db.Get(key)
	if err == nil && len(cur) >= 8 {
		prev := binary.BigEndian.Uint64(cur[:8])
		if offset <= prev {
			return nil
		}
	}
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], offset)
	return t.db.Set(key, b[:])
}

// Cursor loads the committed offset for a consumer group.
func (t *Topic) Cursor(group string) (uint64, bool) {
	cur, err := t.db.Get(KeyCursor(t.namespace, t.name, group))
	if err != nil || len(cur) < 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(cur[:8]), true
}
