package topic

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	pebblestore "github.com/restatedev/pubsub/internal/storage/pebble"
	idpkg "github.com/restatedev/pubsub/pkg/id"
)

// DefaultPullTimeout bounds a parked pull when PullOptions.Wait is unset.
const DefaultPullTimeout = 30 * time.Second

// Message is one stored entry.
type Message struct {
	Offset  uint64
	Header  []byte
	Payload []byte
}

// PullResult is the successful outcome of a pull.
type PullResult struct {
	Messages   []Message
	NextOffset uint64
}

// PullOptions configures a single pull.
type PullOptions struct {
	// Offset is the requested read position. Nil means "start from the
	// current tail", i.e. only messages published after this call.
	Offset *uint64
	// Wait bounds how long a pull with no data parks before failing with
	// ErrPullTimeout. Non-positive uses DefaultPullTimeout.
	Wait time.Duration
	// Limit caps the number of returned messages. Zero means no cap.
	Limit int
}

// Topic is the per-key log actor. Mutations (Publish, Truncate, waiter
// registration) serialize on the writer lock; pull fast paths share the
// read lock and observe a consistent head/tail snapshot.
type Topic struct {
	db        *pebblestore.DB
	namespace string
	name      string

	ids *idpkg.Generator

	mu      sync.RWMutex
	head    uint64
	tail    uint64
	waiters registry
}

// Open initializes a Topic and loads head/tail from metadata (if any).
func Open(db *pebblestore.DB, namespace, name string) (*Topic, error) {
	t := &Topic{db: db, namespace: namespace, name: name, ids: idpkg.NewGenerator()}
	meta, err := db.Get(KeyTopicMeta(namespace, name))
	if err == nil && len(meta) >= 16 {
		t.head = binary.BigEndian.Uint64(meta[0:8])
		t.tail = binary.BigEndian.Uint64(meta[8:16])
	} else if err != nil && !pebblestore.IsNotFound(err) {
		return nil, err
	}
	return t, nil
}

// Namespace returns the owning namespace.
func (t *Topic) Namespace() string { return t.namespace }

// Name returns the topic name.
func (t *Topic) Name() string { return t.name }

// Stats returns the current head and tail.
func (t *Topic) Stats() (head, tail uint64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.head, t.tail
}

// PendingWaiters reports how many pulls are currently parked.
func (t *Topic) PendingWaiters() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.waiters.len()
}

func encodeMeta(head, tail uint64) []byte {
	var b [16]byte
	binary.BigEndian.PutUint64(b[0:8], head)
	binary.BigEndian.PutUint64(b[8:16], tail)
	return b[:]
}

// EnsureMeta materializes the durable head/tail record for an empty topic
// so it shows up in listings before the first publish. It holds the writer
// lock for the check and the write, so it can never clobber meta committed
// by a concurrent Publish or Truncate. Idempotent.
func (t *Topic) EnsureMeta(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.head != 0 || t.tail != 0 {
		return nil
	}
	if _, err := t.db.Get(KeyTopicMeta(t.namespace, t.name)); err == nil {
		return nil
	} else if !pebblestore.IsNotFound(err) {
		return err
	}
	return t.db.Set(KeyTopicMeta(t.namespace, t.name), encodeMeta(0, 0))
}

// Publish appends a message, durably advances tail, and resolves every
// parked pull whose offset is now below the new tail.
func (t *Topic) Publish(ctx context.Context, header, payload []byte) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	offset := t.tail
	b := t.db.NewBatch()
	defer b.Close()
	if err := b.Set(KeyTopicEntry(t.namespace, t.name, offset), EncodeRecord(header, payload), nil); err != nil {
		return 0, err
	}
	if err := b.Set(KeyTopicMeta(t.namespace, t.name), encodeMeta(t.head, offset+1), nil); err != nil {
		return 0, err
	}
	if err := t.db.CommitBatch(ctx, b); err != nil {
		return 0, err
	}
	t.tail = offset + 1

	for _, w := range t.waiters.takeBelow(t.tail) {
		res, err := t.readRange(w.offset, t.tail, w.limit)
		w.ch <- pullOutcome{res: res, err: err}
	}
	return offset, nil
}

// Pull returns messages from the requested offset, parking the caller when
// the offset is at or past the tail. See PullOptions for defaults.
func (t *Topic) Pull(ctx context.Context, opts PullOptions) (PullResult, error) {
	t.mu.RLock()
	head, tail := t.head, t.tail
	offset := tail
	if opts.Offset != nil {
		offset = *opts.Offset
	}
	if offset < head {
		t.mu.RUnlock()
		return PullResult{}, &OffsetBelowHeadError{Offset: offset, Head: head}
	}
	if offset < tail {
		res, err := t.readRange(offset, tail, opts.Limit)
		t.mu.RUnlock()
		return res, err
	}
	t.mu.RUnlock()

	w, res, registered, err := t.register(offset, opts.Limit)
	if err != nil {
		return PullResult{}, err
	}
	if !registered {
		return res, nil
	}

	wait := opts.Wait
	if wait <= 0 {
		wait = DefaultPullTimeout
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case out := <-w.ch:
		return out.res, out.err
	case <-timer.C:
		t.mu.Lock()
		removed := t.waiters.remove(w.id)
		t.mu.Unlock()
		if !removed {
			// Resolution raced the timer; the outcome is already buffered.
			out := <-w.ch
			return out.res, out.err
		}
		return PullResult{}, ErrPullTimeout
	case <-ctx.Done():
		t.mu.Lock()
		t.waiters.remove(w.id)
		t.mu.Unlock()
		return PullResult{}, ctx.Err()
	}
}

// register performs the three-way registration check under the writer lock.
// Because Publish and Truncate take the same lock, no append or truncation
// can slip between the pull's miss and this check.
func (t *Topic) register(offset uint64, limit int) (*waiter, PullResult, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if offset < t.head {
		return nil, PullResult{}, false, &OffsetBelowHeadError{Offset: offset, Head: t.head}
	}
	if offset < t.tail {
		res, err := t.readRange(offset, t.tail, limit)
		return nil, res, false, err
	}
	w := newWaiter(t.ids.Next(), offset, limit)
	t.waiters.add(w)
	return w, PullResult{}, true, nil
}

// Truncate discards up to count messages from the head, never past the
// tail. Parked pulls whose offset falls below the new head are rejected;
// the rest stay pending.
func (t *Topic) Truncate(ctx context.Context, count uint64) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	newHead := t.head + count
	if newHead < t.head || newHead > t.tail {
		newHead = t.tail
	}
	if newHead == t.head {
		return t.head, nil
	}

	b := t.db.NewBatch()
	defer b.Close()
	if err := b.DeleteRange(
		KeyTopicEntry(t.namespace, t.name, t.head),
		KeyTopicEntry(t.namespace, t.name, newHead),
		nil,
	); err != nil {
		return t.head, err
	}
	if err := b.Set(KeyTopicMeta(t.namespace, t.name), encodeMeta(newHead, t.tail), nil); err != nil {
		return t.head, err
	}
	if err := t.db.CommitBatch(ctx, b); err != nil {
		return t.head, err
	}

	for _, w := range t.waiters.takeBelow(newHead) {
		w.ch <- pullOutcome{err: &OffsetBelowHeadError{Offset: w.offset, Head: newHead}}
	}
	t.head = newHead
	return newHead, nil
}

// readRange loads entries in [from, to), capped at limit when limit > 0.
// Callers hold at least the read lock and guarantee from >= head.
func (t *Topic) readRange(from, to uint64, limit int) (PullResult, error) {
	low := KeyTopicEntry(t.namespace, t.name, from)
	hi := KeyTopicEntry(t.namespace, t.name, to)
	iter, err := t.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: hi})
	if err != nil {
		return PullResult{}, err
	}
	defer iter.Close()

	capacity := int(to - from)
	if limit > 0 && limit < capacity {
		capacity = limit
	}
	msgs := make([]Message, 0, capacity)
	for ok := iter.First(); ok && (limit == 0 || len(msgs) < limit); ok = iter.Next() {
		dec, okDec := DecodeRecord(iter.Value())
		if !okDec {
			continue
		}
		msgs = append(msgs, Message{Offset: entryOffset(iter.Key()), Header: dec.Header, Payload: dec.Payload})
	}

	next := to
	if limit > 0 && len(msgs) == limit && len(msgs) > 0 {
		next = msgs[len(msgs)-1].Offset + 1
	}
	return PullResult{Messages: msgs, NextOffset: next}, nil
}
