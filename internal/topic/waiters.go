package topic

import (
	idpkg "github.com/restatedev/pubsub/pkg/id"
)

// pullOutcome carries the terminal result delivered to a parked pull.
type pullOutcome struct {
	res PullResult
	err error
}

// waiter is a parked pull awaiting data at offset.
type waiter struct {
	id     idpkg.ID
	offset uint64
	limit  int
	// ch is buffered so a late resolution of an already timed-out waiter
	// never blocks the publisher; the value is simply discarded.
	ch chan pullOutcome
}

func newWaiter(wid idpkg.ID, offset uint64, limit int) *waiter {
	return &waiter{id: wid, offset: offset, limit: limit, ch: make(chan pullOutcome, 1)}
}

// registry is the ordered set of pending waiters for one topic. All access
// is guarded by the owning topic's writer lock.
type registry struct {
	ws []*waiter
}

func (r *registry) add(w *waiter) { r.ws = append(r.ws, w) }

// remove drops the waiter with the given id. Returns false when the waiter
// was already resolved or rejected.
func (r *registry) remove(wid idpkg.ID) bool {
	for i, w := range r.ws {
		if w.id == wid {
			r.ws = append(r.ws[:i], r.ws[i+1:]...)
			return true
		}
	}
	return false
}

// takeBelow removes and returns, in registration order, every waiter whose
// offset is strictly below bound.
func (r *registry) takeBelow(bound uint64) []*waiter {
	var taken []*waiter
	kept := r.ws[:0]
	for _, w := range r.ws {
		if w.offset < bound {
			taken = append(taken, w)
		} else {
			kept = append(kept, w)
		}
	}
	r.ws = kept
	return taken
}

func (r *registry) len() int { return len(r.ws) }
