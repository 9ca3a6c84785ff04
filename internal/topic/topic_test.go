package topic

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	pebblestore "github.com/restatedev/pubsub/internal/storage/pebble"
)

func newTestDB(t *testing.T) *pebblestore.DB {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestTopic(t *testing.T) *Topic {
	t.Helper()
	tp, err := Open(newTestDB(t), "ns", "orders")
	if err != nil {
		t.Fatalf("open topic: %v", err)
	}
	return tp
}

func mustPublish(t *testing.T, tp *Topic, payload string) uint64 {
	t.Helper()
	off, err := tp.Publish(context.Background(), nil, []byte(payload))
	if err != nil {
		t.Fatalf("publish %q: %v", payload, err)
	}
	return off
}

func offsetPtr(v uint64) *uint64 { return &v }

func TestAppendThenRead(t *testing.T) {
	tp := newTestTopic(t)
	for i := 0; i < 5; i++ {
		if off := mustPublish(t, tp, fmt.Sprintf("m%d", i)); off != uint64(i) {
			t.Fatalf("offset %d, want %d", off, i)
		}
	}

	res, err := tp.Pull(context.Background(), PullOptions{Offset: offsetPtr(2)})
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if res.NextOffset != 5 {
		t.Fatalf("nextOffset %d, want 5", res.NextOffset)
	}
	if len(res.Messages) != 3 {
		t.Fatalf("messages %d, want 3", len(res.Messages))
	}
	for i, m := range res.Messages {
		if m.Offset != uint64(2+i) || string(m.Payload) != fmt.Sprintf("m%d", 2+i) {
			t.Fatalf("message %d: offset=%d payload=%q", i, m.Offset, m.Payload)
		}
	}
}

func TestPullLimitCapsBatch(t *testing.T) {
	tp := newTestTopic(t)
	for i := 0; i < 10; i++ {
		mustPublish(t, tp, fmt.Sprintf("m%d", i))
	}
	res, err := tp.Pull(context.Background(), PullOptions{Offset: offsetPtr(0), Limit: 4})
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if len(res.Messages) != 4 || res.NextOffset != 4 {
		t.Fatalf("limited pull: n=%d next=%d", len(res.Messages), res.NextOffset)
	}
}

func TestWakeOnPublish(t *testing.T) {
	tp := newTestTopic(t)

	type outcome struct {
		res PullResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := tp.Pull(context.Background(), PullOptions{Offset: offsetPtr(0), Wait: 2 * time.Second})
		done <- outcome{res, err}
	}()

	// Let the puller park before publishing.
	waitForWaiters(t, tp, 1)
	mustPublish(t, tp, "x")

	select {
	case out := <-done:
		if out.err != nil {
			t.Fatalf("pull: %v", out.err)
		}
		if len(out.res.Messages) != 1 || string(out.res.Messages[0].Payload) != "x" || out.res.NextOffset != 1 {
			t.Fatalf("unexpected result: %+v", out.res)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("puller never woke")
	}
}

func TestPullNoOffsetStartsAtTail(t *testing.T) {
	tp := newTestTopic(t)
	mustPublish(t, tp, "old")

	done := make(chan PullResult, 1)
	go func() {
		res, err := tp.Pull(context.Background(), PullOptions{Wait: 2 * time.Second})
		if err != nil {
			t.Errorf("pull: %v", err)
		}
		done <- res
	}()

	waitForWaiters(t, tp, 1)
	mustPublish(t, tp, "new")

	select {
	case res := <-done:
		if len(res.Messages) != 1 || string(res.Messages[0].Payload) != "new" {
			t.Fatalf("expected only the new message, got %+v", res)
		}
		if res.NextOffset != 2 {
			t.Fatalf("nextOffset %d, want 2", res.NextOffset)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timeout")
	}
}

func TestPullTimeout(t *testing.T) {
	tp := newTestTopic(t)
	_, err := tp.Pull(context.Background(), PullOptions{Wait: 50 * time.Millisecond})
	if !errors.Is(err, ErrPullTimeout) {
		t.Fatalf("expected ErrPullTimeout, got %v", err)
	}
	if n := tp.PendingWaiters(); n != 0 {
		t.Fatalf("waiter leaked after timeout: %d", n)
	}
}

func TestPullContextCancel(t *testing.T) {
	tp := newTestTopic(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := tp.Pull(ctx, PullOptions{Wait: 5 * time.Second})
		done <- err
	}()
	waitForWaiters(t, tp, 1)
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("pull did not observe cancellation")
	}
	if n := tp.PendingWaiters(); n != 0 {
		t.Fatalf("waiter leaked after cancel: %d", n)
	}
}

func TestPullBelowHeadFails(t *testing.T) {
	tp := newTestTopic(t)
	mustPublish(t, tp, "a")
	mustPublish(t, tp, "b")

	head, err := tp.Truncate(context.Background(), 1)
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if head != 1 {
		t.Fatalf("head %d, want 1", head)
	}

	_, err = tp.Pull(context.Background(), PullOptions{Offset: offsetPtr(0)})
	var obe *OffsetBelowHeadError
	if !errors.As(err, &obe) {
		t.Fatalf("expected OffsetBelowHeadError, got %v", err)
	}
	if obe.Offset != 0 || obe.Head != 1 {
		t.Fatalf("error fields: %+v", obe)
	}

	res, err := tp.Pull(context.Background(), PullOptions{Offset: offsetPtr(1)})
	if err != nil {
		t.Fatalf("pull(1): %v", err)
	}
	if len(res.Messages) != 1 || string(res.Messages[0].Payload) != "b" || res.NextOffset != 2 {
		t.Fatalf("pull(1): %+v", res)
	}
}

func TestTruncateCapsAtTail(t *testing.T) {
	tp := newTestTopic(t)
	for i := 0; i < 3; i++ {
		mustPublish(t, tp, fmt.Sprintf("m%d", i))
	}
	head, err := tp.Truncate(context.Background(), 100)
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if head != 3 {
		t.Fatalf("head %d, want tail 3", head)
	}
	h, tail := tp.Stats()
	if h != 3 || tail != 3 {
		t.Fatalf("stats: head=%d tail=%d", h, tail)
	}

	// A new publish lands at offset 3, above the capped head.
	if off := mustPublish(t, tp, "m3"); off != 3 {
		t.Fatalf("offset %d, want 3", off)
	}
}

func TestTruncateRejectsOnlyBelowNewHead(t *testing.T) {
	tp := newTestTopic(t)
	for i := 0; i < 3; i++ {
		mustPublish(t, tp, fmt.Sprintf("m%d", i))
	}

	// Waiter above the new head must stay parked; waiter below must be
	// rejected, never resolved.
	lowDone := make(chan error, 1)
	highDone := make(chan PullResult, 1)
	// Both park at >= tail so they register as waiters.
	go func() {
		_, err := tp.Pull(context.Background(), PullOptions{Offset: offsetPtr(3), Wait: 5 * time.Second})
		lowDone <- err
	}()
	go func() {
		res, err := tp.Pull(context.Background(), PullOptions{Offset: offsetPtr(5), Wait: 5 * time.Second})
		if err != nil {
			t.Errorf("high waiter: %v", err)
		}
		highDone <- res
	}()
	waitForWaiters(t, tp, 2)

	// Truncate everything: head = tail = 3; the waiter at 3 survives, the
	// one at 5 survives too (both >= newHead).
	if _, err := tp.Truncate(context.Background(), 100); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if n := tp.PendingWaiters(); n != 2 {
		t.Fatalf("expected both waiters pending, got %d", n)
	}

	// Publish one message: resolves the waiter at 3, leaves 5 parked.
	mustPublish(t, tp, "m3")
	if err := <-lowDone; err != nil {
		t.Fatalf("waiter at 3: %v", err)
	}
	if n := tp.PendingWaiters(); n != 1 {
		t.Fatalf("expected the offset-5 waiter pending, got %d", n)
	}

	// Publishing offsets 4 and 5 brings tail to 6 and resolves it.
	mustPublish(t, tp, "m4")
	mustPublish(t, tp, "m5")
	select {
	case res := <-highDone:
		if len(res.Messages) != 1 || res.Messages[0].Offset != 5 {
			t.Fatalf("offset-5 waiter got %+v", res)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("offset-5 waiter never resolved")
	}
}

func TestTruncateRejectsWaiterBelowNewHead(t *testing.T) {
	tp := newTestTopic(t)
	for i := 0; i < 3; i++ {
		mustPublish(t, tp, fmt.Sprintf("m%d", i))
	}

	// Registration only parks callers at or above the tail, so inject a
	// waiter behind it to exercise the reject branch on its own.
	w := newWaiter(tp.ids.Next(), 1, 0)
	tp.mu.Lock()
	tp.waiters.add(w)
	tp.mu.Unlock()

	if _, err := tp.Truncate(context.Background(), 2); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	select {
	case out := <-w.ch:
		var obe *OffsetBelowHeadError
		if !errors.As(out.err, &obe) {
			t.Fatalf("expected OffsetBelowHeadError, got %v", out.err)
		}
		if obe.Offset != 1 || obe.Head != 2 {
			t.Fatalf("error fields: %+v", obe)
		}
	default:
		t.Fatalf("waiter below new head was not rejected")
	}
	if n := tp.PendingWaiters(); n != 0 {
		t.Fatalf("rejected waiter still registered: %d", n)
	}
}

func TestSpecExampleTruncateThenPull(t *testing.T) {
	// publish "a","b" (tail=2); truncate(1) -> head=1; pull(0) fails
	// below-head(0,1); pull(1) returns {["b"], nextOffset:2}.
	tp := newTestTopic(t)
	mustPublish(t, tp, "a")
	mustPublish(t, tp, "b")
	if head, err := tp.Truncate(context.Background(), 1); err != nil || head != 1 {
		t.Fatalf("truncate: head=%d err=%v", head, err)
	}
	_, err := tp.Pull(context.Background(), PullOptions{Offset: offsetPtr(0)})
	var obe *OffsetBelowHeadError
	if !errors.As(err, &obe) || obe.Offset != 0 || obe.Head != 1 {
		t.Fatalf("pull(0): %v", err)
	}
	res, err := tp.Pull(context.Background(), PullOptions{Offset: offsetPtr(1)})
	if err != nil || len(res.Messages) != 1 || string(res.Messages[0].Payload) != "b" || res.NextOffset != 2 {
		t.Fatalf("pull(1): %+v err=%v", res, err)
	}
}

func TestNoLostWakeups(t *testing.T) {
	tp := newTestTopic(t)

	const (
		producers = 4
		perProd   = 25
		consumers = 3
		total     = producers * perProd
	)

	results := make([][]string, consumers)
	var wg sync.WaitGroup
	for c := 0; c < consumers; c++ {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			var offset uint64
			for len(results[c]) < total {
				res, err := tp.Pull(context.Background(), PullOptions{Offset: offsetPtr(offset), Wait: 5 * time.Second})
				if errors.Is(err, ErrPullTimeout) {
					continue
				}
				if err != nil {
					t.Errorf("consumer %d: %v", c, err)
					return
				}
				for _, m := range res.Messages {
					results[c] = append(results[c], string(m.Payload))
				}
				offset = res.NextOffset
			}
		}(c)
	}

	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProd; i++ {
				if _, err := tp.Publish(context.Background(), nil, []byte(fmt.Sprintf("p%d-%d", p, i))); err != nil {
					t.Errorf("producer %d: %v", p, err)
					return
				}
			}
		}(p)
	}

	wg.Wait()
	for c := 1; c < consumers; c++ {
		if len(results[c]) != total {
			t.Fatalf("consumer %d saw %d messages, want %d", c, len(results[c]), total)
		}
		for i := range results[0] {
			if results[c][i] != results[0][i] {
				t.Fatalf("consumer %d diverges at %d: %q vs %q", c, i, results[c][i], results[0][i])
			}
		}
	}
}

func TestReopenRecoversHeadAndTail(t *testing.T) {
	db := newTestDB(t)
	tp, err := Open(db, "ns", "orders")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for i := 0; i < 4; i++ {
		if _, err := tp.Publish(context.Background(), nil, []byte(fmt.Sprintf("m%d", i))); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	if _, err := tp.Truncate(context.Background(), 1); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	reopened, err := Open(db, "ns", "orders")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	head, tail := reopened.Stats()
	if head != 1 || tail != 4 {
		t.Fatalf("recovered head=%d tail=%d, want 1/4", head, tail)
	}
	res, err := reopened.Pull(context.Background(), PullOptions{Offset: offsetPtr(1)})
	if err != nil || len(res.Messages) != 3 {
		t.Fatalf("pull after reopen: %+v err=%v", res, err)
	}
}

func TestTopicsAreIndependent(t *testing.T) {
	db := newTestDB(t)
	a, _ := Open(db, "ns", "a")
	b, _ := Open(db, "ns", "b")
	if _, err := a.Publish(context.Background(), nil, []byte("only-a")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if _, tail := b.Stats(); tail != 0 {
		t.Fatalf("topic b should be empty, tail=%d", tail)
	}
	res, err := a.Pull(context.Background(), PullOptions{Offset: offsetPtr(0)})
	if err != nil || len(res.Messages) != 1 {
		t.Fatalf("topic a pull: %+v err=%v", res, err)
	}
}

func TestEnsureMetaMaterializesEmptyTopic(t *testing.T) {
	db := newTestDB(t)
	tp, err := Open(db, "ns", "orders")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := tp.EnsureMeta(context.Background()); err != nil {
		t.Fatalf("ensure meta: %v", err)
	}
	meta, err := db.Get(KeyTopicMeta("ns", "orders"))
	if err != nil || len(meta) != 16 {
		t.Fatalf("meta record: %v (%d bytes)", err, len(meta))
	}
	// Idempotent on an already-materialized topic.
	if err := tp.EnsureMeta(context.Background()); err != nil {
		t.Fatalf("ensure meta again: %v", err)
	}
}

func TestEnsureMetaPreservesPublishedMeta(t *testing.T) {
	db := newTestDB(t)
	tp, err := Open(db, "ns", "orders")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	mustPublish(t, tp, "m0")
	if err := tp.EnsureMeta(context.Background()); err != nil {
		t.Fatalf("ensure meta: %v", err)
	}

	reopened, err := Open(db, "ns", "orders")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if head, tail := reopened.Stats(); head != 0 || tail != 1 {
		t.Fatalf("recovered head=%d tail=%d, want 0/1", head, tail)
	}
	// The next publish must not reuse offset 0.
	off, err := reopened.Publish(context.Background(), nil, []byte("m1"))
	if err != nil || off != 1 {
		t.Fatalf("publish after reopen: offset=%d err=%v", off, err)
	}
}

func TestEnsureMetaRacingPublish(t *testing.T) {
	db := newTestDB(t)
	for i := 0; i < 200; i++ {
		name := fmt.Sprintf("t%d", i)
		tp, err := Open(db, "ns", name)
		if err != nil {
			t.Fatalf("open %s: %v", name, err)
		}
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := tp.Publish(context.Background(), nil, []byte("x")); err != nil {
				t.Errorf("publish %s: %v", name, err)
			}
		}()
		go func() {
			defer wg.Done()
			if err := tp.EnsureMeta(context.Background()); err != nil {
				t.Errorf("ensure meta %s: %v", name, err)
			}
		}()
		wg.Wait()

		reopened, err := Open(db, "ns", name)
		if err != nil {
			t.Fatalf("reopen %s: %v", name, err)
		}
		if _, tail := reopened.Stats(); tail != 1 {
			t.Fatalf("%s: durable tail=%d after publish, want 1", name, tail)
		}
	}
}

func waitForWaiters(t *testing.T, tp *Topic, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for tp.PendingWaiters() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d waiters (have %d)", n, tp.PendingWaiters())
		}
		time.Sleep(time.Millisecond)
	}
}
