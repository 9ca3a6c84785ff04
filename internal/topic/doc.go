// Package topic implements the durable, offset-indexed topic log.
//
// # Overview
//
// Each topic is an independent log identified by namespace/name and
// persisted in Pebble. Keys are lexicographically ordered for efficient
// range scans:
//   - ns/{ns}/topic/{name}/m            (topic metadata: head, tail)
//   - ns/{ns}/topic/{name}/e/{off_be8}  (entries)
//   - ns/{ns}/cursor/{name}/{group}     (durable consumer cursors)
//
// Records are stored as: headerLen(uvarint) | header | payload |
// crc32c(header|payload).
//
// # Semantics
//
// head is the smallest valid offset; tail is one past the last appended
// message (head <= tail always). Pull below head fails with
// OffsetBelowHeadError; pull below tail returns the range [offset, tail)
// without blocking; pull at or above tail parks the caller on a waiter
// until Publish advances tail past its offset, until Truncate rejects it,
// or until the wait bound elapses with ErrPullTimeout.
//
// Mutating operations (Publish, Truncate) serialize on a per-topic writer
// lock, so waiter registration re-checks head/tail under that lock and no
// append can slip between a pull's miss and its registration. Truncate
// never resolves a waiter; it only rejects waiters whose offset falls
// below the new head.
//
// API surface (internal)
//
//	tp, _ := Open(db, "default", "orders")
//	off, _ := tp.Publish(ctx, header, payload)
//	res, err := tp.Pull(ctx, PullOptions{Wait: 30 * time.Second})
//	head, _ := tp.Truncate(ctx, 10)
package topic
