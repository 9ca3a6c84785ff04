// Package topicsvc provides the topic-level publish/pull/subscribe
// operations built on the internal topic log.
//
// Responsibilities on top of the raw log:
//   - namespace validation and lazy creation
//   - payload and header limits (config defaults, namespace overrides)
//   - idempotent publish via a per-topic dedup index
//   - message envelope: an 8-byte big-endian publish timestamp (ms) and a
//     16-byte message id prefix the record header, followed by optional
//     JSON-encoded user headers
//   - durable consumer-group cursors and long-running subscribe loops with
//     optional CEL filtering
package topicsvc
