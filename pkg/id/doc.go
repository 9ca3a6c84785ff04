// Package id provides 128-bit, lexicographically sortable message
// identifiers.
//
// # Format
//
// An ID is 16 bytes big-endian: [8 bytes ms_timestamp][8 bytes sequence].
// Byte-wise comparison therefore preserves creation order, and IDs minted
// within the same millisecond stay strictly increasing by sequence.
//
// # Monotonicity
//
// Generator guarantees per-process monotonicity: if the wall clock regresses
// it pins to the last observed millisecond and keeps incrementing the
// sequence; if the sequence would wrap inside one millisecond it waits for
// the next one.
//
// Usage
//
//	g := id.NewGenerator()
//	mid := g.Next()
//	_ = mid.String() // 32-char hex
package id
