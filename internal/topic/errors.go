package topic

import (
	"errors"
	"fmt"
)

// ErrPullTimeout signals that a pull parked at the tail and its wait bound
// elapsed before new data arrived. Retryable: re-issue the pull with the
// same offset after a delay.
var ErrPullTimeout = errors.New("topic: pull timed out")

// OffsetBelowHeadError reports a pull at an offset that truncation has
// already discarded. Non-retryable: the requested history is gone.
type OffsetBelowHeadError struct {
	Offset uint64
	Head   uint64
}

func (e *OffsetBelowHeadError) Error() string {
	return fmt.Sprintf("topic: offset %d below head %d", e.Offset, e.Head)
}

// IsOffsetBelowHead reports whether err is an OffsetBelowHeadError.
func IsOffsetBelowHead(err error) bool {
	var obe *OffsetBelowHeadError
	return errors.As(err, &obe)
}
