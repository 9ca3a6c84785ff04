package topicsvc

import (
	"context"
)

// Message is a decoded entry as exposed by the service surface.
type Message struct {
	Offset  uint64            `json:"offset"`
	ID      []byte            `json:"id"`
	TsMs    int64             `json:"ts_ms"`
	Headers map[string]string `json:"headers,omitempty"`
	Payload []byte            `json:"payload"`
}

// PullOptions controls a single pull.
type PullOptions struct {
	// Offset is the requested read position. Nil falls back to the group
	// cursor (when Group is set), otherwise the current tail.
	Offset *uint64
	// WaitMs bounds how long the pull parks when no data is available.
	// Non-positive uses the configured default.
	WaitMs int64
	// Limit caps the batch size. Non-positive uses the configured default.
	Limit int
	// Group selects a consumer-group cursor as the fallback start position.
	Group string
}

// PullResult is a batch of messages plus the offset to pull next.
type PullResult struct {
	Messages   []Message `json:"messages"`
	NextOffset uint64    `json:"next_offset"`
}

// TopicStats summarizes a topic's retained range and consumer state.
type TopicStats struct {
	Namespace    string            `json:"namespace"`
	Topic        string            `json:"topic"`
	Head         uint64            `json:"head"`
	Tail         uint64            `json:"tail"`
	Count        uint64            `json:"count"`
	PendingPulls int               `json:"pending_pulls"`
	Subscribers  int               `json:"subscribers"`
	Cursors      map[string]uint64 `json:"cursors,omitempty"`
}

// SubscribeOptions controls the starting position and delivery of a
// subscribe loop.
// From: "latest" (default) or "earliest"; ignored when Offset is set or a
// group cursor exists.
type SubscribeOptions struct {
	Offset *uint64
	From   string
	// Filter is an optional CEL expression evaluated per message.
	// When empty, all messages are delivered.
	Filter string
	// Limit is the maximum number of messages to deliver before stopping.
	// When 0, the loop runs until the sink's context is done.
	Limit int
	// AutoCommit advances the group cursor after each delivered message.
	AutoCommit bool
}

// SubscribeSink is implemented by transports to receive streamed messages.
type SubscribeSink interface {
	Send(Message) error
	Context() context.Context
	Flush() error
}
