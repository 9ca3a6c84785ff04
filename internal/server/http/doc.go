// Package httpserver exposes the pubsub API over HTTP: JSON request/response
// endpoints for publish/pull/truncate/cursors, long-polling pull semantics,
// and Server-Sent Events for continuous subscribe.
package httpserver
