// Package client is the Go client for the pubsub HTTP API.
//
// It covers the request/response endpoints (publish, pull, truncate, stats,
// cursors) and implements the long-poll consumer loop: Subscribe re-issues
// pulls at the same offset after server-side timeouts, advances through
// next_offset on data, and stops only on terminal errors or context
// cancellation.
package client
