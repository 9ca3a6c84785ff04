// Package client provides the `pubsub` command-line client.
//
// The CLI talks to the pubsub HTTP API to perform common topic operations
// from a terminal. It is primarily intended for developers and operators.
//
// # Address configuration
//
// The HTTP base URL is discovered by the application that embeds the
// commands via a BaseURLFunc. When using the standalone binary, it reads
// PUBSUB_HTTP and defaults to http://127.0.0.1:8080.
//
// Usage
//
//	pubsub topic create --namespace default --name demo
//
//	pubsub topic publish \
//	    --namespace default --topic demo \
//	    --data '{"hello":"world"}' \
//	    --key pub-123 \
//	    --header eventType=user.registered
//
//	pubsub topic pull --namespace default --topic demo --offset 0 --limit 10
//
//	pubsub topic stats --namespace default --topic demo
//
//	# Long-poll consumer loop; commits the group cursor after each message
//	pubsub topic subscribe --namespace default --topic demo --group ui --commit
//
//	# Tail over SSE without a group
//	pubsub topic tail --namespace default --topic demo --from earliest
//
//	# Drop the two oldest retained messages
//	pubsub topic truncate --namespace default --topic demo --count 2 --confirm
//
// Notes
//
//   - pull performs one long-poll request; a 408 means no data arrived
//     within the wait bound and the same offset can be retried.
//   - subscribe uses the long-poll loop from pkg/client; tail uses the SSE
//     endpoint with an optional server-side CEL --filter.
package client
