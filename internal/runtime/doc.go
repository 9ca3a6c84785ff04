// Package runtime wires storage and config into a single-node pubsub
// instance. It exposes Open/Close, basic health checks, and a per-key
// topic cache so every namespace/topic pair maps to exactly one live
// actor instance.
//
// Example:
//
//	cfg := config.Default()
//	rt, _ := runtime.Open(runtime.Options{DataDir: "./data", Fsync: pebblestore.FsyncModeAlways, Config: cfg})
//	defer rt.Close()
//	tp, _ := rt.OpenTopic("default", "orders")
//	_, _ = tp.Publish(context.Background(), nil, []byte("hello"))
package runtime
