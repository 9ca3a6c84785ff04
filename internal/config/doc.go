// Package config provides loading and environment overlay for pubsub
// runtime configuration. It exposes a Default() baseline, a JSON file
// loader, and a PUBSUB_* environment overlay.
//
// Example:
//
//	cfg := config.Default()
//	if fileCfg, err := config.Load("/etc/pubsub.json"); err == nil {
//	    cfg = fileCfg
//	}
//	config.FromEnv(&cfg)
package config
