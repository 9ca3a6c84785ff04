package config

import (
	"os"
	"strconv"
)

// FromEnv overlays PUBSUB_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("PUBSUB_ALLOW_AUTO_CREATE_NAMESPACES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.AllowAutoCreateNamespaces = b
		}
	}
	if v := os.Getenv("PUBSUB_DEFAULT_NAMESPACE_NAME"); v != "" {
		cfg.DefaultNamespaceName = v
	}
	if v := os.Getenv("PUBSUB_NAMESPACE_NAME_REGEX"); v != "" {
		cfg.NamespaceNameRegex = v
	}
	if v := os.Getenv("PUBSUB_TOPIC_DEFAULTS_PULL_TIMEOUT_MS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.TopicDefaults.PullTimeoutMs = n
		}
	}
	if v := os.Getenv("PUBSUB_TOPIC_DEFAULTS_PULL_BATCH_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TopicDefaults.PullBatchLimit = n
		}
	}
	if v := os.Getenv("PUBSUB_TOPIC_DEFAULTS_PAYLOAD_MAX_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TopicDefaults.PayloadMaxBytes = n
		}
	}
	if v := os.Getenv("PUBSUB_TOPIC_DEFAULTS_HEADERS_MAX_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TopicDefaults.HeadersMaxBytes = n
		}
	}
}
