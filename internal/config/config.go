package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	AllowAutoCreateNamespaces bool          `json:"allowAutoCreateNamespaces"`
	DefaultNamespaceName      string        `json:"defaultNamespaceName"`
	NamespaceNameRegex        string        `json:"namespaceNameRegex"`
	TopicDefaults             TopicDefaults `json:"topicDefaults"`
}

// TopicDefaults captures per-topic baseline limits and timings.
type TopicDefaults struct {
	// PullTimeoutMs bounds how long a pull with no data parks before it
	// returns a retryable timeout.
	PullTimeoutMs int64 `json:"pullTimeoutMs"`
	// PullBatchLimit caps how many messages a single pull returns.
	PullBatchLimit int `json:"pullBatchLimit"`
	// PayloadMaxBytes limits a single message payload.
	PayloadMaxBytes int `json:"payloadMaxBytes"`
	// HeadersMaxBytes limits the encoded user headers of a message.
	HeadersMaxBytes int `json:"headersMaxBytes"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		AllowAutoCreateNamespaces: true,
		DefaultNamespaceName:      "default",
		NamespaceNameRegex:        "[a-z0-9-_]{1,64}",
		TopicDefaults: TopicDefaults{
			PullTimeoutMs:   30_000,
			PullBatchLimit:  128,
			PayloadMaxBytes: 1 << 20,
			HeadersMaxBytes: 16 << 10,
		},
	}
}

// Load reads configuration from a JSON file. If path is empty, returns
// defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return Config{}, errors.New("yaml config not supported; use JSON")
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}
