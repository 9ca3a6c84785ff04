package runtime

import (
	"context"
	"errors"
	"sync"
	"time"

	cfgpkg "github.com/restatedev/pubsub/internal/config"
	"github.com/restatedev/pubsub/internal/namespace"
	pebblestore "github.com/restatedev/pubsub/internal/storage/pebble"
	"github.com/restatedev/pubsub/internal/topic"
)

// Options for building the Runtime.
type Options struct {
	DataDir       string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Config        cfgpkg.Config
}

// Runtime wires storage and config for a single-node instance.
type Runtime struct {
	db     *pebblestore.DB
	config cfgpkg.Config

	mu     sync.Mutex
	topics map[string]*topic.Topic
}

// Open initializes the underlying storage and returns a Runtime.
func Open(opts Options) (*Runtime, error) {
	db, err := pebblestore.Open(pebblestore.Options{
		DataDir:       opts.DataDir,
		Fsync:         opts.Fsync,
		FsyncInterval: opts.FsyncInterval,
	})
	if err != nil {
		return nil, err
	}
	return &Runtime{db: db, config: opts.Config, topics: map[string]*topic.Topic{}}, nil
}

// Close closes underlying resources.
func (r *Runtime) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// CheckHealth performs a simple storage health check.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.db == nil {
		return errors.New("db not open")
	}
	it, err := r.db.NewIter(nil)
	if err != nil {
		return err
	}
	return it.Close()
}

// EnsureNamespace creates a namespace record if absent.
func (r *Runtime) EnsureNamespace(name string) (namespace.Meta, error) {
	return namespace.EnsureNamespace(r.db, name)
}

// ListNamespaces returns all known namespaces.
func (r *Runtime) ListNamespaces() ([]string, error) {
	return namespace.List(r.db)
}

// OpenTopic returns the topic actor for the given key, creating it on first
// use. Exactly one instance exists per namespace/name pair, which is what
// serializes mutations per key.
func (r *Runtime) OpenTopic(ns, name string) (*topic.Topic, error) {
	key := ns + "/" + name
	r.mu.Lock()
	defer r.mu.Unlock()
	if tp, ok := r.topics[key]; ok {
		return tp, nil
	}
	tp, err := topic.Open(r.db, ns, name)
	if err != nil {
		return nil, err
	}
	r.topics[key] = tp
	return tp, nil
}

// DB exposes the underlying store for advanced operations (internal use).
func (r *Runtime) DB() *pebblestore.DB { return r.db }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }
