package topicsvc

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/restatedev/pubsub/internal/namespace"
	"github.com/restatedev/pubsub/internal/runtime"
	"github.com/restatedev/pubsub/internal/topic"
	idpkg "github.com/restatedev/pubsub/pkg/id"
	logpkg "github.com/restatedev/pubsub/pkg/log"
)

// Validation errors surfaced to transports.
var (
	ErrPayloadTooLarge  = errors.New("topics: payload exceeds limit")
	ErrHeadersTooLarge  = errors.New("topics: headers exceed limit")
	ErrNamespaceUnknown = errors.New("topics: namespace does not exist")
	ErrTopicNameEmpty   = errors.New("topics: topic name is empty")
)

// Service provides publish/pull/subscribe operations on top of topic actors.
// It enforces namespace and size limits, deduplicates publishes carrying an
// idempotency key, and runs subscribe loops for streaming transports.
type Service struct {
	rt     *runtime.Runtime
	logger logpkg.Logger
	ids    *idpkg.Generator
	nsRe   *regexp.Regexp

	// activeSubs tracks live subscribe loops per ns + "|" + topic.
	subsMu     sync.Mutex
	activeSubs map[string]int
}

// New returns a Service using a default logger.
func New(rt *runtime.Runtime) *Service {
	return NewWithLogger(rt, nil)
}

// NewWithLogger constructs the service with an injected logger.
func NewWithLogger(rt *runtime.Runtime, logger logpkg.Logger) *Service {
	if logger == nil {
		logger = logpkg.NewLogger().With(logpkg.Component("topics"))
	}
	re := regexp.MustCompile("^(?:" + rt.Config().NamespaceNameRegex + ")$")
	return &Service{rt: rt, logger: logger, ids: idpkg.NewGenerator(), nsRe: re, activeSubs: map[string]int{}}
}

// resolveNamespace validates the namespace name and loads (or lazily
// creates) its meta record according to configuration.
func (s *Service) resolveNamespace(ns string) (namespace.Meta, error) {
	if ns == "" {
		ns = s.rt.Config().DefaultNamespaceName
	}
	if !s.nsRe.MatchString(ns) {
		return namespace.Meta{}, fmt.Errorf("topics: invalid namespace name %q", ns)
	}
	if s.rt.Config().AllowAutoCreateNamespaces {
		return s.rt.EnsureNamespace(ns)
	}
	m, ok, err := namespace.Get(s.rt.DB(), ns)
	if err != nil {
		return namespace.Meta{}, err
	}
	if !ok {
		return namespace.Meta{}, ErrNamespaceUnknown
	}
	return m, nil
}

func (s *Service) openTopic(ns, name string) (namespace.Meta, *topic.Topic, error) {
	meta, err := s.resolveNamespace(ns)
	if err != nil {
		return namespace.Meta{}, nil, err
	}
	if name == "" {
		return namespace.Meta{}, nil, ErrTopicNameEmpty
	}
	tp, err := s.rt.OpenTopic(meta.Name, name)
	if err != nil {
		return namespace.Meta{}, nil, err
	}
	return meta, tp, nil
}

// EnsureNamespace creates (or returns) the namespace meta record.
func (s *Service) EnsureNamespace(ctx context.Context, ns string) (namespace.Meta, error) {
	if ns == "" {
		ns = s.rt.Config().DefaultNamespaceName
	}
	if !s.nsRe.MatchString(ns) {
		return namespace.Meta{}, fmt.Errorf("topics: invalid namespace name %q", ns)
	}
	return s.rt.EnsureNamespace(ns)
}

// ListNamespaces returns all namespaces known to the system.
func (s *Service) ListNamespaces(ctx context.Context) ([]string, error) {
	return s.rt.ListNamespaces()
}

// CreateTopic materializes the topic's metadata so it shows up in listings
// before the first publish. Idempotent.
func (s *Service) CreateTopic(ctx context.Context, ns, name string) error {
	meta, tp, err := s.openTopic(ns, name)
	if err != nil {
		return err
	}
	if err := tp.EnsureMeta(ctx); err != nil {
		return err
	}
	s.logger.With(logpkg.Str("ns", meta.Name), logpkg.Str("topic", name)).Debug("topics.create")
	return nil
}

// ListTopics returns topic names in a namespace, in lexical order.
func (s *Service) ListTopics(ctx context.Context, ns string) ([]string, error) {
	meta, err := s.resolveNamespace(ns)
	if err != nil {
		return nil, err
	}
	prefix := topicScanPrefix(meta.Name)
	it, err := s.rt.DB().NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixUpperBound(prefix)})
	if err != nil {
		return nil, err
	}
	defer func() { _ = it.Close() }()
	var out []string
	var last string
	for ok := it.First(); ok; ok = it.Next() {
		k := it.Key()
		rest := k[len(prefix):]
		// Topic segment ends at the next separator ("/m", "/e/...", "/idem/...").
		i := bytes.IndexByte(rest, sep)
		if i <= 0 {
			continue
		}
		name := string(rest[:i])
		if name != last {
			out = append(out, name)
			last = name
		}
	}
	return out, nil
}

// Publish appends a message and returns its offset and generated id. An
// idempotency key in dedupKey makes retries return the original offset
// without appending again.
func (s *Service) Publish(ctx context.Context, ns, name string, payload []byte, headers map[string]string, dedupKey string) (uint64, []byte, error) {
	t0 := time.Now()
	meta, tp, err := s.openTopic(ns, name)
	if err != nil {
		return 0, nil, err
	}
	if max := s.payloadLimit(meta); max > 0 && len(payload) > max {
		return 0, nil, ErrPayloadTooLarge
	}

	if dedupKey != "" {
		if b, err := s.rt.DB().Get(idemKey(meta.Name, name, dedupKey)); err == nil && len(b) == 8 {
			return binary.BigEndian.Uint64(b), nil, nil
		}
	}

	id := s.ids.Next()
	header, err := encodeHeader(time.Now().UnixMilli(), id, headers)
	if err != nil {
		return 0, nil, err
	}
	if max := s.headersLimit(meta); max > 0 && len(header)-headerFixedLen > max {
		return 0, nil, ErrHeadersTooLarge
	}

	offset, err := tp.Publish(ctx, header, payload)
	if err != nil {
		return 0, nil, err
	}
	if dedupKey != "" {
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], offset)
		_ = s.rt.DB().Set(idemKey(meta.Name, name, dedupKey), b[:])
	}

	s.logger.With(
		logpkg.Str("ns", meta.Name),
		logpkg.Str("topic", name),
		logpkg.Uint64("offset", offset),
		logpkg.Int("bytes", len(payload)),
		logpkg.Int64("dur_ms", time.Since(t0).Milliseconds()),
	).Debug("topics.publish")
	return offset, id.Bytes(), nil
}

func (s *Service) payloadLimit(m namespace.Meta) int {
	if m.PayloadMaxBytes > 0 {
		return m.PayloadMaxBytes
	}
	return s.rt.Config().TopicDefaults.PayloadMaxBytes
}

func (s *Service) headersLimit(m namespace.Meta) int {
	if m.HeadersMaxBytes > 0 {
		return m.HeadersMaxBytes
	}
	return s.rt.Config().TopicDefaults.HeadersMaxBytes
}

// Pull reads a batch starting at the requested offset, parking up to the
// wait bound when the topic has no newer data. Timeouts surface as
// topic.ErrPullTimeout; truncated offsets as topic.OffsetBelowHeadError.
func (s *Service) Pull(ctx context.Context, ns, name string, opts PullOptions) (PullResult, error) {
	_, tp, err := s.openTopic(ns, name)
	if err != nil {
		return PullResult{}, err
	}

	offset := opts.Offset
	if offset == nil && opts.Group != "" {
		if cur, ok := tp.Cursor(opts.Group); ok {
			offset = &cur
		}
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = s.rt.Config().TopicDefaults.PullBatchLimit
	}
	wait := time.Duration(opts.WaitMs) * time.Millisecond
	if opts.WaitMs <= 0 {
		wait = time.Duration(s.rt.Config().TopicDefaults.PullTimeoutMs) * time.Millisecond
	}

	res, err := tp.Pull(ctx, topic.PullOptions{Offset: offset, Wait: wait, Limit: limit})
	if err != nil {
		return PullResult{}, err
	}
	out := PullResult{Messages: make([]Message, 0, len(res.Messages)), NextOffset: res.NextOffset}
	for _, m := range res.Messages {
		out.Messages = append(out.Messages, decodeMessage(m))
	}
	return out, nil
}

func decodeMessage(m topic.Message) Message {
	ts, id, headers := decodeHeader(m.Header)
	return Message{Offset: m.Offset, ID: id, TsMs: ts, Headers: headers, Payload: m.Payload}
}

// Truncate discards up to count messages from the head and returns the new
// head offset.
func (s *Service) Truncate(ctx context.Context, ns, name string, count uint64) (uint64, error) {
	meta, tp, err := s.openTopic(ns, name)
	if err != nil {
		return 0, err
	}
	newHead, err := tp.Truncate(ctx, count)
	if err != nil {
		return 0, err
	}
	s.logger.With(
		logpkg.Str("ns", meta.Name),
		logpkg.Str("topic", name),
		logpkg.Uint64("head", newHead),
	).Debug("topics.truncate")
	return newHead, nil
}

// Commit durably stores the next-to-read offset for a consumer group.
func (s *Service) Commit(ctx context.Context, ns, name, group string, offset uint64) error {
	if group == "" {
		return errors.New("topics: group is required")
	}
	_, tp, err := s.openTopic(ns, name)
	if err != nil {
		return err
	}
	return tp.CommitCursor(group, offset)
}

// Cursor loads the committed offset for a consumer group.
func (s *Service) Cursor(ctx context.Context, ns, name, group string) (uint64, bool, error) {
	_, tp, err := s.openTopic(ns, name)
	if err != nil {
		return 0, false, err
	}
	off, ok := tp.Cursor(group)
	return off, ok, nil
}

// Stats summarizes a topic's retained range, parked pulls, live subscribers
// and committed cursors.
func (s *Service) Stats(ctx context.Context, ns, name string) (TopicStats, error) {
	meta, tp, err := s.openTopic(ns, name)
	if err != nil {
		return TopicStats{}, err
	}
	head, tail := tp.Stats()
	st := TopicStats{
		Namespace:    meta.Name,
		Topic:        name,
		Head:         head,
		Tail:         tail,
		Count:        tail - head,
		PendingPulls: tp.PendingWaiters(),
		Subscribers:  s.ActiveSubscribers(meta.Name, name),
	}

	prefix := cursorScanPrefix(meta.Name, name)
	it, err := s.rt.DB().NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixUpperBound(prefix)})
	if err != nil {
		return TopicStats{}, err
	}
	defer func() { _ = it.Close() }()
	for ok := it.First(); ok; ok = it.Next() {
		k := it.Key()
		v := it.Value()
		if len(k) <= len(prefix) || len(v) < 8 {
			continue
		}
		if st.Cursors == nil {
			st.Cursors = map[string]uint64{}
		}
		st.Cursors[string(k[len(prefix):])] = binary.BigEndian.Uint64(v[:8])
	}
	return st, nil
}

// ActiveSubscribers reports the number of live subscribe loops on a topic.
func (s *Service) ActiveSubscribers(ns, name string) int {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	return s.activeSubs[ns+"|"+name]
}

func (s *Service) incSub(key string) {
	s.subsMu.Lock()
	s.activeSubs[key]++
	s.subsMu.Unlock()
}

func (s *Service) decSub(key string) {
	s.subsMu.Lock()
	if n := s.activeSubs[key]; n <= 1 {
		delete(s.activeSubs, key)
	} else {
		s.activeSubs[key] = n - 1
	}
	s.subsMu.Unlock()
}

// Subscribe runs a delivery loop pushing messages into the sink until the
// sink's context is done, the delivery limit is reached, or the read
// position is truncated away. Pull timeouts keep the loop alive.
func (s *Service) Subscribe(ctx context.Context, ns, name, group string, opts SubscribeOptions, sink SubscribeSink) error {
	meta, tp, err := s.openTopic(ns, name)
	if err != nil {
		return err
	}
	subKey := meta.Name + "|" + name
	s.incSub(subKey)
	defer s.decSub(subKey)

	filter, err := newCELFilter(opts.Filter)
	if err != nil {
		return err
	}

	offset := s.resolveStartOffset(tp, group, opts)
	limit := s.rt.Config().TopicDefaults.PullBatchLimit
	wait := time.Duration(s.rt.Config().TopicDefaults.PullTimeoutMs) * time.Millisecond

	s.logger.With(
		logpkg.Str("ns", meta.Name),
		logpkg.Str("topic", name),
		logpkg.Str("group", group),
		logpkg.Uint64("offset", offset),
	).Debug("topics.subscribe")

	delivered := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sink.Context().Done():
			return nil
		default:
		}

		res, err := tp.Pull(sink.Context(), topic.PullOptions{Offset: &offset, Wait: wait, Limit: limit})
		if errors.Is(err, topic.ErrPullTimeout) {
			continue
		}
		if err != nil {
			if sink.Context().Err() != nil {
				return nil
			}
			return err
		}

		sent := 0
		for _, raw := range res.Messages {
			m := decodeMessage(raw)
			if !filter.Eval(m) {
				continue
			}
			if err := sink.Send(m); err != nil {
				return err
			}
			sent++
			delivered++
			if opts.AutoCommit && group != "" {
				_ = tp.CommitCursor(group, m.Offset+1)
			}
			if opts.Limit > 0 && delivered >= opts.Limit {
				return sink.Flush()
			}
		}
		if sent > 0 {
			if err := sink.Flush(); err != nil {
				return err
			}
		}
		offset = res.NextOffset
	}
}

// resolveStartOffset picks the loop's first read position: explicit offset,
// then the group cursor, then From ("earliest" reads retained history,
// anything else starts at the tail).
func (s *Service) resolveStartOffset(tp *topic.Topic, group string, opts SubscribeOptions) uint64 {
	if opts.Offset != nil {
		return *opts.Offset
	}
	if group != "" {
		if cur, ok := tp.Cursor(group); ok {
			return cur
		}
	}
	head, tail := tp.Stats()
	if opts.From == "earliest" {
		return head
	}
	return tail
}
