package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrPullTimeout reports that a pull parked server-side and no data arrived
// within the wait bound. Retryable: re-issue the pull at the same offset.
var ErrPullTimeout = errors.New("client: pull timed out")

// OffsetBelowHeadError reports a read position that truncation has already
// discarded. Terminal for that offset; reposition at Head or later.
type OffsetBelowHeadError struct {
	Offset uint64
	Head   uint64
}

func (e *OffsetBelowHeadError) Error() string {
	return fmt.Sprintf("client: offset %d below head %d", e.Offset, e.Head)
}

// Message is one delivered entry.
type Message struct {
	Offset  uint64            `json:"offset"`
	ID      []byte            `json:"id"`
	TsMs    int64             `json:"ts_ms"`
	Headers map[string]string `json:"headers,omitempty"`
	Payload []byte            `json:"payload"`
}

// PullResult is a batch of messages plus the offset to pull next.
type PullResult struct {
	Messages   []Message `json:"messages"`
	NextOffset uint64    `json:"next_offset"`
}

// TopicStats mirrors the server's stats response.
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

// PullOptions controls a single pull.
type PullOptions struct {
	Offset *uint64
	WaitMs int64
	Limit  int
	Group  string
}

// SubscribeOptions controls the consumer loop.
type SubscribeOptions struct {
	// Offset is the explicit start position. Nil falls back to the group
	// cursor, then the tail.
	Offset *uint64
	// Group selects a durable cursor; with AutoCommit the loop commits
	// after each handled message.
	Group      string
	AutoCommit bool
	// Limit stops the loop after N messages. 0 runs until ctx is done.
	Limit int
	// WaitMs is the per-pull long-poll bound. 0 uses the server default.
	WaitMs int64
	// RetryInterval is the pause before re-pulling after a timeout.
	RetryInterval time.Duration
}

// Options configures a Client.
type Options struct {
	// BaseURL is the server root, e.g. "http://127.0.0.1:8080".
	BaseURL string
	// HTTPClient overrides the default client. The default carries no
	// overall timeout so long polls are bounded by the server, not the
	// transport.
	HTTPClient *http.Client
}

// Client talks to a pubsub server over HTTP.
type Client struct {
	baseURL string
	hc      *http.Client
}

// New returns a Client for the given server.
func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{baseURL: strings.TrimRight(opts.BaseURL, "/"), hc: hc}
}

func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// decodeError turns an error response into a typed error where the status
// and body allow it.
func decodeError(resp *http.Response) error {
	var body struct {
		Error  string `json:"error"`
		Offset uint64 `json:"offset"`
		Head   uint64 `json:"head"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(raw, &body)
	switch resp.StatusCode {
	case http.StatusRequestTimeout:
		return ErrPullTimeout
	case http.StatusGone:
		return &OffsetBelowHeadError{Offset: body.Offset, Head: body.Head}
	}
	if body.Error != "" {
		return fmt.Errorf("client: %s: %s", resp.Status, body.Error)
	}
	return fmt.Errorf("client: unexpected status %s", resp.Status)
}

// EnsureNamespace creates the namespace if it does not exist.
func (c *Client) EnsureNamespace(ctx context.Context, ns string) error {
	return c.postJSON(ctx, "/v1/ns/create", map[string]string{"namespace": ns}, nil)
}

// CreateTopic materializes a topic. Idempotent.
func (c *Client) CreateTopic(ctx context.Context, ns, topic string) error {
	return c.postJSON(ctx, "/v1/topics/create", map[string]string{"namespace": ns, "topic": topic}, nil)
}

// ListTopics returns topic names in a namespace.
func (c *Client) ListTopics(ctx context.Context, ns string) ([]string, error) {
	var resp struct {
		Topics []string `json:"topics"`
	}
	q := url.Values{}
	if ns != "" {
		q.Set("namespace", ns)
	}
	if err := c.getJSON(ctx, "/v1/topics", q, &resp); err != nil {
		return nil, err
	}
	return resp.Topics, nil
}

// Publish appends one message and returns its offset and id. A non-empty
// key makes retried publishes idempotent.
func (c *Client) Publish(ctx context.Context, ns, topic string, payload []byte, headers map[string]string, key string) (uint64, []byte, error) {
	var resp struct {
		Offset uint64 `json:"offset"`
		ID     []byte `json:"id"`
	}
	err := c.postJSON(ctx, "/v1/topics/publish", map[string]any{
		"namespace": ns,
		"topic":     topic,
		"payload":   payload,
		"headers":   headers,
		"key":       key,
	}, &resp)
	if err != nil {
		return 0, nil, err
	}
	return resp.Offset, resp.ID, nil
}

// Pull performs a single long-poll read.
func (c *Client) Pull(ctx context.Context, ns, topic string, opts PullOptions) (PullResult, error) {
	var resp PullResult
	err := c.postJSON(ctx, "/v1/topics/pull", map[string]any{
		"namespace": ns,
		"topic":     topic,
		"offset":    opts.Offset,
		"wait_ms":   opts.WaitMs,
		"limit":     opts.Limit,
		"group":     opts.Group,
	}, &resp)
	if err != nil {
		return PullResult{}, err
	}
	return resp, nil
}

// Truncate drops up to count messages from the head; returns the new head.
func (c *Client) Truncate(ctx context.Context, ns, topic string, count uint64) (uint64, error) {
	var resp struct {
		Head uint64 `json:"head"`
	}
	err := c.postJSON(ctx, "/v1/topics/truncate", map[string]any{
		"namespace": ns,
		"topic":     topic,
		"count":     count,
	}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.Head, nil
}

// Stats fetches topic statistics.
func (c *Client) Stats(ctx context.Context, ns, topic string) (TopicStats, error) {
	var st TopicStats
	q := url.Values{"topic": {topic}}
	if ns != "" {
		q.Set("namespace", ns)
	}
	if err := c.getJSON(ctx, "/v1/topics/stats", q, &st); err != nil {
		return TopicStats{}, err
	}
	return st, nil
}

// Commit stores a consumer-group cursor.
func (c *Client) Commit(ctx context.Context, ns, topic, group string, offset uint64) error {
	return c.postJSON(ctx, "/v1/topics/commit", map[string]any{
		"namespace": ns,
		"topic":     topic,
		"group":     group,
		"offset":    offset,
	}, nil)
}

// Cursor loads a consumer-group cursor.
func (c *Client) Cursor(ctx context.Context, ns, topic, group string) (uint64, bool, error) {
	var resp struct {
		Offset    uint64 `json:"offset"`
		Committed bool   `json:"committed"`
	}
	q := url.Values{"topic": {topic}, "group": {group}}
	if ns != "" {
		q.Set("namespace", ns)
	}
	if err := c.getJSON(ctx, "/v1/topics/cursor", q, &resp); err != nil {
		return 0, false, err
	}
	return resp.Offset, resp.Committed, nil
}

// Subscribe runs the long-poll consumer loop, invoking handler for each
// message in offset order. Timeouts re-pull at the same offset; an
// OffsetBelowHeadError or handler error ends the loop.
func (c *Client) Subscribe(ctx context.Context, ns, topic string, opts SubscribeOptions, handler func(Message) error) error {
	offset := opts.Offset
	if offset == nil && opts.Group != "" {
		if cur, ok, err := c.Cursor(ctx, ns, topic, opts.Group); err == nil && ok {
			offset = &cur
		}
	}

	delivered := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := c.Pull(ctx, ns, topic, PullOptions{Offset: offset, WaitMs: opts.WaitMs, Group: opts.Group})
		if errors.Is(err, ErrPullTimeout) {
			if opts.RetryInterval > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(opts.RetryInterval):
				}
			}
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		for _, m := range res.Messages {
			if err := handler(m); err != nil {
				return err
			}
			delivered++
			if opts.AutoCommit && opts.Group != "" {
				if err := c.Commit(ctx, ns, topic, opts.Group, m.Offset+1); err != nil {
					return err
				}
			}
			if opts.Limit > 0 && delivered >= opts.Limit {
				return nil
			}
		}
		next := res.NextOffset
		offset = &next
	}
}
