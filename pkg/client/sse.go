package client

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// SSEOptions controls a streaming subscribe over Server-Sent Events.
type SSEOptions struct {
	Offset     *uint64
	From       string
	Filter     string
	Limit      int
	AutoCommit bool
}

// SubscribeSSE consumes the server's event-stream endpoint, invoking handler
// per decoded message. It returns when the stream ends, handler fails, or
// ctx is done. Comment frames (keep-alives) are skipped.
func (c *Client) SubscribeSSE(ctx context.Context, ns, topic, group string, opts SSEOptions, handler func(Message) error) error {
	q := url.Values{"topic": {topic}}
	if ns != "" {
		q.Set("namespace", ns)
	}
	if group != "" {
		q.Set("group", group)
	}
	if opts.Offset != nil {
		q.Set("offset", strconv.FormatUint(*opts.Offset, 10))
	}
	if opts.From != "" {
		q.Set("from", opts.From)
	}
	if opts.Filter != "" {
		q.Set("filter", opts.Filter)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.AutoCommit {
		q.Set("auto_commit", "true")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/topics/subscribe?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64<<10), 4<<20)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var m Message
		if err := json.Unmarshal([]byte(line[len("data: "):]), &m); err != nil {
			continue
		}
		if err := handler(m); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
