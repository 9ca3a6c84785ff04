package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/restatedev/pubsub/internal/runtime"
	topicsvc "github.com/restatedev/pubsub/internal/services/topics"
)

// TopicsController handles all topic-related HTTP endpoints: publish,
// long-polling pull, truncation, cursors, stats and SSE subscribe.
type TopicsController struct {
	rt  *runtime.Runtime
	svc *topicsvc.Service
}

// NewTopicsController creates a new topics controller.
func NewTopicsController(rt *runtime.Runtime, svc *topicsvc.Service) *TopicsController {
	return &TopicsController{rt: rt, svc: svc}
}

// RegisterRoutes registers all topic routes with the given mux.
func (c *TopicsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/topics", c.handleListTopics)
	mux.HandleFunc("/v1/topics/create", c.handleCreate)
	mux.HandleFunc("/v1/topics/publish", c.handlePublish)
	mux.HandleFunc("/v1/topics/pull", c.handlePull)
	mux.HandleFunc("/v1/topics/truncate", c.handleTruncate)
	mux.HandleFunc("/v1/topics/stats", c.handleStats)
	mux.HandleFunc("/v1/topics/commit", c.handleCommit)
	mux.HandleFunc("/v1/topics/cursor", c.handleCursor)
	mux.HandleFunc("/v1/topics/subscribe", c.handleSubscribeSSE)
}

// handleListTopics lists topics in a namespace.
func (c *TopicsController) handleListTopics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	ns := r.URL.Query().Get("namespace")
	list, err := c.svc.ListTopics(r.Context(), ns)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if ns == "" {
		ns = c.rt.Config().DefaultNamespaceName
	}
	writeJSON(w, map[string]any{"namespace": ns, "topics": list})
}

type createReq struct {
	Namespace string `json:"namespace"`
	Topic     string `json:"topic"`
}

// handleCreate materializes a topic.
func (c *TopicsController) handleCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req createReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := c.svc.CreateTopic(r.Context(), req.Namespace, req.Topic); err != nil {
		writeServiceError(w, err)
		return
	}
	writeCreated(w)
}

type publishReq struct {
	Namespace string            `json:"namespace"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Headers   map[string]string `json:"headers,omitempty"`
	Key       string            `json:"key,omitempty"`
}

// handlePublish appends one message and returns its offset and id.
func (c *TopicsController) handlePublish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req publishReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	offset, id, err := c.svc.Publish(r.Context(), req.Namespace, req.Topic, req.Payload, req.Headers, req.Key)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, map[string]any{"offset": offset, "id": id})
}

type pullReq struct {
	Namespace string  `json:"namespace"`
	Topic     string  `json:"topic"`
	Offset    *uint64 `json:"offset,omitempty"`
	WaitMs    int64   `json:"wait_ms,omitempty"`
	Limit     int     `json:"limit,omitempty"`
	Group     string  `json:"group,omitempty"`
}

// handlePull performs a long-polling read. With no data at the requested
// offset the request parks server-side until new messages arrive or the
// wait bound elapses (408, retryable).
func (c *TopicsController) handlePull(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req pullReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	res, err := c.svc.Pull(r.Context(), req.Namespace, req.Topic, topicsvc.PullOptions{
		Offset: req.Offset,
		WaitMs: req.WaitMs,
		Limit:  req.Limit,
		Group:  req.Group,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, res)
}

type truncateReq struct {
	Namespace string `json:"namespace"`
	Topic     string `json:"topic"`
	Count     uint64 `json:"count"`
}

// handleTruncate drops up to count messages from the head.
func (c *TopicsController) handleTruncate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req truncateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	head, err := c.svc.Truncate(r.Context(), req.Namespace, req.Topic, req.Count)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, map[string]any{"head": head})
}

// handleStats returns head/tail, counts, parked pulls and cursors.
func (c *TopicsController) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	ns := r.URL.Query().Get("namespace")
	name := r.URL.Query().Get("topic")
	st, err := c.svc.Stats(r.Context(), ns, name)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, st)
}

type commitReq struct {
	Namespace string `json:"namespace"`
	Topic     string `json:"topic"`
	Group     string `json:"group"`
	Offset    uint64 `json:"offset"`
}

// handleCommit stores a consumer-group cursor.
func (c *TopicsController) handleCommit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req commitReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := c.svc.Commit(r.Context(), req.Namespace, req.Topic, req.Group, req.Offset); err != nil {
		writeServiceError(w, err)
		return
	}
	writeNoContent(w)
}

// handleCursor reads a consumer-group cursor.
func (c *TopicsController) handleCursor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	ns := r.URL.Query().Get("namespace")
	name := r.URL.Query().Get("topic")
	group := r.URL.Query().Get("group")
	if group == "" {
		writeError(w, http.StatusBadRequest, "Group parameter is required")
		return
	}
	offset, ok, err := c.svc.Cursor(r.Context(), ns, name, group)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, map[string]any{"group": group, "offset": offset, "committed": ok})
}

// handleSubscribeSSE streams messages over SSE.
// Query params: namespace, topic, group, offset, from=latest|earliest,
// filter, limit, auto_commit.
func (c *TopicsController) handleSubscribeSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	ns := r.URL.Query().Get("namespace")
	name := r.URL.Query().Get("topic")
	group := r.URL.Query().Get("group")

	var opts topicsvc.SubscribeOptions
	opts.Offset = parseOffset(r.URL.Query().Get("offset"))
	if r.URL.Query().Get("from") == "earliest" {
		opts.From = "earliest"
	}
	if filter := r.URL.Query().Get("filter"); filter != "" {
		// bound filter length to 2KiB to avoid abuse
		if len(filter) > 2048 {
			writeError(w, http.StatusBadRequest, "Filter too long")
			return
		}
		opts.Filter = filter
	}
	opts.Limit = parseLimit(r.URL.Query().Get("limit"))
	if v := r.URL.Query().Get("auto_commit"); v == "true" || v == "1" {
		opts.AutoCommit = true
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	// Initial comment line so clients see the stream is live before data.
	_, _ = w.Write([]byte(": ok\n\n"))
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	sink := sseSink{w: w, r: r}
	if err := c.svc.Subscribe(r.Context(), ns, name, group, opts, sink); err != nil {
		// Headers are already out; all we can do is stop the stream.
		return
	}
}
