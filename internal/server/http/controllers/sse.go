package controllers

import (
	"context"
	"encoding/json"
	"net/http"

	topicsvc "github.com/restatedev/pubsub/internal/services/topics"
)

// sseSink implements topicsvc.SubscribeSink for Server-Sent Events.
type sseSink struct {
	w http.ResponseWriter
	r *http.Request
}

// Send formats and writes one message as an SSE data event.
func (s sseSink) Send(m topicsvc.Message) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if _, err := s.w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := s.w.Write(b); err != nil {
		return err
	}
	_, err = s.w.Write([]byte("\n\n"))
	return err
}

// Context returns the request context for cancellation.
func (s sseSink) Context() context.Context {
	return s.r.Context()
}

// Flush pushes buffered events to the client.
func (s sseSink) Flush() error {
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
