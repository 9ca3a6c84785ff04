package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	topicsvc "github.com/restatedev/pubsub/internal/services/topics"
	"github.com/restatedev/pubsub/internal/topic"
)

// Helper functions for common HTTP responses

// writeError writes an error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeJSON writes a JSON response with the given data.
func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

// writeNoContent writes a 204 No Content response.
func writeNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// writeCreated writes a 201 Created response.
func writeCreated(w http.ResponseWriter) {
	w.WriteHeader(http.StatusCreated)
}

// writeServiceError maps service errors onto the HTTP surface. A parked pull
// that times out is retryable (408); a truncated-away offset is terminal
// (410) and carries the current head so clients can reposition.
func writeServiceError(w http.ResponseWriter, err error) {
	var obe *topic.OffsetBelowHeadError
	switch {
	case errors.Is(err, topic.ErrPullTimeout):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusRequestTimeout)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "pull_timeout", "retryable": true})
	case errors.As(err, &obe):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusGone)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":     "offset_below_head",
			"retryable": false,
			"offset":    obe.Offset,
			"head":      obe.Head,
		})
	case errors.Is(err, topicsvc.ErrPayloadTooLarge), errors.Is(err, topicsvc.ErrHeadersTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, topicsvc.ErrNamespaceUnknown):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, topicsvc.ErrTopicNameEmpty):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// parseLimit parses a limit string; returns 0 for empty or invalid values.
func parseLimit(limitStr string) int {
	if limitStr == "" {
		return 0
	}
	if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
		return limit
	}
	return 0
}

// parseOffset parses an optional offset query value.
func parseOffset(s string) *uint64 {
	if s == "" {
		return nil
	}
	if v, err := strconv.ParseUint(s, 10, 64); err == nil {
		return &v
	}
	return nil
}
