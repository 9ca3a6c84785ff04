package client

import (
	"encoding/base64"
	"encoding/json"
	"unicode/utf8"

	apiclient "github.com/restatedev/pubsub/pkg/client"
)

// BaseURLFunc provides the base HTTP API URL (e.g., from env or flag).
type BaseURLFunc func() string

func newClient(baseURL BaseURLFunc) *apiclient.Client {
	return apiclient.New(apiclient.Options{BaseURL: baseURL()})
}

// decodedMessage returns a map with offset, id_b64 and one of payload_json,
// payload_text, or payload_b64, plus user headers when present.
func decodedMessage(m apiclient.Message) map[string]any {
	out := map[string]any{
		"offset": m.Offset,
		"id_b64": base64.StdEncoding.EncodeToString(m.ID),
	}
	if m.TsMs != 0 {
		out["ts_ms"] = m.TsMs
	}
	if len(m.Headers) > 0 {
		out["headers"] = m.Headers
	}
	payload := m.Payload
	// Try JSON first if it looks like JSON
	if len(payload) > 0 && (payload[0] == '{' || payload[0] == '[') {
		var v any
		if json.Unmarshal(payload, &v) == nil {
			out["payload_json"] = v
			return out
		}
	}
	// Then UTF-8 text if valid
	if utf8.Valid(payload) {
		out["payload_text"] = string(payload)
		return out
	}
	// Fallback to base64
	out["payload_b64"] = base64.StdEncoding.EncodeToString(payload)
	return out
}
