package topicsvc

import (
	"encoding/binary"
	"encoding/json"

	idpkg "github.com/restatedev/pubsub/pkg/id"
)

// Record header layout: [8]ts_ms_be [16]id [rest]headers_json(optional).
const headerFixedLen = 8 + 16

func encodeHeader(tsMs int64, id idpkg.ID, headers map[string]string) ([]byte, error) {
	b := make([]byte, headerFixedLen)
	binary.BigEndian.PutUint64(b[:8], uint64(tsMs))
	copy(b[8:headerFixedLen], id.Bytes())
	if len(headers) > 0 {
		hb, err := json.Marshal(headers)
		if err != nil {
			return nil, err
		}
		b = append(b, hb...)
	}
	return b, nil
}

func decodeHeader(h []byte) (tsMs int64, id []byte, headers map[string]string) {
	if len(h) >= 8 {
		tsMs = int64(binary.BigEndian.Uint64(h[:8]))
	}
	if len(h) >= headerFixedLen {
		id = append([]byte{}, h[8:headerFixedLen]...)
	}
	if len(h) > headerFixedLen {
		var hm map[string]string
		if err := json.Unmarshal(h[headerFixedLen:], &hm); err == nil {
			headers = hm
		}
	}
	return tsMs, id, headers
}
