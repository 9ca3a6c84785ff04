package topicsvc

// Service keys layered over the topic keyspace.
//
// Keyspace (namespace-scoped):
// - ns/{ns}/topic/{topic}/idem/{key}  -> 8-byte big-endian offset
// - ns/{ns}/topic/                     (prefix for topic discovery)
// - ns/{ns}/cursor/{topic}/            (prefix for cursor discovery)

var (
	sep       = byte('/')
	nsPrefix  = []byte("ns/")
	topicSeg  = []byte("/topic/")
	cursorSeg = []byte("/cursor/")
	idemSeg   = []byte("/idem/")
)

func idemKey(ns, topic, key string) []byte {
	// ns/{ns}/topic/{topic}/idem/{key}
	b := make([]byte, 0, len(ns)+len(topic)+len(key)+20)
	b = append(b, nsPrefix...)
	b = append(b, ns...)
	b = append(b, topicSeg...)
	b = append(b, topic...)
	b = append(b, idemSeg...)
	b = append(b, key...)
	return b
}

func topicScanPrefix(ns string) []byte {
	// ns/{ns}/topic/
	b := make([]byte, 0, len(ns)+12)
	b = append(b, nsPrefix...)
	b = append(b, ns...)
	b = append(b, topicSeg...)
	return b
}

func cursorScanPrefix(ns, topic string) []byte {
	// ns/{ns}/cursor/{topic}/
	b := make([]byte, 0, len(ns)+len(topic)+14)
	b = append(b, nsPrefix...)
	b = append(b, ns...)
	b = append(b, cursorSeg...)
	b = append(b, topic...)
	b = append(b, sep)
	return b
}

// prefixUpperBound returns the smallest key greater than every key with the
// given prefix.
func prefixUpperBound(prefix []byte) []byte {
	return append(append([]byte{}, prefix...), 0xFF)
}
