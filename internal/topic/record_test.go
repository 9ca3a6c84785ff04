package topic

import (
	"bytes"
	"testing"
)

func TestRecordRoundTrip(t *testing.T) {
	header := []byte("hdr")
	payload := []byte("payload-bytes")
	enc := EncodeRecord(header, payload)
	dec, ok := DecodeRecord(enc)
	if !ok {
		t.Fatalf("decode failed")
	}
	if !bytes.Equal(dec.Header, header) || !bytes.Equal(dec.Payload, payload) {
		t.Fatalf("mismatch: %q %q", dec.Header, dec.Payload)
	}
}

func TestRecordEmptyHeader(t *testing.T) {
	enc := EncodeRecord(nil, []byte("p"))
	dec, ok := DecodeRecord(enc)
	if !ok || len(dec.Header) != 0 || string(dec.Payload) != "p" {
		t.Fatalf("empty header round trip: ok=%v %+v", ok, dec)
	}
}

func TestRecordCorruptionDetected(t *testing.T) {
	enc := EncodeRecord([]byte("h"), []byte("payload"))
	enc[len(enc)/2] ^= 0xFF
	if _, ok := DecodeRecord(enc); ok {
		t.Fatalf("expected checksum failure")
	}
}

func TestRecordTruncatedInput(t *testing.T) {
	if _, ok := DecodeRecord([]byte{0x01}); ok {
		t.Fatalf("expected failure on short input")
	}
	enc := EncodeRecord([]byte("hh"), []byte("pp"))
	if _, ok := DecodeRecord(enc[:3]); ok {
		t.Fatalf("expected failure on truncated record")
	}
}
