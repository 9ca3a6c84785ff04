package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

// fakeTopic scripts pull responses for consumer-loop tests.
type fakeTopic struct {
	mu      sync.Mutex
	pulls   int
	commits []uint64
	// script maps pull attempt (1-based) to a response writer.
	script func(attempt int, req map[string]any, w http.ResponseWriter)
}

func (f *fakeTopic) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/topics/pull", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.pulls++
		attempt := f.pulls
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		f.script(attempt, req, w)
	})
	mux.HandleFunc("/v1/topics/commit", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Offset uint64 `json:"offset"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.commits = append(f.commits, req.Offset)
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/v1/topics/cursor", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"offset": 0, "committed": false})
	})
	return mux
}

func writeTimeout(w http.ResponseWriter) {
	w.WriteHeader(http.StatusRequestTimeout)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": "pull_timeout", "retryable": true})
}

func writeBatch(w http.ResponseWriter, msgs []Message, next uint64) {
	_ = json.NewEncoder(w).Encode(PullResult{Messages: msgs, NextOffset: next})
}

func TestPullTimeoutIsTyped(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := &fakeTopic{script: func(_ int, _ map[string]any, w http.ResponseWriter) {
		writeTimeout(w)
	}}
	srv := httptest.NewServer(f.handler())
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL})
	_, err := c.Pull(context.Background(), "default", "orders", PullOptions{})
	if !errors.Is(err, ErrPullTimeout) {
		t.Fatalf("err = %v, want ErrPullTimeout", err)
	}
}

func TestSubscribeRetriesSameOffsetAfterTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)
	var offsets []any
	f := &fakeTopic{}
	f.script = func(attempt int, req map[string]any, w http.ResponseWriter) {
		f.mu.Lock()
		offsets = append(offsets, req["offset"])
		f.mu.Unlock()
		switch attempt {
		case 1, 2:
			writeTimeout(w)
		default:
			writeBatch(w, []Message{
				{Offset: 0, Payload: []byte("a")},
				{Offset: 1, Payload: []byte("b")},
			}, 2)
		}
	}
	srv := httptest.NewServer(f.handler())
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL})
	var got []Message
	off := uint64(0)
	err := c.Subscribe(context.Background(), "default", "orders", SubscribeOptions{
		Offset:        &off,
		Limit:         2,
		RetryInterval: time.Millisecond,
	}, func(m Message) error {
		got = append(got, m)
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if len(got) != 2 || got[0].Offset != 0 || got[1].Offset != 1 {
		t.Fatalf("got = %+v", got)
	}
	// All three pulls must carry the same offset: timeouts never advance it.
	if len(offsets) != 3 {
		t.Fatalf("pulls = %d, want 3", len(offsets))
	}
	for i, o := range offsets {
		if v, ok := o.(float64); !ok || v != 0 {
			t.Fatalf("pull %d offset = %v, want 0", i+1, o)
		}
	}
}

func TestSubscribeStopsOnOffsetBelowHead(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := &fakeTopic{script: func(_ int, _ map[string]any, w http.ResponseWriter) {
		w.WriteHeader(http.StatusGone)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": "offset_below_head", "retryable": false, "offset": 0, "head": 7,
		})
	}}
	srv := httptest.NewServer(f.handler())
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL})
	off := uint64(0)
	err := c.Subscribe(context.Background(), "default", "orders", SubscribeOptions{Offset: &off}, func(Message) error {
		t.Fatal("no message expected")
		return nil
	})
	var obe *OffsetBelowHeadError
	if !errors.As(err, &obe) {
		t.Fatalf("err = %v, want OffsetBelowHeadError", err)
	}
	if obe.Head != 7 {
		t.Fatalf("head = %d, want 7", obe.Head)
	}
}

func TestSubscribeAutoCommit(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := &fakeTopic{}
	f.script = func(attempt int, _ map[string]any, w http.ResponseWriter) {
		if attempt == 1 {
			writeBatch(w, []Message{{Offset: 3, Payload: []byte("x")}}, 4)
			return
		}
		writeTimeout(w)
	}
	srv := httptest.NewServer(f.handler())
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL})
	off := uint64(3)
	err := c.Subscribe(context.Background(), "default", "orders", SubscribeOptions{
		Offset:     &off,
		Group:      "workers",
		AutoCommit: true,
		Limit:      1,
	}, func(Message) error { return nil })
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.commits) != 1 || f.commits[0] != 4 {
		t.Fatalf("commits = %v, want [4]", f.commits)
	}
}

func TestSubscribeContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := &fakeTopic{script: func(_ int, _ map[string]any, w http.ResponseWriter) {
		writeTimeout(w)
	}}
	srv := httptest.NewServer(f.handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := New(Options{BaseURL: srv.URL})
	done := make(chan error, 1)
	go func() {
		done <- c.Subscribe(ctx, "default", "orders", SubscribeOptions{RetryInterval: 5 * time.Millisecond}, func(Message) error { return nil })
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("subscribe did not stop")
	}
}

func TestSubscribeHandlerErrorStopsLoop(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := &fakeTopic{script: func(_ int, _ map[string]any, w http.ResponseWriter) {
		writeBatch(w, []Message{{Offset: 0, Payload: []byte("a")}}, 1)
	}}
	srv := httptest.NewServer(f.handler())
	defer srv.Close()

	boom := errors.New("boom")
	c := New(Options{BaseURL: srv.URL})
	off := uint64(0)
	err := c.Subscribe(context.Background(), "default", "orders", SubscribeOptions{Offset: &off}, func(Message) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want handler error", err)
	}
}

func TestSubscribeSSEParsesFrames(t *testing.T) {
	defer goleak.VerifyNone(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/topics/subscribe", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(": ok\n\n"))
		for i := 0; i < 2; i++ {
			b, _ := json.Marshal(Message{Offset: uint64(i), Payload: []byte{byte('a' + i)}})
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(b)
			_, _ = w.Write([]byte("\n\n"))
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL})
	var got []Message
	err := c.SubscribeSSE(context.Background(), "default", "orders", "", SSEOptions{From: "earliest", Limit: 2}, func(m Message) error {
		got = append(got, m)
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe sse: %v", err)
	}
	if len(got) != 2 || got[0].Offset != 0 || got[1].Offset != 1 {
		t.Fatalf("got = %+v", got)
	}
}
