package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// collect reads n messages or fails after a second.
func collect(t *testing.T, ch chan []byte, n int) []string {
	t.Helper()
	out := make([]string, 0, n)
	timeout := time.After(time.Second)
	for len(out) < n {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		case <-timeout:
			t.Fatalf("got %d messages, want %d", len(out), n)
		}
	}
	return out
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ch := b.Subscribe()
	if n := b.ClientCount(); n != 1 {
		t.Fatalf("clients = %d, want 1", n)
	}
	b.Unsubscribe(ch)
	if n := b.ClientCount(); n != 0 {
		t.Fatalf("clients = %d after unsubscribe, want 0", n)
	}
}

func TestPublishEncodesEvent(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: TypeBuildFinished, Data: map[string]int{"published": 3}})

	select {
	case msg := <-ch:
		want := "event: build.finished\ndata: {\"published\":3}\n\n"
		if string(msg) != want {
			t.Errorf("msg = %q, want %q", msg, want)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishCollection_ThrottlesIndexChanged(t *testing.T) {
	b := NewBroker(time.Minute)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishCollection("sea")
	b.PublishCollection("sky")
	b.Publish(Event{Type: "marker"})

	var updated, index int
	// collection requests and plain events travel on separate channels, so
	// wait for all four messages in any order.
	for _, msg := range collect(t, ch, 4) {
		switch {
		case strings.HasPrefix(msg, "event: "+TypeIndexChanged):
			index++
		case strings.HasPrefix(msg, "event: "+TypeCollectionUpdated):
			updated++
		}
	}
	if updated != 2 || index != 1 {
		t.Errorf("collection.updated = %d, index.changed = %d; want 2 and 1", updated, index)
	}
}

type flushRecorder struct {
	*httptest.ResponseRecorder
	mu sync.Mutex
}

func (f *flushRecorder) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ResponseRecorder.Write(p)
}

func (f *flushRecorder) body() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Body.String()
}

func TestServeHTTP(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := &flushRecorder{ResponseRecorder: httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for b.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("handler never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	b.Publish(Event{Type: TypePoemsChanged, Data: map[string][]string{"paths": {"a.md"}}})
	deadline = time.Now().Add(time.Second)
	for !strings.Contains(w.body(), "event: poems.changed") {
		if time.Now().After(deadline) {
			t.Fatalf("event not streamed: %q", w.body())
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	<-done
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for i := 0; i < 100; i++ {
		b.Publish(Event{Type: "test", Data: i})
	}
	// Publish must not block on a subscriber that never reads.
	if b.ClientCount() != 1 {
		t.Error("slow subscriber should stay connected")
	}
}

func TestCloseIsFinal(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()

	b.Close()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("subscriber channel should be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}
	if b.ClientCount() != 0 {
		t.Fatal("no clients after close")
	}
	b.Publish(Event{Type: "late"})
	b.PublishCollection("late")
	b.Close()
}
