package publishers

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type stubPublisher struct {
	id     string
	err    error
	delay  time.Duration
	mu     sync.Mutex
	calls  int
	closed bool
}

func (s *stubPublisher) ID() string   { return s.id }
func (s *stubPublisher) Type() string { return "stub" }

func (s *stubPublisher) Publish(context.Context, Event) error {
	time.Sleep(s.delay)
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.err
}

func (s *stubPublisher) Close() error {
	s.closed = true
	return nil
}

func TestFanoutCountsDeliveriesAndJoinsFailures(t *testing.T) {
	ok := &stubPublisher{id: "ok"}
	bad := &stubPublisher{id: "bad", err: errors.New("queue unavailable")}
	fanout := NewFanout([]Publisher{ok, bad})

	delivered, err := fanout.Publish(context.Background(), testEvent())
	if delivered != 1 {
		t.Fatalf("expected 1 delivery, got %d", delivered)
	}
	if err == nil || !strings.Contains(err.Error(), `stub publisher "bad": queue unavailable`) {
		t.Fatalf("expected failure of bad publisher, got %v", err)
	}
	if ok.calls != 1 || bad.calls != 1 {
		t.Fatalf("every publisher must be called once: ok=%d bad=%d", ok.calls, bad.calls)
	}
}

func TestFanoutPublishesConcurrently(t *testing.T) {
	pubs := make([]Publisher, 4)
	for i := range pubs {
		pubs[i] = &stubPublisher{id: string(rune('a' + i)), delay: 50 * time.Millisecond}
	}

	start := time.Now()
	delivered, err := NewFanout(pubs).Publish(context.Background(), testEvent())
	if err != nil || delivered != 4 {
		t.Fatalf("delivered=%d err=%v", delivered, err)
	}
	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Fatalf("publishers ran one after another: %v", elapsed)
	}
}

func TestFanoutSkipsNilAndClosesPublishers(t *testing.T) {
	stub := &stubPublisher{id: "ok"}
	fanout := NewFanout([]Publisher{nil, stub})
	if fanout.Size() != 1 {
		t.Fatalf("expected nil publisher to be dropped, size=%d", fanout.Size())
	}
	if err := fanout.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !stub.closed {
		t.Fatalf("expected publisher to be closed")
	}

	var empty *Fanout
	if n, err := empty.Publish(context.Background(), testEvent()); n != 0 || err != nil {
		t.Fatalf("nil fanout must be a no-op, got %d %v", n, err)
	}
}

func TestDefaultFactoryBuildsWebhook(t *testing.T) {
	fanout, err := DefaultFactory().BuildFanout(context.Background(), []PublisherConfig{
		webhookConfig("https://hooks.example/digest", nil),
	}, nil)
	if err != nil {
		t.Fatalf("BuildFanout: %v", err)
	}
	if fanout.Size() != 1 {
		t.Fatalf("expected 1 publisher, got %d", fanout.Size())
	}
}

func TestFactoryClosesBuiltPublishersOnFailure(t *testing.T) {
	built := &stubPublisher{id: "first"}
	factory := Factory{
		"stub": func(context.Context, PublisherConfig, Logger) (Publisher, error) { return built, nil },
	}

	_, err := factory.BuildFanout(context.Background(), []PublisherConfig{
		{ID: "first", Type: "stub"},
		{ID: "kafka", Type: "kafka"},
	}, nil)
	if err == nil || !strings.Contains(err.Error(), `no builder for type "kafka"`) {
		t.Fatalf("expected unknown type error, got %v", err)
	}
	if !built.closed {
		t.Fatalf("publishers built before the failure must be closed")
	}
}
