package eventbus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/friendsincode/grimnir_kiosk/internal/events"
	"github.com/rs/zerolog"
)

type fakeSink struct {
	mu      sync.Mutex
	fail    bool
	pingErr error
	sent    [][]byte
	types   []events.EventType
	closed  bool
}

func (s *fakeSink) Name() string { return "fake" }

func (s *fakeSink) Send(_ context.Context, eventType events.EventType, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("broker down")
	}
	s.sent = append(s.sent, data)
	s.types = append(s.types, eventType)
	return nil
}

func (s *fakeSink) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pingErr
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestForwarderRelaysEnvelope(t *testing.T) {
	bus := events.NewBus()
	sink := &fakeSink{}
	fwd := NewForwarder(bus, sink, DefaultForwarderConfig(), "node-a", zerolog.Nop())
	fwd.Start(context.Background())

	bus.Publish(events.EventDestinationShown, events.Payload{"destination_id": "d1"})
	waitFor(t, func() bool { return sink.count() == 1 })

	msg, err := unmarshalMessage(sink.sent[0])
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.EventType != events.EventDestinationShown || msg.NodeID != "node-a" {
		t.Fatalf("unexpected envelope: %+v", msg)
	}
	if msg.Payload["destination_id"] != "d1" || msg.MessageID == "" {
		t.Fatalf("unexpected payload: %+v", msg)
	}

	if err := fwd.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !sink.closed {
		t.Fatal("expected sink to be closed")
	}
	if n := bus.SubscriberCount(events.EventDestinationShown); n != 0 {
		t.Fatalf("expected forwarder to unsubscribe, %d remain", n)
	}
}

func TestForwarderTripsAndRecovers(t *testing.T) {
	bus := events.NewBus()
	sink := &fakeSink{fail: true, pingErr: errors.New("still down")}
	cfg := ForwarderConfig{MaxFailures: 2, CheckInterval: time.Minute, SendTimeout: time.Second}
	fwd := NewForwarder(bus, sink, cfg, "node-a", zerolog.Nop())

	var mu sync.Mutex
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fwd.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	ctx := context.Background()
	fwd.forward(ctx, events.EventHealth, events.Payload{})
	fwd.forward(ctx, events.EventHealth, events.Payload{})
	if !fwd.Stats().Tripped {
		t.Fatal("expected breaker to trip after MaxFailures")
	}

	fwd.forward(ctx, events.EventHealth, events.Payload{})
	if fwd.Stats().Dropped != 1 {
		t.Fatalf("expected 1 dropped event, got %+v", fwd.Stats())
	}

	sink.mu.Lock()
	sink.fail = false
	sink.pingErr = nil
	sink.mu.Unlock()
	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()

	fwd.forward(ctx, events.EventHealth, events.Payload{})
	stats := fwd.Stats()
	if stats.Tripped || stats.Forwarded != 1 {
		t.Fatalf("expected recovery, got %+v", stats)
	}
}

func TestGenerateNodeIDUnique(t *testing.T) {
	if GenerateNodeID() == GenerateNodeID() {
		t.Fatal("expected distinct node ids")
	}
}
