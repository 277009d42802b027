package events

import (
	"sync"
	"testing"
	"time"
)

func TestPublishDeliversToSubscribers(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventDestinationShown)
	other := bus.Subscribe(EventShowFailed)

	bus.Publish(EventDestinationShown, Payload{"destination_id": "a"})

	select {
	case p := <-sub:
		if p["destination_id"] != "a" {
			t.Fatalf("unexpected payload: %+v", p)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive event")
	}

	select {
	case p := <-other:
		t.Fatalf("unrelated subscriber received %+v", p)
	default:
	}
}

func TestPublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	bus := NewBus()
	bus.Subscribe(EventHealth)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			bus.Publish(EventHealth, Payload{"i": i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventConfigUpdated)
	bus.Unsubscribe(EventConfigUpdated, sub)

	if _, ok := <-sub; ok {
		t.Fatal("expected closed channel")
	}
	if n := bus.SubscriberCount(EventConfigUpdated); n != 0 {
		t.Fatalf("expected 0 subscribers, got %d", n)
	}

	// Second unsubscribe is a no-op rather than a double close.
	bus.Unsubscribe(EventConfigUpdated, sub)
}

func TestNilBusPublishIsNoop(t *testing.T) {
	var bus *Bus
	bus.Publish(EventHealth, Payload{})
}

func TestUnsubscribeWhilePublishing(t *testing.T) {
	bus := NewBus()
	stop := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					bus.Publish(EventDestinationShown, Payload{"destination_id": "a"})
				}
			}
		}()
	}

	for i := 0; i < 20000; i++ {
		sub := bus.Subscribe(EventDestinationShown)
		bus.Unsubscribe(EventDestinationShown, sub)
	}
	close(stop)
	wg.Wait()

	if n := bus.SubscriberCount(EventDestinationShown); n != 0 {
		t.Fatalf("expected 0 subscribers, got %d", n)
	}
}
