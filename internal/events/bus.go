/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "sync"

// EventType enumerates event categories.
type EventType string

const (
	EventRotationStarted   EventType = "rotation.started"
	EventRotationStopped   EventType = "rotation.stopped"
	EventRotationFinished  EventType = "rotation.finished"
	EventDestinationShown  EventType = "rotation.destination_shown"
	EventShowFailed        EventType = "rotation.show_failed"
	EventCycleCompleted    EventType = "rotation.cycle_completed"
	EventConfigUpdated     EventType = "config.updated"
	EventConfigLoadFailure EventType = "config.load_failed"
	EventHealth            EventType = "health"
)

// AllTypes lists every event type, in publish order of a typical rotation.
func AllTypes() []EventType {
	return []EventType{
		EventRotationStarted,
		EventDestinationShown,
		EventShowFailed,
		EventCycleCompleted,
		EventRotationFinished,
		EventRotationStopped,
		EventConfigUpdated,
		EventConfigLoadFailure,
		EventHealth,
	}
}

// Payload generic event payload.
type Payload map[string]any

// Subscriber receives event payloads.
type Subscriber chan Payload

// Bus implements a simple in-process pubsub.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Subscriber
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]Subscriber)}
}

// Subscribe registers a subscriber for event type.
func (b *Bus) Subscribe(eventType EventType) Subscriber {
	ch := make(Subscriber, 8)
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], ch)
	b.mu.Unlock()
	return ch
}

// Publish sends payload to subscribers. Slow subscribers miss events rather than block the publisher.
// Sends happen under the read lock so Unsubscribe cannot close a channel mid-send.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs[eventType] {
		select {
		case sub <- payload:
		default:
		}
	}
}

// Unsubscribe removes the subscriber.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventType]
	for i, candidate := range subs {
		if candidate == sub {
			subs = append(subs[:i], subs[i+1:]...)
			close(sub)
			break
		}
	}
	b.subs[eventType] = subs
}

// SubscriberCount reports how many subscribers are registered for eventType.
func (b *Bus) SubscriberCount(eventType EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[eventType])
}
