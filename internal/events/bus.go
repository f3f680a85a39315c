/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "sync"

// EventType enumerates event categories.
type EventType string

const (
	EventPlaylistPublished EventType = "playlist.published"
	EventPlaylistFailed    EventType = "playlist.failed"
	EventSlideCreated      EventType = "slide.created"
	EventSlideReviewed     EventType = "slide.reviewed"
	EventSlideAssigned     EventType = "slide.assigned"
)

// Payload generic event payload.
type Payload map[string]any

// KeyOrigin is set on payloads relayed from another instance.
const KeyOrigin = "origin_node"

// IsRemote reports whether p was published by another instance.
func IsRemote(p Payload) bool {
	origin, _ := p[KeyOrigin].(string)
	return origin != ""
}

// Subscriber receives event payloads.
type Subscriber chan Payload

// Publisher is implemented by every event bus.
type Publisher interface {
	Publish(eventType EventType, payload Payload)
}

// Broker is a bus that also hands out subscriptions.
type Broker interface {
	Publisher
	Subscribe(eventType EventType) Subscriber
	Unsubscribe(eventType EventType, sub Subscriber)
}

const subscriberBuffer = 16

// Bus implements a simple in-process pubsub. Slow subscribers miss events
// rather than blocking publishers.
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
	ch := make(Subscriber, subscriberBuffer)
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], ch)
	b.mu.Unlock()
	return ch
}

// Publish sends payload to subscribers without blocking.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs[eventType] {
		select {
		case sub <- payload:
		default:
		}
	}
}

// Unsubscribe removes and closes the subscriber. Unknown subscribers are ignored.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventType]
	for i, candidate := range subs {
		if candidate == sub {
			b.subs[eventType] = append(subs[:i:i], subs[i+1:]...)
			close(sub)
			return
		}
	}
}
