package api

import (
	"sync"

	"slotting/internal/model"
)

// Broker fans instance events out to in-process subscribers.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan model.InstanceEvent]struct{} // instanceId -> set of channels
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan model.InstanceEvent]struct{}{}}
}

func (b *Broker) Subscribe(instanceID string) chan model.InstanceEvent {
	ch := make(chan model.InstanceEvent, 8)
	b.mu.Lock()
	if b.subs[instanceID] == nil {
		b.subs[instanceID] = map[chan model.InstanceEvent]struct{}{}
	}
	b.subs[instanceID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(instanceID string, ch chan model.InstanceEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.subs[instanceID]
	if _, ok := m[ch]; !ok {
		return
	}
	delete(m, ch)
	if len(m) == 0 {
		delete(b.subs, instanceID)
	}
	close(ch)
}

// Publish delivers evt to every subscriber of instanceID. Slow subscribers
// miss events rather than block the publisher.
func (b *Broker) Publish(instanceID string, evt model.InstanceEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[instanceID] {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (b *Broker) Close() error { return nil }
