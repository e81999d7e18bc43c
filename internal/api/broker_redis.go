package api

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"slotting/internal/model"
)

type EventBroker interface {
	Subscribe(instanceID string) chan model.InstanceEvent
	Unsubscribe(instanceID string, ch chan model.InstanceEvent)
	Publish(instanceID string, evt model.InstanceEvent)
	Close() error
}

// In-memory broker already implemented in broker.go and satisfies EventBroker

// RedisBroker implements EventBroker over Redis Pub/Sub so that every API
// replica sees events published by the others.
type RedisBroker struct {
	rdb *redis.Client
	log *zap.Logger

	mu   sync.Mutex
	subs map[chan model.InstanceEvent]*redis.PubSub
}

func NewRedisBroker(url string, log *zap.Logger) (*RedisBroker, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis broker: parse url: %w", err)
	}
	rdb := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis broker: ping: %w", err)
	}
	return &RedisBroker{rdb: rdb, log: log, subs: map[chan model.InstanceEvent]*redis.PubSub{}}, nil
}

func (b *RedisBroker) Subscribe(instanceID string) chan model.InstanceEvent {
	ch := make(chan model.InstanceEvent, 16)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ps := b.rdb.Subscribe(ctx, b.chanName(instanceID))
	// initial consume to ensure subscription
	if _, err := ps.Receive(ctx); err != nil {
		b.log.Warn("redis subscribe failed", zap.String("instanceId", instanceID), zap.Error(err))
	}
	b.mu.Lock()
	b.subs[ch] = ps
	b.mu.Unlock()
	msgs := ps.Channel()
	go func() {
		defer close(ch)
		for msg := range msgs {
			var evt model.InstanceEvent
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				b.log.Warn("dropping malformed event", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			select {
			case ch <- evt:
			default:
			}
		}
	}()
	return ch
}

// Unsubscribe closes the subscription; ch is closed once its reader goroutine exits.
func (b *RedisBroker) Unsubscribe(instanceID string, ch chan model.InstanceEvent) {
	b.mu.Lock()
	ps, ok := b.subs[ch]
	delete(b.subs, ch)
	b.mu.Unlock()
	if ok {
		_ = ps.Close()
	}
}

func (b *RedisBroker) Publish(instanceID string, evt model.InstanceEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, err := json.Marshal(evt)
	if err != nil {
		b.log.Error("encode event", zap.Error(err))
		return
	}
	if err := b.rdb.Publish(ctx, b.chanName(instanceID), data).Err(); err != nil {
		b.log.Warn("redis publish failed", zap.String("instanceId", instanceID), zap.Error(err))
	}
}

func (b *RedisBroker) Close() error {
	b.mu.Lock()
	for ch, ps := range b.subs {
		_ = ps.Close()
		delete(b.subs, ch)
	}
	b.mu.Unlock()
	return b.rdb.Close()
}

func (b *RedisBroker) chanName(instanceID string) string { return "slotting:instance:" + instanceID }
