package realtime

import (
	"sync"

	"github.com/rs/zerolog/log"
)

const subscriptionBuffer = 64

// Subscription receives the events published for one table. C is closed
// when the subscription is closed.
type Subscription struct {
	C <-chan Event

	table  string
	ch     chan Event
	broker *Broker
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	s.broker.unsubscribe(s)
}

// Broker fans events out to the subscriptions of their table.
type Broker struct {
	mu    sync.RWMutex
	rooms map[string]map[*Subscription]struct{}
}

// NewBroker creates an empty Broker.
func NewBroker() *Broker {
	return &Broker{rooms: make(map[string]map[*Subscription]struct{})}
}

// Subscribe registers a subscription for table.
func (b *Broker) Subscribe(table string) *Subscription {
	ch := make(chan Event, subscriptionBuffer)
	sub := &Subscription{C: ch, table: table, ch: ch, broker: b}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rooms[table] == nil {
		b.rooms[table] = make(map[*Subscription]struct{})
	}
	b.rooms[table][sub] = struct{}{}
	return sub
}

func (b *Broker) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.rooms[sub.table]
	if !ok {
		return
	}
	if _, exists := subs[sub]; !exists {
		return
	}
	delete(subs, sub)
	close(sub.ch)
	if len(subs) == 0 {
		delete(b.rooms, sub.table)
	}
}

// Publish delivers ev to every subscription of its table. A subscriber whose
// buffer is full misses the event; its next Sync reconciles.
func (b *Broker) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.rooms[ev.Table()] {
		select {
		case sub.ch <- ev:
		default:
			log.Warn().Str("table", ev.Table()).Msg("realtime subscriber buffer full, event dropped")
		}
	}
}

// Subscribers returns the number of subscriptions on table.
func (b *Broker) Subscribers(table string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms[table])
}
