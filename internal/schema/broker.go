package schema

import "sync"

// ChangeKind enumerates what changed about a (space,partition).
type ChangeKind int

const (
	SpaceAdded ChangeKind = iota
	PartitionAdded
	PartitionRemoved
	LeaderChanged
	SchemaChanged
)

// Change is one catalog change notification.
type Change struct {
	SpaceID uint32
	PartID  uint32
	Kind    ChangeKind
}

// Subscriber is a channel that receives catalog changes, same shape as
// pkg/events.Subscriber.
type Subscriber chan Change

// Broker distributes catalog changes to subscribers. Changes for the
// same (space,partition) are handed to each subscriber in publish
// order — a subscriber reconciling partition state (e.g. "leader
// changed" then "schema changed") sees the ones it receives in that
// order — while changes for different partitions may be delivered
// concurrently and interleaved arbitrarily. A subscriber whose buffer
// is full when a change is handed to it does not receive that change.
//
// Where pkg/events.Broker pumps every event through one shared channel
// and goroutine, Broker runs one worker goroutine per (space,partition)
// key so one slow or backlogged partition's subscribers never delay
// delivery for any other partition.
type Broker struct {
	mu          sync.Mutex
	subscribers map[Subscriber]bool
	workers     map[partKey]chan Change
	stopped     bool
}

// NewBroker builds an empty Broker.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		workers:     make(map[partKey]chan Change),
	}
}

// Subscribe registers a new subscription.
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := make(Subscriber, 64)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[sub]; !ok {
		return
	}
	delete(b.subscribers, sub)
	close(sub)
}

// Publish enqueues c for serial delivery on its (space,partition)'s
// worker, starting that worker on first use.
func (b *Broker) Publish(c Change) {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	key := partKey{SpaceID: c.SpaceID, PartID: c.PartID}
	ch, ok := b.workers[key]
	if !ok {
		ch = make(chan Change, 256)
		b.workers[key] = ch
		go b.drain(ch)
	}
	b.mu.Unlock()
	ch <- c
}

func (b *Broker) drain(ch chan Change) {
	for c := range ch {
		b.mu.Lock()
		subs := make([]Subscriber, 0, len(b.subscribers))
		for s := range b.subscribers {
			subs = append(subs, s)
		}
		b.mu.Unlock()
		for _, s := range subs {
			select {
			case s <- c:
			default:
				// Subscriber buffer full: it will catch up on its next
				// Refresh-driven full reconcile instead of blocking
				// delivery to every other subscriber.
			}
		}
	}
}

// Stop tears down every per-partition worker. Safe to call once.
func (b *Broker) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	b.stopped = true
	for _, ch := range b.workers {
		close(ch)
	}
	for sub := range b.subscribers {
		close(sub)
	}
	b.subscribers = make(map[Subscriber]bool)
}
