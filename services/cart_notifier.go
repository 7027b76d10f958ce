package services

import "sync"

// CartEvent carries the new item count of one cart
type CartEvent struct {
	Owner string `json:"-"`
	Count int    `json:"count"`
}

// CartNotifier fans cart count changes out to subscribers of each cart.
// A slow subscriber only ever sees the most recent count.
type CartNotifier struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[string]map[uint64]chan CartEvent
}

// NewCartNotifier creates a notifier with no subscribers
func NewCartNotifier() *CartNotifier {
	return &CartNotifier{subs: make(map[string]map[uint64]chan CartEvent)}
}

// Subscribe registers for events on ownerKey. Call the returned func to unsubscribe;
// it closes the channel.
func (n *CartNotifier) Subscribe(ownerKey string) (<-chan CartEvent, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.nextID++
	id := n.nextID
	ch := make(chan CartEvent, 1)
	if n.subs[ownerKey] == nil {
		n.subs[ownerKey] = make(map[uint64]chan CartEvent)
	}
	n.subs[ownerKey][id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			if subs, ok := n.subs[ownerKey]; ok {
				delete(subs, id)
				if len(subs) == 0 {
					delete(n.subs, ownerKey)
				}
			}
			close(ch)
		})
	}
}

// Publish delivers the event to every subscriber of its owner without blocking
func (n *CartNotifier) Publish(event CartEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, ch := range n.subs[event.Owner] {
		select {
		case ch <- event:
		default:
			// Replace the stale pending event.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- event:
			default:
			}
		}
	}
}

// Subscribers returns the number of live subscriptions for ownerKey
func (n *CartNotifier) Subscribers(ownerKey string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs[ownerKey])
}
