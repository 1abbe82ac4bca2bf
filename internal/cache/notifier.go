package cache

import (
	"context"
	"sync"
)

// MemoryNotifier is an in-process Notifier for single-instance deployments
// and tests.
type MemoryNotifier struct {
	mu     sync.Mutex
	topics map[string]map[chan struct{}]struct{}
	closed bool
}

// NewMemoryNotifier creates an empty notifier.
func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{topics: make(map[string]map[chan struct{}]struct{})}
}

// Publish signals every subscriber of topic without blocking.
func (n *MemoryNotifier) Publish(ctx context.Context, topic string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return ErrClosed
	}
	for ch := range n.topics[topic] {
		select {
		case ch <- struct{}{}:
		default:
			// A signal is already pending; the subscriber will re-read anyway.
		}
	}
	return nil
}

// Subscribe registers for signals on topic until ctx ends.
func (n *MemoryNotifier) Subscribe(ctx context.Context, topic string) (<-chan struct{}, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil, ErrClosed
	}
	ch := make(chan struct{}, 1)
	subs := n.topics[topic]
	if subs == nil {
		subs = make(map[chan struct{}]struct{})
		n.topics[topic] = subs
	}
	subs[ch] = struct{}{}

	go func() {
		<-ctx.Done()
		n.unsubscribe(topic, ch)
	}()
	return ch, nil
}

func (n *MemoryNotifier) unsubscribe(topic string, ch chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()

	subs := n.topics[topic]
	if _, ok := subs[ch]; !ok {
		return
	}
	delete(subs, ch)
	if len(subs) == 0 {
		delete(n.topics, topic)
	}
	close(ch)
}

// Subscribers returns the number of live subscriptions on topic.
func (n *MemoryNotifier) Subscribers(topic string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.topics[topic])
}

// Close ends every subscription.
func (n *MemoryNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil
	}
	n.closed = true
	for _, subs := range n.topics {
		for ch := range subs {
			close(ch)
		}
	}
	n.topics = nil
	return nil
}

var _ Notifier = (*MemoryNotifier)(nil)
