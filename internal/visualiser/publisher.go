// Package visualiser streams simulation frames to remote viewers over gRPC.
package visualiser

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/gridsim/internal/controller"
)

// DefaultClientBuffer is the per-subscriber queue length.
const DefaultClientBuffer = 10

// Publisher fans committed frames out to subscribers. It is a
// controller.FrameSink and never blocks the simulation: a subscriber whose
// queue is full misses the frame.
type Publisher struct {
	mu      sync.RWMutex
	clients map[uint64]chan controller.Frame
	nextID  uint64
	closed  bool

	published atomic.Uint64
	dropped   atomic.Uint64
}

// PublisherStats reports fan-out counters.
type PublisherStats struct {
	Published uint64 `json:"published"`
	Dropped   uint64 `json:"dropped"`
	Clients   int    `json:"clients"`
}

// NewPublisher creates a publisher with no subscribers.
func NewPublisher() *Publisher {
	return &Publisher{clients: make(map[uint64]chan controller.Frame)}
}

// HandleFrame delivers f to every subscriber that has room for it.
func (p *Publisher) HandleFrame(_ context.Context, f controller.Frame) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil
	}
	p.published.Add(1)
	for id, ch := range p.clients {
		select {
		case ch <- f:
		default:
			n := p.dropped.Add(1)
			opsf("client %d slow, dropped tick %d (total dropped: %d)", id, f.Tick, n)
		}
	}
	tracef("published tick %d to %d clients", f.Tick, len(p.clients))
	return nil
}

// Subscribe registers a subscriber with a queue of buf frames (default
// DefaultClientBuffer). The returned function unsubscribes and closes the
// channel; it is safe to call more than once.
func (p *Publisher) Subscribe(buf int) (<-chan controller.Frame, func()) {
	if buf <= 0 {
		buf = DefaultClientBuffer
	}
	ch := make(chan controller.Frame, buf)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := p.nextID
	p.nextID++
	p.clients[id] = ch
	n := len(p.clients)
	p.mu.Unlock()
	diagf("client %d subscribed (total: %d)", id, n)

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			if c, ok := p.clients[id]; ok {
				delete(p.clients, id)
				close(c)
				diagf("client %d unsubscribed (remaining: %d)", id, len(p.clients))
			}
		})
	}
}

// Close closes every subscriber channel. Later frames are ignored and later
// subscribers receive a closed channel.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for id, ch := range p.clients {
		close(ch)
		delete(p.clients, id)
	}
}

// Stats returns the current counters.
func (p *Publisher) Stats() PublisherStats {
	p.mu.RLock()
	n := len(p.clients)
	p.mu.RUnlock()
	return PublisherStats{
		Published: p.published.Load(),
		Dropped:   p.dropped.Load(),
		Clients:   n,
	}
}
