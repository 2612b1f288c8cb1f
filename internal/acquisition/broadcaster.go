// Package acquisition owns an AudioSource and fans its frames out to any
// number of subscribers over a lossy, per-subscriber-lag-tolerant
// broadcast channel (spec.md 4.2).
package acquisition

import (
	"sync"

	"github.com/sctg-development/rust-photoacoustic-sub000/internal/audioframe"
)

// Broadcaster is a single-producer, multi-consumer fan-out with a bounded
// lag buffer per subscriber. A slow subscriber never blocks the producer:
// once its buffer is full, the oldest unread frame is dropped and its lag
// counter increments. This is the sole backpressure policy (spec.md 4.2).
type Broadcaster struct {
	mu          sync.Mutex
	subscribers map[*Subscription]struct{}
	published   uint64
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subscribers: make(map[*Subscription]struct{})}
}

// Subscription is a subscriber's personal lag-tolerant view onto the
// broadcast stream.
type Subscription struct {
	b        *Broadcaster
	ch       chan *audioframe.Frame
	mu       sync.Mutex
	lagCount uint64
	closed   bool
}

// Subscribe returns a new Subscription with a lag buffer sized per
// spec.md 4.2: max(2, ceil(latencyBudgetMs * sampleRate / frameSize / 1000)).
func (b *Broadcaster) Subscribe(latencyBudgetMs int, sampleRate, frameSize int) *Subscription {
	size := latencyBudgetLagSize(latencyBudgetMs, sampleRate, frameSize)
	sub := &Subscription{b: b, ch: make(chan *audioframe.Frame, size)}

	b.mu.Lock()
	b.subscribers[sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

func latencyBudgetLagSize(latencyBudgetMs, sampleRate, frameSize int) int {
	if sampleRate <= 0 || frameSize <= 0 {
		return 2
	}
	n := (latencyBudgetMs*sampleRate + frameSize*1000 - 1) / (frameSize * 1000)
	if n < 2 {
		n = 2
	}
	return n
}

// Unsubscribe removes a subscription; Publish afterwards is a silent no-op
// for it.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	delete(b.subscribers, sub)
	b.mu.Unlock()

	sub.mu.Lock()
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
	sub.mu.Unlock()
}

// Publish never blocks: a full subscriber channel has its oldest frame
// dropped to make room, incrementing that subscriber's lag counter.
func (b *Broadcaster) Publish(f *audioframe.Frame) {
	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subscribers))
	for s := range b.subscribers {
		subs = append(subs, s)
	}
	b.published++
	b.mu.Unlock()

	for _, s := range subs {
		s.deliver(f)
	}
}

func (s *Subscription) deliver(f *audioframe.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	for {
		select {
		case s.ch <- f:
			return
		default:
		}
		// Full: drop the oldest to make room, counting the loss.
		select {
		case <-s.ch:
			s.lagCount++
		default:
			// Raced with a concurrent receive; try sending again.
		}
	}
}

// Recv blocks until a frame is available or the subscription is closed (nil
// return with ok=false).
func (s *Subscription) Recv() (*audioframe.Frame, bool) {
	f, ok := <-s.ch
	return f, ok
}

// Chan exposes the raw channel for use in a select alongside a cancellation
// context.
func (s *Subscription) Chan() <-chan *audioframe.Frame {
	return s.ch
}

// LagCount returns the number of frames dropped for this subscriber since
// subscription, i.e. the gap a consumer should expect in FrameNumber.
func (s *Subscription) LagCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lagCount
}

// Published returns the producer's total publish count, independent of any
// subscriber's lag.
func (b *Broadcaster) Published() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.published
}
