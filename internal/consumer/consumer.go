// Package consumer implements ProcessingConsumer (spec.md 4.10,
// component C10): the task that owns the running graph and feeds it
// frames off the acquisition broadcast.
package consumer

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/sctg-development/rust-photoacoustic-sub000/internal/acquisition"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/graph"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/graphdata"
)

// Result is published on the consumer's result broadcast channel after
// every frame, wrapping the graph's execution result with the source
// frame number it corresponds to.
type Result struct {
	FrameNumber uint64
	Exec        *graph.ExecutionResult
}

// Consumer owns the running ProcessingGraph behind a reader-writer
// lock and a broadcast-channel receiver (spec.md 4.10). The hot loop
// holds the read lock only for the duration of one Execute call; a
// separate administrative path (ApplyHotReload) holds the write lock
// between frames. Per spec.md 5's lock hierarchy, this lock sits below
// SharedConfig and above SharedComputingState — callers must not hold
// SharedComputingState's lock while calling into Consumer.
type Consumer struct {
	mu    sync.RWMutex
	graph *graph.Graph

	logger *log.Logger

	resultsMu   sync.Mutex
	resultSubs  map[*resultSub]struct{}
}

type resultSub struct {
	ch chan Result
}

func New(g *graph.Graph, logger *log.Logger) *Consumer {
	return &Consumer{
		graph:      g,
		logger:     logger,
		resultSubs: make(map[*resultSub]struct{}),
	}
}

// Subscribe returns a channel of Results. The channel is unbuffered-safe
// up to bufSize pending results; a slow subscriber that falls behind has
// its oldest unread result dropped, matching the IntegrationOverflow
// policy in spec.md 7.
func (c *Consumer) Subscribe(bufSize int) (<-chan Result, func()) {
	if bufSize < 1 {
		bufSize = 1
	}
	sub := &resultSub{ch: make(chan Result, bufSize)}
	c.resultsMu.Lock()
	c.resultSubs[sub] = struct{}{}
	c.resultsMu.Unlock()

	cancel := func() {
		c.resultsMu.Lock()
		delete(c.resultSubs, sub)
		c.resultsMu.Unlock()
	}
	return sub.ch, cancel
}

func (c *Consumer) publish(r Result) {
	c.resultsMu.Lock()
	subs := make([]*resultSub, 0, len(c.resultSubs))
	for s := range c.resultSubs {
		subs = append(subs, s)
	}
	c.resultsMu.Unlock()

	for _, s := range subs {
		select {
		case s.ch <- r:
		default:
			select {
			case <-s.ch:
			default:
			}
			select {
			case s.ch <- r:
			default:
			}
		}
	}
}

// Run drains sub, wraps each frame as RawAudio, executes the graph under
// the read lock and publishes the result, until ctx is cancelled or sub
// closes.
func (c *Consumer) Run(ctx context.Context, sub *acquisition.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frame, ok := sub.Recv()
		if !ok {
			return
		}

		c.mu.RLock()
		exec, err := c.graph.Execute(graphdata.RawAudio{Frame: frame})
		c.mu.RUnlock()
		if err != nil {
			c.logger.Error("graph execution failed", "err", err)
			continue
		}

		c.publish(Result{FrameNumber: frame.FrameNumber, Exec: exec})
	}
}

// ApplyHotReload holds the write lock for the duration of one
// diff-and-patch cycle, blocking Run's next Execute until it completes
// (spec.md 4.10: "a separate administrative path holds the write lock to
// apply hot-reloads between frames").
func (c *Consumer) ApplyHotReload(cfg graph.Config, build graph.Builder) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.graph.ApplyHotReload(cfg, build)
}

// Stats, NodeIDs and Connections expose read-only graph inspection (e.g.
// for the GET /api/graph handler) under the same read lock the hot path
// uses, rather than handing callers the raw *graph.Graph — a caller
// holding onto that pointer across calls could otherwise observe a
// torn graph mid hot-reload.
func (c *Consumer) Stats() map[string]graph.NodeStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.graph.Stats()
}

func (c *Consumer) NodeIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.graph.NodeIDs()
}

func (c *Consumer) Connections() []struct{ From, To string } {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.graph.Connections()
}

// Node looks up a single node by id, for callers that need to reach a
// node's concrete type after a build (e.g. handing a freshly built
// action.Node's dispatcher task to the orchestrator).
func (c *Consumer) Node(id string) (graph.Node, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.graph.Node(id)
}
