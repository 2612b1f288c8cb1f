// Package streaming implements the per-node named audio stream registry
// (spec.md 4.8, component C9) and the wire encodings the HTTP layer fans
// frames out in (spec.md 6).
package streaming

import (
	"fmt"
	"sync"

	"github.com/sctg-development/rust-photoacoustic-sub000/internal/acquisition"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/audioframe"
)

// Registry is the process-wide catalogue of named audio streams. A
// streaming node registers itself on construction and unregisters on
// removal or graph teardown; the HTTP layer looks streams up by node id
// to fan frames out as SSE or compact binary frames.
type Registry struct {
	mu      sync.RWMutex
	streams map[string]*acquisition.Broadcaster
}

func NewRegistry() *Registry {
	return &Registry{streams: make(map[string]*acquisition.Broadcaster)}
}

// Register creates (or replaces) the named stream's broadcaster.
func (r *Registry) Register(nodeID string) *acquisition.Broadcaster {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := acquisition.NewBroadcaster()
	r.streams[nodeID] = b
	return b
}

// Unregister removes a node's stream, per spec.md 4.8: "Unregistration
// happens on node removal or graph teardown."
func (r *Registry) Unregister(nodeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.streams, nodeID)
}

// Lookup returns the broadcaster for a node id, used by the HTTP layer
// to subscribe an SSE/binary-frame client.
func (r *Registry) Lookup(nodeID string) (*acquisition.Broadcaster, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.streams[nodeID]
	return b, ok
}

func (r *Registry) NodeIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.streams))
	for id := range r.streams {
		out = append(out, id)
	}
	return out
}

// Publish pushes one frame onto the named stream, returning an error if
// the stream isn't registered (the caller — the streaming node — treats
// this as a programming error, not a runtime one, since it only happens
// if the node is processing after being torn down).
func (r *Registry) Publish(nodeID string, f *audioframe.Frame) error {
	b, ok := r.Lookup(nodeID)
	if !ok {
		return fmt.Errorf("streaming: no registered stream %q", nodeID)
	}
	b.Publish(f)
	return nil
}
