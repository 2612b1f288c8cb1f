package compute

import (
	"fmt"
	"sync"
)

// SpectralLine names a gas absorption line a peak-finder is tuned to,
// bundling the frequency window it searches with the species it
// identifies. This lets multiple peak-finders with disjoint frequency
// windows (spec.md 4.7, "multiple instances") be configured from a
// shared catalogue instead of repeating freq_min/freq_max by hand for
// every regulator and concentration node that needs to know what a
// given node id actually measures.
type SpectralLine struct {
	Name      string
	Species   string
	FreqMinHz float64
	FreqMaxHz float64
}

// LineRegistry is a process-wide catalogue of configured spectral lines,
// looked up by name from the admin API and from config.
type LineRegistry struct {
	mu    sync.RWMutex
	lines map[string]SpectralLine
}

func NewLineRegistry() *LineRegistry {
	return &LineRegistry{lines: make(map[string]SpectralLine)}
}

func (r *LineRegistry) Register(line SpectralLine) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.lines[line.Name]; exists {
		return fmt.Errorf("compute: spectral line %q already registered", line.Name)
	}
	r.lines[line.Name] = line
	return nil
}

func (r *LineRegistry) Lookup(name string) (SpectralLine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.lines[name]
	return l, ok
}

func (r *LineRegistry) All() []SpectralLine {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SpectralLine, 0, len(r.lines))
	for _, l := range r.lines {
		out = append(out, l)
	}
	return out
}

func (r *LineRegistry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.lines, name)
}
