// Package compute implements the peak-finder and concentration computing
// nodes (spec.md 4.7, component C7) and the SharedComputingState (C15)
// they publish into. SharedComputingState is the cross-node blackboard:
// peak-finders write PeakResult values keyed by their own node id,
// concentration nodes read them (by explicit id or "most recent across
// all producers") and write ConcentrationResult values of their own.
package compute

import (
	"sync"
	"time"
)

// PeakResult is what a peak-finder node publishes on each successful
// detection.
type PeakResult struct {
	NodeID          string
	FrequencyHz     float64
	Amplitude       float64
	ConcentrationPpm float64
	ObservedAt      time.Time

	// Polynomial is the calibration curve the most recent concentration
	// node evaluated against this peak's amplitude, set by
	// UpdatePeakConcentration. Zero until a concentration node has run.
	Polynomial Polynomial
}

// ConcentrationResult is what a concentration node publishes.
type ConcentrationResult struct {
	NodeID        string
	SourcePeakID  string
	ConcentrationPpm float64
	ObservedAt    time.Time
}

// State is the process-wide blackboard. Readers on the hot path (other
// nodes, action nodes) MUST use the non-blocking Peak/Concentration
// accessors; API handlers may use the blocking snapshot methods.
//
// Lock ordering: SharedConfig < ProcessingGraph < SharedComputingState <
// BusMutex (spec.md 5). State never acquires any other lock while held.
type State struct {
	mu            sync.RWMutex
	peaks         map[string]PeakResult
	concentrations map[string]ConcentrationResult
}

func NewState() *State {
	return &State{
		peaks:          make(map[string]PeakResult),
		concentrations: make(map[string]ConcentrationResult),
	}
}

// PutPeak records (or overwrites) the peak published by nodeID.
func (s *State) PutPeak(p PeakResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peaks[p.NodeID] = p
}

// Peak returns the peak published by a specific node id. It never blocks:
// if a writer holds the lock it reports the peak as unavailable.
func (s *State) Peak(nodeID string) (PeakResult, bool) {
	if !s.mu.TryRLock() {
		return PeakResult{}, false
	}
	defer s.mu.RUnlock()
	p, ok := s.peaks[nodeID]
	return p, ok
}

// MostRecentPeak returns the freshest peak across all producers, per
// spec.md 4.7's "most recent across all producers" fallback when a
// concentration node has no explicit source_peak_id configured.
func (s *State) MostRecentPeak() (PeakResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best PeakResult
	found := false
	for _, p := range s.peaks {
		if !found || p.ObservedAt.After(best.ObservedAt) {
			best = p
			found = true
		}
	}
	return best, found
}

// UpdatePeakConcentration sets the concentration_ppm field on an
// already-published peak, per spec.md 4.7: "updates the associated
// peak's concentration_ppm field." It also records the calibration
// polynomial used, so downstream consumers (action dispatch) can report
// which curve produced the figure without a second state lookup.
func (s *State) UpdatePeakConcentration(nodeID string, ppm float64, poly Polynomial) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.peaks[nodeID]; ok {
		p.ConcentrationPpm = ppm
		p.Polynomial = poly
		s.peaks[nodeID] = p
	}
}

// PutConcentration records (or overwrites) the result published by
// nodeID.
func (s *State) PutConcentration(c ConcentrationResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.concentrations[c.NodeID] = c
}

// Concentration returns the concentration published by a specific node
// id. It never blocks: if a writer holds the lock it reports the result
// as unavailable.
func (s *State) Concentration(nodeID string) (ConcentrationResult, bool) {
	if !s.mu.TryRLock() {
		return ConcentrationResult{}, false
	}
	defer s.mu.RUnlock()
	c, ok := s.concentrations[nodeID]
	return c, ok
}

// Snapshot is a full copy of the blackboard, used by API handlers
// (GET /api/computing/state) where a blocking read is acceptable.
type Snapshot struct {
	Peaks          map[string]PeakResult
	Concentrations map[string]ConcentrationResult
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Peaks:          make(map[string]PeakResult, len(s.peaks)),
		Concentrations: make(map[string]ConcentrationResult, len(s.concentrations)),
	}
	for k, v := range s.peaks {
		snap.Peaks[k] = v
	}
	for k, v := range s.concentrations {
		snap.Concentrations[k] = v
	}
	return snap
}

// Fresh reports whether observedAt is within horizon of now. Both peak
// staleness rejection and concentration staleness rejection in spec.md
// 4.7 use this same predicate; default horizon is 30s when the caller
// passes zero.
func Fresh(observedAt time.Time, now time.Time, horizon time.Duration) bool {
	if horizon <= 0 {
		horizon = 30 * time.Second
	}
	return now.Sub(observedAt) <= horizon
}
