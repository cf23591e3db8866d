package cycle

import (
	"sync"

	"github.com/zclconf/go-cty/cty"
)

// defaultHistoryLimit bounds metric history windows so long-running cycles
// cannot accumulate unbounded state.
const defaultHistoryLimit = 256

// State is the per-cycle-instance store: the iteration counter, values the
// body's nodes explicitly persist across iterations, and bounded metric
// histories consumed by convergence conditions.
//
// A State is owned exclusively by one cycle runtime and discarded when the
// cycle terminates. It implements runner.Scope for the body's nodes and
// converge.StateView for the convergence engine. Nodes within one body wave
// may run concurrently, so access is serialized internally.
type State struct {
	mu           sync.Mutex
	iteration    int
	values       map[string]cty.Value
	histories    map[string][]float64
	historyLimit int
}

// NewState creates the fresh state for a cycle entering RUNNING.
func NewState() *State {
	return &State{
		values:       make(map[string]cty.Value),
		histories:    make(map[string][]float64),
		historyLimit: defaultHistoryLimit,
	}
}

// Iteration returns the number of completed iterations.
func (s *State) Iteration() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.iteration
}

// advance marks one more iteration as completed and returns the new count.
func (s *State) advance() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.iteration++
	return s.iteration
}

// Persist implements runner.Scope.
func (s *State) Persist(key string, value cty.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Value implements runner.Scope.
func (s *State) Value(key string) (cty.Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// PersistedValues returns a copy of the persisted entries, used to merge
// prior-iteration state into the next iteration's inputs.
func (s *State) PersistedValues() map[string]cty.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]cty.Value, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// RecordMetric implements runner.Scope. Histories are bounded; the oldest
// values fall off first.
func (s *State) RecordMetric(name string, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hist := append(s.histories[name], value)
	if len(hist) > s.historyLimit {
		hist = hist[len(hist)-s.historyLimit:]
	}
	s.histories[name] = hist
}

// Metric implements converge.StateView. The most recent recorded value
// wins; a numeric persisted value serves as a fallback so threshold
// conditions can watch persisted state directly.
func (s *State) Metric(name string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if hist := s.histories[name]; len(hist) > 0 {
		return hist[len(hist)-1], true
	}
	if v, ok := s.values[name]; ok && v.Type() == cty.Number {
		f, _ := v.AsBigFloat().Float64()
		return f, true
	}
	return 0, false
}

// History implements converge.StateView.
func (s *State) History(name string) []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	hist := s.histories[name]
	out := make([]float64, len(hist))
	copy(out, hist)
	return out
}
