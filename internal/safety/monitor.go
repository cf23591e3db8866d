package safety

import (
	"fmt"
	"runtime"
	"time"
)

// Violation kinds.
const (
	KindIterationLimit = "iteration_limit"
	KindTimeout        = "timeout"
	KindMemoryGrowth   = "memory_growth"
)

// Violation is a fatal breach of a configured ceiling.
type Violation struct {
	ViolationKind string
	Detail        string
}

// Error implements the error interface.
func (v *Violation) Error() string {
	return fmt.Sprintf("safety violation (%s): %s", v.ViolationKind, v.Detail)
}

// Kind returns the machine-readable error kind.
func (v *Violation) Kind() string { return v.ViolationKind }

// Limits configures a monitor. Zero values disable the corresponding check
// except MaxIterations, which every cycle must carry.
type Limits struct {
	MaxIterations int
	Timeout       time.Duration

	// MemoryGrowth bounds the tolerated heap-alloc increase, in bytes,
	// between consecutive iterations. It catches unbounded accumulation in
	// cycle state.
	MemoryGrowth uint64
}

// Monitor tracks one cycle instance. It is not safe for concurrent use;
// each cycle runtime owns exactly one monitor and checks it at iteration
// boundaries, which are strictly sequential.
type Monitor struct {
	limits   Limits
	started  time.Time
	lastHeap uint64
}

// NewMonitor creates a monitor for one cycle instance.
func NewMonitor(limits Limits) *Monitor {
	return &Monitor{limits: limits}
}

// Start records the cycle's start time and the heap baseline.
func (m *Monitor) Start() {
	m.started = time.Now()
	if m.limits.MemoryGrowth > 0 {
		m.lastHeap = heapAlloc()
	}
}

// Check inspects the ceilings after a completed iteration. It returns nil
// when everything is within bounds.
//
// The iteration ceiling here is a backstop: the cycle runtime stops at
// MaxIterations on its own and reports EXHAUSTED, which is a normal
// outcome, not a violation. Check only fires the iteration kind if the
// counter somehow passed the limit.
func (m *Monitor) Check(iteration int) *Violation {
	if m.limits.MaxIterations > 0 && iteration > m.limits.MaxIterations {
		return &Violation{
			ViolationKind: KindIterationLimit,
			Detail:        fmt.Sprintf("iteration %d exceeded limit %d", iteration, m.limits.MaxIterations),
		}
	}

	if m.limits.Timeout > 0 {
		if elapsed := time.Since(m.started); elapsed > m.limits.Timeout {
			return &Violation{
				ViolationKind: KindTimeout,
				Detail:        fmt.Sprintf("elapsed %s exceeded timeout %s", elapsed.Round(time.Millisecond), m.limits.Timeout),
			}
		}
	}

	if m.limits.MemoryGrowth > 0 {
		heap := heapAlloc()
		if heap > m.lastHeap && heap-m.lastHeap > m.limits.MemoryGrowth {
			return &Violation{
				ViolationKind: KindMemoryGrowth,
				Detail:        fmt.Sprintf("heap grew %d bytes in one iteration, limit %d", heap-m.lastHeap, m.limits.MemoryGrowth),
			}
		}
		m.lastHeap = heap
	}

	return nil
}

func heapAlloc() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapAlloc
}
