package converge

import (
	"fmt"
	"strings"
)

// StateView is the read-only view of cycle state a condition evaluates
// against. It is implemented by the cycle runtime's state store.
type StateView interface {
	// Metric returns the most recent value recorded under name.
	Metric(name string) (float64, bool)

	// History returns the recorded history window for name, oldest first.
	History(name string) []float64
}

// Condition is a single stopping rule. Conditions are stateless; they are
// evaluated fresh against the current cycle state each iteration.
type Condition interface {
	// Eval reports whether the condition is satisfied by the given state.
	// A condition that cannot be decided yet (e.g. not enough history)
	// reports unsatisfied, not an error.
	Eval(s StateView) (bool, error)

	// Describe returns a short human-readable form for logs and diagnostics.
	Describe() string
}

// Comparator is a comparison operator for threshold conditions.
type Comparator string

const (
	GT Comparator = ">"
	LT Comparator = "<"
	GE Comparator = ">="
	LE Comparator = "<="
	EQ Comparator = "=="
)

// ParseComparator converts an operator string into a Comparator.
func ParseComparator(s string) (Comparator, error) {
	switch Comparator(strings.TrimSpace(s)) {
	case GT, LT, GE, LE, EQ:
		return Comparator(strings.TrimSpace(s)), nil
	default:
		return "", fmt.Errorf("unknown comparator %q", s)
	}
}

func (c Comparator) compare(a, b float64) bool {
	switch c {
	case GT:
		return a > b
	case LT:
		return a < b
	case GE:
		return a >= b
	case LE:
		return a <= b
	case EQ:
		return a == b
	}
	return false
}

// Threshold is satisfied when a named metric compares true against a value.
type Threshold struct {
	Metric string
	Op     Comparator
	Value  float64
}

// Eval implements Condition.
func (t Threshold) Eval(s StateView) (bool, error) {
	v, ok := s.Metric(t.Metric)
	if !ok {
		// Metric not recorded yet; undecided, not an error.
		return false, nil
	}
	return t.Op.compare(v, t.Value), nil
}

// Describe implements Condition.
func (t Threshold) Describe() string {
	return fmt.Sprintf("threshold(%s %s %g)", t.Metric, t.Op, t.Value)
}

// Stability is satisfied when the variance of the last Window values of a
// metric's history falls below MaxVariance. It reports unsatisfied until at
// least Window values have been recorded.
type Stability struct {
	Metric      string
	Window      int
	MaxVariance float64
}

// Eval implements Condition.
func (c Stability) Eval(s StateView) (bool, error) {
	if c.Window < 2 {
		return false, fmt.Errorf("stability window must be at least 2, got %d", c.Window)
	}
	hist := s.History(c.Metric)
	if len(hist) < c.Window {
		return false, nil
	}
	window := hist[len(hist)-c.Window:]

	var mean float64
	for _, v := range window {
		mean += v
	}
	mean /= float64(len(window))

	var variance float64
	for _, v := range window {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(window))

	return variance < c.MaxVariance, nil
}

// Describe implements Condition.
func (c Stability) Describe() string {
	return fmt.Sprintf("stability(%s, window=%d, var<%g)", c.Metric, c.Window, c.MaxVariance)
}

// Term is one weighted member of a Composite condition. Exactly one of
// Condition and Metric is set: a condition term contributes its weight when
// satisfied (a 0/1 truth value), a metric term contributes its weight
// multiplied by the metric's latest recorded value, or nothing while the
// metric is unrecorded.
type Term struct {
	Condition Condition
	Metric    string
	Weight    float64
}

// Composite is satisfied when the weighted sum of its terms meets
// Threshold. It allows "soft" early stopping: with two condition terms
// weighted 0.5 each and a threshold of 0.5, a single satisfied term is
// enough.
type Composite struct {
	Terms     []Term
	Threshold float64
}

// Eval implements Condition.
func (c Composite) Eval(s StateView) (bool, error) {
	var score float64
	for i, term := range c.Terms {
		switch {
		case term.Metric != "":
			if v, ok := s.Metric(term.Metric); ok {
				score += term.Weight * v
			}
		case term.Condition != nil:
			ok, err := term.Condition.Eval(s)
			if err != nil {
				return false, err
			}
			if ok {
				score += term.Weight
			}
		default:
			return false, fmt.Errorf("composite term %d has neither a condition nor a metric", i)
		}
	}
	return score >= c.Threshold, nil
}

// Describe implements Condition.
func (c Composite) Describe() string {
	parts := make([]string, len(c.Terms))
	for i, term := range c.Terms {
		if term.Metric != "" {
			parts[i] = fmt.Sprintf("%g*%s", term.Weight, term.Metric)
		} else {
			parts[i] = fmt.Sprintf("%g*%s", term.Weight, term.Condition.Describe())
		}
	}
	return fmt.Sprintf("composite(%s >= %g)", strings.Join(parts, " + "), c.Threshold)
}

// Any evaluates a condition set with OR semantics and returns the first
// satisfied condition, or nil if none is satisfied. The disjunction is the
// documented contract for multi-condition cycles.
func Any(conds []Condition, s StateView) (Condition, error) {
	for _, cond := range conds {
		ok, err := cond.Eval(s)
		if err != nil {
			return nil, fmt.Errorf("evaluating %s: %w", cond.Describe(), err)
		}
		if ok {
			return cond, nil
		}
	}
	return nil, nil
}
