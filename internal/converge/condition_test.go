package converge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeState is a StateView backed by plain maps.
type fakeState struct {
	metrics   map[string]float64
	histories map[string][]float64
}

func (f *fakeState) Metric(name string) (float64, bool) {
	v, ok := f.metrics[name]
	return v, ok
}

func (f *fakeState) History(name string) []float64 {
	return f.histories[name]
}

func TestThreshold_UndecidedUntilMetricRecorded(t *testing.T) {
	t.Parallel()
	cond := Threshold{Metric: "loss", Op: LT, Value: 0.5}

	ok, err := cond.Eval(&fakeState{})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = cond.Eval(&fakeState{metrics: map[string]float64{"loss": 0.3}})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestThreshold_Comparators(t *testing.T) {
	t.Parallel()
	s := &fakeState{metrics: map[string]float64{"m": 10}}

	cases := []struct {
		op   Comparator
		v    float64
		want bool
	}{
		{GT, 9, true},
		{GT, 10, false},
		{GE, 10, true},
		{LT, 11, true},
		{LE, 10, true},
		{EQ, 10, true},
		{EQ, 9, false},
	}
	for _, tc := range cases {
		ok, err := Threshold{Metric: "m", Op: tc.op, Value: tc.v}.Eval(s)
		require.NoError(t, err)
		assert.Equalf(t, tc.want, ok, "op=%s value=%g", tc.op, tc.v)
	}
}

func TestParseComparator_RejectsUnknown(t *testing.T) {
	t.Parallel()
	_, err := ParseComparator("~=")
	require.Error(t, err)
}

func TestStability_RequiresFullWindow(t *testing.T) {
	t.Parallel()
	cond := Stability{Metric: "loss", Window: 3, MaxVariance: 0.01}

	ok, err := cond.Eval(&fakeState{histories: map[string][]float64{"loss": {1.0, 1.0}}})
	require.NoError(t, err)
	assert.False(t, ok, "two samples cannot fill a window of three")

	ok, err = cond.Eval(&fakeState{histories: map[string][]float64{"loss": {5.0, 1.0, 1.0, 1.0}}})
	require.NoError(t, err)
	assert.True(t, ok, "only the last three samples count")
}

func TestStability_UnstableHistory(t *testing.T) {
	t.Parallel()
	cond := Stability{Metric: "loss", Window: 3, MaxVariance: 0.01}

	ok, err := cond.Eval(&fakeState{histories: map[string][]float64{"loss": {1.0, 5.0, 1.0}}})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStability_RejectsTinyWindow(t *testing.T) {
	t.Parallel()
	_, err := Stability{Metric: "loss", Window: 1}.Eval(&fakeState{})
	require.Error(t, err)
}

func TestComposite_WeightedSum(t *testing.T) {
	t.Parallel()
	s := &fakeState{metrics: map[string]float64{"a": 100, "b": 0}}
	satisfied := Threshold{Metric: "a", Op: GT, Value: 50}
	unsatisfied := Threshold{Metric: "b", Op: GT, Value: 50}

	// One of two equally weighted terms meets a 0.5 threshold.
	cond := Composite{
		Terms: []Term{
			{Condition: satisfied, Weight: 0.5},
			{Condition: unsatisfied, Weight: 0.5},
		},
		Threshold: 0.5,
	}
	ok, err := cond.Eval(s)
	require.NoError(t, err)
	assert.True(t, ok)

	// The same terms do not meet a threshold requiring both.
	cond.Threshold = 1.0
	ok, err = cond.Eval(s)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestComposite_MetricScoreTerms(t *testing.T) {
	t.Parallel()
	cond := Composite{
		Terms: []Term{
			{Metric: "accuracy", Weight: 0.7},
			{Metric: "coverage", Weight: 0.3},
		},
		Threshold: 0.9,
	}

	// 0.7*0.95 + 0.3*0.9 = 0.935.
	ok, err := cond.Eval(&fakeState{metrics: map[string]float64{"accuracy": 0.95, "coverage": 0.9}})
	require.NoError(t, err)
	assert.True(t, ok)

	// 0.7*0.8 + 0.3*0.9 = 0.83.
	ok, err = cond.Eval(&fakeState{metrics: map[string]float64{"accuracy": 0.8, "coverage": 0.9}})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestComposite_UnrecordedMetricContributesNothing(t *testing.T) {
	t.Parallel()
	cond := Composite{
		Terms:     []Term{{Metric: "accuracy", Weight: 1.0}},
		Threshold: 0.5,
	}

	ok, err := cond.Eval(&fakeState{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestComposite_MixedTermForms(t *testing.T) {
	t.Parallel()
	s := &fakeState{metrics: map[string]float64{"loss": 0.1, "accuracy": 0.6}}
	cond := Composite{
		Terms: []Term{
			{Condition: Threshold{Metric: "loss", Op: LT, Value: 0.5}, Weight: 0.5},
			{Metric: "accuracy", Weight: 0.5},
		},
		Threshold: 0.75,
	}

	// 0.5*1 + 0.5*0.6 = 0.8.
	ok, err := cond.Eval(s)
	require.NoError(t, err)
	assert.True(t, ok)

	cond.Threshold = 0.9
	ok, err = cond.Eval(s)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestComposite_EmptyTermRejected(t *testing.T) {
	t.Parallel()
	cond := Composite{Terms: []Term{{Weight: 1.0}}, Threshold: 0.5}

	_, err := cond.Eval(&fakeState{})
	require.Error(t, err)
}

func TestAny_ReturnsFirstSatisfied(t *testing.T) {
	t.Parallel()
	s := &fakeState{metrics: map[string]float64{"m": 10}}
	first := Threshold{Metric: "m", Op: GT, Value: 100}
	second := Threshold{Metric: "m", Op: GT, Value: 5}
	third := Threshold{Metric: "m", Op: GT, Value: 1}

	got, err := Any([]Condition{first, second, third}, s)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, second.Describe(), got.Describe())
}

func TestAny_NoneSatisfied(t *testing.T) {
	t.Parallel()
	s := &fakeState{metrics: map[string]float64{"m": 10}}

	got, err := Any([]Condition{Threshold{Metric: "m", Op: GT, Value: 100}}, s)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestExpression_RejectsUndefinedNames(t *testing.T) {
	t.Parallel()
	_, err := NewExpression("loss < 0.5 && missing > 1", []string{"loss"})
	require.Error(t, err, "names outside the declared variables must fail at compile time")
}

func TestExpression_UndecidedUntilAllVarsRecorded(t *testing.T) {
	t.Parallel()
	cond, err := NewExpression("loss < 0.5 && accuracy > 0.9", []string{"loss", "accuracy"})
	require.NoError(t, err)

	ok, err := cond.Eval(&fakeState{metrics: map[string]float64{"loss": 0.1}})
	require.NoError(t, err)
	assert.False(t, ok, "missing variables keep the condition undecided")

	ok, err = cond.Eval(&fakeState{metrics: map[string]float64{"loss": 0.1, "accuracy": 0.95}})
	require.NoError(t, err)
	assert.True(t, ok)
}
