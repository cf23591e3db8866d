package hclspec

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/flowgridgo/internal/converge"
	"github.com/vk/flowgridgo/internal/testutil"
)

func TestLoad_BasicWorkflow(t *testing.T) {
	t.Parallel()
	path := testutil.WriteWorkflow(t, `
		workflow "smoke" {}

		node "passthrough" "source" {
			config {
				value = 42
			}
		}

		node "add" "sum" {}

		edge {
			from = "source.value"
			to   = "sum.a"
		}
	`)

	g, err := Load(context.Background(), path)
	require.NoError(t, err)

	require.Equal(t, 2, g.Size())
	node, ok := g.Node("source")
	require.True(t, ok)
	assert.Equal(t, "passthrough", node.Type)
	assert.Equal(t, cty.NumberIntVal(42), node.Config["value"])

	edges := g.ForwardEdges()
	require.Len(t, edges, 1)
	assert.Equal(t, "source", edges[0].Src)
	assert.Equal(t, "value", edges[0].SrcKey)
	assert.Equal(t, "sum", edges[0].Dst)
	assert.Equal(t, "a", edges[0].DstKey)
}

func TestLoad_CycleBlockWithConditions(t *testing.T) {
	t.Parallel()
	path := testutil.WriteWorkflow(t, `
		node "counter" "train" {}
		node "passthrough" "eval" {}

		edge {
			from = "train.count"
			to   = "eval.value"
		}

		cycle {
			from           = "eval.value"
			to             = "train.seed"
			max_iterations = 50
			timeout        = "90s"
			memory_growth_limit = 1048576

			converge_any {
				threshold {
					metric = "count"
					op     = ">="
					value  = 10
				}
				stability {
					metric       = "count"
					window       = 4
					max_variance = 0.001
				}
				expression {
					source = "count >= 10"
					vars   = ["count"]
				}
				composite {
					threshold = 0.5
					term {
						weight = 0.5
						threshold {
							metric = "count"
							op     = ">"
							value  = 8
						}
					}
					term {
						weight = 0.5
						stability {
							metric       = "count"
							window       = 3
							max_variance = 0.01
						}
					}
					term {
						weight = 0.1
						metric = "accuracy"
					}
				}
			}
		}
	`)

	g, err := Load(context.Background(), path)
	require.NoError(t, err)

	cycles := g.CycleEdges()
	require.Len(t, cycles, 1)
	be := cycles[0]
	assert.True(t, be.IsCycle)
	assert.Equal(t, "eval", be.Src)
	assert.Equal(t, "train", be.Dst)
	assert.Equal(t, "seed", be.DstKey)

	require.NotNil(t, be.Cycle)
	assert.Equal(t, 50, be.Cycle.MaxIterations)
	assert.Equal(t, 90*time.Second, be.Cycle.Timeout)
	assert.Equal(t, uint64(1048576), be.Cycle.MemoryGrowthLimit)
	require.Len(t, be.Cycle.Conditions, 4)

	threshold, ok := be.Cycle.Conditions[0].(converge.Threshold)
	require.True(t, ok)
	assert.Equal(t, converge.GE, threshold.Op)
	assert.Equal(t, 10.0, threshold.Value)

	composite, ok := be.Cycle.Conditions[3].(converge.Composite)
	require.True(t, ok)
	assert.Equal(t, 0.5, composite.Threshold)
	require.Len(t, composite.Terms, 3)
	assert.Equal(t, "accuracy", composite.Terms[2].Metric)
	assert.Equal(t, 0.1, composite.Terms[2].Weight)
}

func TestLoad_MalformedReference(t *testing.T) {
	t.Parallel()
	path := testutil.WriteWorkflow(t, `
		node "passthrough" "a" {}
		node "passthrough" "b" {}

		edge {
			from = "a"
			to   = "b.value"
		}
	`)

	_, err := Load(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed reference")
}

func TestLoad_UnknownEdgeEndpoint(t *testing.T) {
	t.Parallel()
	path := testutil.WriteWorkflow(t, `
		node "passthrough" "a" {}

		edge {
			from = "a.value"
			to   = "ghost.value"
		}
	`)

	_, err := Load(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestLoad_BadConvergeExpressionRejectedAtLoadTime(t *testing.T) {
	t.Parallel()
	path := testutil.WriteWorkflow(t, `
		node "counter" "c" {}

		cycle {
			from           = "c.count"
			to             = "c.seed"
			max_iterations = 5

			converge_any {
				expression {
					source = "undeclared > 1"
					vars   = ["count"]
				}
			}
		}
	`)

	_, err := Load(context.Background(), path)
	require.Error(t, err)
}

func TestLoad_SyntaxError(t *testing.T) {
	t.Parallel()
	path := testutil.WriteWorkflow(t, `node "passthrough" "a" {`)

	_, err := Load(context.Background(), path)
	require.Error(t, err)
}

func TestSplitRef(t *testing.T) {
	t.Parallel()
	node, key, err := splitRef("train.count")
	require.NoError(t, err)
	assert.Equal(t, "train", node)
	assert.Equal(t, "count", key)

	// Node ids may themselves contain dots; the last one separates the key.
	node, key, err = splitRef("stage.train.count")
	require.NoError(t, err)
	assert.Equal(t, "stage.train", node)
	assert.Equal(t, "count", key)

	for _, bad := range []string{"train", ".count", "train.", ""} {
		_, _, err := splitRef(bad)
		require.Errorf(t, err, "ref %q", bad)
	}
}
