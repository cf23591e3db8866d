package hclspec

import "github.com/hashicorp/hcl/v2"

// workflowFile is the top-level structure of a workflow definition file.
type workflowFile struct {
	Workflow *workflowBlock `hcl:"workflow,block"`
	Nodes    []*nodeBlock   `hcl:"node,block"`
	Edges    []*edgeBlock   `hcl:"edge,block"`
	Cycles   []*cycleBlock  `hcl:"cycle,block"`
}

// workflowBlock names the workflow. Optional and informational.
type workflowBlock struct {
	Name string   `hcl:"name,label"`
	Body hcl.Body `hcl:",remain"`
}

// nodeBlock declares one node: `node "<runner_type>" "<id>" { ... }`.
type nodeBlock struct {
	RunnerType string       `hcl:"runner_type,label"`
	ID         string       `hcl:"id,label"`
	Config     *configBlock `hcl:"config,block"`
}

// configBlock holds the node's static configuration attributes.
type configBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// edgeBlock declares a data edge: from = "<node>.<output>", to = "<node>.<input>".
type edgeBlock struct {
	From string `hcl:"from"`
	To   string `hcl:"to"`
}

// cycleBlock declares a marked back-edge with its bounds and conditions.
type cycleBlock struct {
	From          string         `hcl:"from"`
	To            string         `hcl:"to"`
	MaxIterations int            `hcl:"max_iterations"`
	Timeout       string         `hcl:"timeout,optional"`
	MemoryGrowth  int64          `hcl:"memory_growth_limit,optional"`
	Converge      *convergeBlock `hcl:"converge_any,block"`
}

// convergeBlock collects the cycle's stopping conditions. The block is
// named converge_any because the set is a disjunction: the first satisfied
// condition stops the cycle, even if the others never would.
type convergeBlock struct {
	Thresholds  []*thresholdBlock  `hcl:"threshold,block"`
	Stabilities []*stabilityBlock  `hcl:"stability,block"`
	Expressions []*expressionBlock `hcl:"expression,block"`
	Composites  []*compositeBlock  `hcl:"composite,block"`
}

type thresholdBlock struct {
	Metric string  `hcl:"metric"`
	Op     string  `hcl:"op"`
	Value  float64 `hcl:"value"`
}

type stabilityBlock struct {
	Metric      string  `hcl:"metric"`
	Window      int     `hcl:"window"`
	MaxVariance float64 `hcl:"max_variance"`
}

type expressionBlock struct {
	Source string   `hcl:"source"`
	Vars   []string `hcl:"vars"`
}

type compositeBlock struct {
	Threshold float64      `hcl:"threshold"`
	Terms     []*termBlock `hcl:"term,block"`
}

// termBlock is one weighted member of a composite. Either metric names a
// metric whose latest value is scaled by weight, or exactly one nested
// condition block contributes weight as a 0/1 truth value.
type termBlock struct {
	Weight     float64          `hcl:"weight"`
	Metric     string           `hcl:"metric,optional"`
	Threshold  *thresholdBlock  `hcl:"threshold,block"`
	Stability  *stabilityBlock  `hcl:"stability,block"`
	Expression *expressionBlock `hcl:"expression,block"`
}
