package hclspec

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/flowgridgo/internal/converge"
	"github.com/vk/flowgridgo/internal/ctxlog"
	"github.com/vk/flowgridgo/internal/graph"
	"github.com/zclconf/go-cty/cty"
)

// Load parses a single workflow definition file into a built graph. The
// graph still needs Validate before execution; Load only performs the
// structural translation.
func Load(ctx context.Context, path string) (*graph.Graph, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading workflow definition.", "path", path)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing %s: %w", path, diags)
	}

	var wf workflowFile
	if diags := gohcl.DecodeBody(file.Body, nil, &wf); diags.HasErrors() {
		return nil, fmt.Errorf("decoding %s: %w", path, diags)
	}

	g := graph.New()

	for _, nb := range wf.Nodes {
		config, err := decodeConfig(nb)
		if err != nil {
			return nil, err
		}
		if err := g.AddNode(nb.ID, nb.RunnerType, config); err != nil {
			return nil, err
		}
	}

	for _, eb := range wf.Edges {
		src, srcKey, err := splitRef(eb.From)
		if err != nil {
			return nil, fmt.Errorf("edge 'from': %w", err)
		}
		dst, dstKey, err := splitRef(eb.To)
		if err != nil {
			return nil, fmt.Errorf("edge 'to': %w", err)
		}
		if err := g.AddEdge(src, srcKey, dst, dstKey); err != nil {
			return nil, err
		}
	}

	for _, cb := range wf.Cycles {
		spec, err := buildCycleSpec(cb)
		if err != nil {
			return nil, err
		}
		src, srcKey, err := splitRef(cb.From)
		if err != nil {
			return nil, fmt.Errorf("cycle 'from': %w", err)
		}
		dst, dstKey, err := splitRef(cb.To)
		if err != nil {
			return nil, fmt.Errorf("cycle 'to': %w", err)
		}
		if err := g.AddCycleEdge(src, srcKey, dst, dstKey, spec); err != nil {
			return nil, err
		}
	}

	name := ""
	if wf.Workflow != nil {
		name = wf.Workflow.Name
	}
	logger.Info("Workflow definition loaded.", "workflow", name, "nodes", g.Size(), "edges", len(g.Edges()))
	return g, nil
}

// decodeConfig evaluates a node's config attributes into cty values. The
// evaluation context is nil on purpose: config values are static, and data
// flow between nodes goes through typed edges, not string templates.
func decodeConfig(nb *nodeBlock) (map[string]cty.Value, error) {
	config := make(map[string]cty.Value)
	if nb.Config == nil {
		return config, nil
	}
	attrs, diags := nb.Config.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("node %q config: %w", nb.ID, diags)
	}
	for name, attr := range attrs {
		v, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("node %q config attribute %q: %w", nb.ID, name, diags)
		}
		config[name] = v
	}
	return config, nil
}

// buildCycleSpec translates a cycle block's bounds and conditions.
func buildCycleSpec(cb *cycleBlock) (graph.CycleSpec, error) {
	spec := graph.CycleSpec{MaxIterations: cb.MaxIterations}

	if cb.Timeout != "" {
		d, err := time.ParseDuration(cb.Timeout)
		if err != nil {
			return spec, fmt.Errorf("cycle %s -> %s: invalid timeout: %w", cb.From, cb.To, err)
		}
		spec.Timeout = d
	}
	if cb.MemoryGrowth > 0 {
		spec.MemoryGrowthLimit = uint64(cb.MemoryGrowth)
	}
	if cb.Converge == nil {
		return spec, nil
	}

	for _, tb := range cb.Converge.Thresholds {
		cond, err := thresholdCondition(tb)
		if err != nil {
			return spec, err
		}
		spec.Conditions = append(spec.Conditions, cond)
	}
	for _, sb := range cb.Converge.Stabilities {
		spec.Conditions = append(spec.Conditions, converge.Stability{
			Metric:      sb.Metric,
			Window:      sb.Window,
			MaxVariance: sb.MaxVariance,
		})
	}
	for _, eb := range cb.Converge.Expressions {
		cond, err := converge.NewExpression(eb.Source, eb.Vars)
		if err != nil {
			return spec, err
		}
		spec.Conditions = append(spec.Conditions, cond)
	}
	for _, comp := range cb.Converge.Composites {
		cond, err := compositeCondition(comp)
		if err != nil {
			return spec, err
		}
		spec.Conditions = append(spec.Conditions, cond)
	}
	return spec, nil
}

func thresholdCondition(tb *thresholdBlock) (converge.Condition, error) {
	op, err := converge.ParseComparator(tb.Op)
	if err != nil {
		return nil, fmt.Errorf("threshold on %q: %w", tb.Metric, err)
	}
	return converge.Threshold{Metric: tb.Metric, Op: op, Value: tb.Value}, nil
}

func compositeCondition(comp *compositeBlock) (converge.Condition, error) {
	composite := converge.Composite{Threshold: comp.Threshold}
	for i, term := range comp.Terms {
		if term.Metric != "" {
			composite.Terms = append(composite.Terms, converge.Term{Metric: term.Metric, Weight: term.Weight})
			continue
		}
		var cond converge.Condition
		var err error
		switch {
		case term.Threshold != nil:
			cond, err = thresholdCondition(term.Threshold)
		case term.Stability != nil:
			cond = converge.Stability{
				Metric:      term.Stability.Metric,
				Window:      term.Stability.Window,
				MaxVariance: term.Stability.MaxVariance,
			}
		case term.Expression != nil:
			cond, err = converge.NewExpression(term.Expression.Source, term.Expression.Vars)
		default:
			err = fmt.Errorf("composite term %d: needs a metric or a condition block", i)
		}
		if err != nil {
			return nil, err
		}
		composite.Terms = append(composite.Terms, converge.Term{Condition: cond, Weight: term.Weight})
	}
	return composite, nil
}

// splitRef parses a "<node>.<key>" reference.
func splitRef(ref string) (node, key string, err error) {
	idx := strings.LastIndex(ref, ".")
	if idx <= 0 || idx == len(ref)-1 {
		return "", "", fmt.Errorf("malformed reference %q, want \"node.key\"", ref)
	}
	return ref[:idx], ref[idx+1:], nil
}
