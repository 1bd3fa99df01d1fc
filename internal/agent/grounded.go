package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ggonzalez94/yieldsensei/internal/pipeline"
	"github.com/ggonzalez94/yieldsensei/internal/tools"
)

// Probe is one tool query run on behalf of a stage.
type Probe struct {
	Tool  string
	Query string
}

// DefaultProbes are the tool queries each data-driven stage is grounded on.
// Stages without probes work from upstream outputs only.
func DefaultProbes() map[pipeline.StageName][]Probe {
	return map[pipeline.StageName][]Probe{
		pipeline.StageResearch: {
			{Tool: "market", Query: "top tvl protocols"},
			{Tool: "market", Query: "top stablecoin apy"},
		},
		pipeline.StageYield: {
			{Tool: "market", Query: "top apy pools"},
			{Tool: "strategy", Query: "list available strategies"},
		},
		pipeline.StageSecurity: {
			{Tool: "security", Query: "risk ratings"},
			{Tool: "security", Query: "security overview"},
		},
	}
}

type evidence struct {
	probe  Probe
	result tools.Result
}

func gather(ctx context.Context, set *tools.Set, probes []Probe) ([]evidence, error) {
	out := make([]evidence, 0, len(probes))
	for _, p := range probes {
		tool, ok := set.Get(p.Tool)
		if !ok {
			return nil, fmt.Errorf("unknown tool %q", p.Tool)
		}
		out = append(out, evidence{probe: p, result: tools.Run(ctx, tool, p.Query)})
	}
	return out, nil
}

func renderEvidence(items []evidence) string {
	var b strings.Builder
	for _, e := range items {
		fmt.Fprintf(&b, "\n### %s: %s\n%s\n", e.probe.Tool, e.probe.Query, strings.TrimSpace(e.result.Text))
	}
	return b.String()
}

// Grounded runs the stage's probes and appends their results to the task
// before delegating to the wrapped executor. Tool failures are passed on as
// text; the model decides what to make of them.
type Grounded struct {
	inner  pipeline.Executor
	tools  *tools.Set
	probes map[pipeline.StageName][]Probe
	log    *zap.Logger
}

func NewGrounded(inner pipeline.Executor, set *tools.Set, probes map[pipeline.StageName][]Probe, log *zap.Logger) *Grounded {
	if probes == nil {
		probes = DefaultProbes()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Grounded{inner: inner, tools: set, probes: probes, log: log}
}

func (g *Grounded) Name() string { return g.inner.Name() + "+tools" }

func (g *Grounded) Execute(ctx context.Context, req pipeline.Request) (string, error) {
	probes := g.probes[req.Stage]
	if len(probes) == 0 {
		return g.inner.Execute(ctx, req)
	}
	items, err := gather(ctx, g.tools, probes)
	if err != nil {
		return "", err
	}
	for _, e := range items {
		if !e.result.OK() {
			g.log.Warn("grounding probe did not succeed",
				zap.String("stage", string(req.Stage)),
				zap.String("tool", e.probe.Tool),
				zap.String("status", string(e.result.Status)),
			)
		}
	}
	req.Task = req.Task + "\n\nReference data from the analytical tools:" + renderEvidence(items)
	return g.inner.Execute(ctx, req)
}
