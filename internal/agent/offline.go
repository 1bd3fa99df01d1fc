package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	clierr "github.com/ggonzalez94/yieldsensei/internal/errors"
	"github.com/ggonzalez94/yieldsensei/internal/pipeline"
	"github.com/ggonzalez94/yieldsensei/internal/tools"
)

const digestLines = 12

// Offline answers every stage from the analytical tools and upstream
// outputs without calling a language model. A stage whose tool data cannot
// be fetched fails.
type Offline struct {
	tools  *tools.Set
	probes map[pipeline.StageName][]Probe
}

func NewOffline(set *tools.Set, probes map[pipeline.StageName][]Probe) *Offline {
	if probes == nil {
		probes = DefaultProbes()
	}
	return &Offline{tools: set, probes: probes}
}

func (o *Offline) Name() string { return "offline" }

func (o *Offline) Execute(ctx context.Context, req pipeline.Request) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s report (%s)\n", req.Agent.Role, req.Agent.Name)
	fmt.Fprintf(&b, "Capital: $%s | Risk level: %s | Strategy: %s\n", req.View.Capital, req.View.RiskLevel, req.View.Strategy)

	if probes := o.probes[req.Stage]; len(probes) > 0 {
		items, err := gather(ctx, o.tools, probes)
		if err != nil {
			return "", err
		}
		for _, e := range items {
			if e.result.Status == tools.StatusError {
				return "", e.result.Err
			}
		}
		b.WriteString(renderEvidence(items))
	}

	switch req.Stage {
	case pipeline.StageSentiment:
		b.WriteString("\nNo social data source is configured; signals below are carried over from earlier stages.\n")
	case pipeline.StageAllocation:
		plan, err := allocate(req.View)
		if err != nil {
			return "", err
		}
		b.WriteString("\n" + plan)
	}
	if len(req.View.Upstream) > 0 {
		b.WriteString("\n## Upstream digest\n")
		for _, up := range req.View.Upstream {
			fmt.Fprintf(&b, "\n### %s (%s)\n%s\n", up.Stage, up.Agent, digest(up.Output, digestLines))
		}
	}
	return strings.TrimSpace(b.String()), nil
}

type bucket struct {
	label string
	pct   int64
}

var allocationTable = map[pipeline.RiskLevel][]bucket{
	pipeline.RiskLow: {
		{"Stablecoin yield (audited pools)", 70},
		{"Bluechip lending", 30},
	},
	pipeline.RiskMedium: {
		{"Stablecoin yield (audited pools)", 50},
		{"Bluechip lending", 35},
		{"Established LP farming", 15},
	},
	pipeline.RiskHigh: {
		{"Stablecoin yield (audited pools)", 30},
		{"Bluechip lending", 30},
		{"Leveraged or LP strategies", 40},
	},
}

// allocate splits capital across fixed buckets by risk level. The last
// bucket absorbs rounding so amounts always sum to capital.
func allocate(v pipeline.View) (string, error) {
	capital, err := decimal.NewFromString(v.Capital)
	if err != nil {
		return "", clierr.Wrap(clierr.CodeInternal, "parse capital", err)
	}
	buckets, ok := allocationTable[v.RiskLevel]
	if !ok {
		buckets = allocationTable[pipeline.RiskMedium]
	}
	var b strings.Builder
	b.WriteString("## Allocation plan\n")
	remaining := capital
	hundred := decimal.NewFromInt(100)
	for i, bk := range buckets {
		amount := capital.Mul(decimal.NewFromInt(bk.pct)).Div(hundred).Round(2)
		if i == len(buckets)-1 {
			amount = remaining
		}
		remaining = remaining.Sub(amount)
		fmt.Fprintf(&b, "- %s: %d%% = $%s\n", bk.label, bk.pct, amount.StringFixed(2))
	}
	b.WriteString("Entry: staged over two weeks. Exit: withdraw any position whose security rating drops.\n")
	return b.String(), nil
}

func digest(text string, maxLines int) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) <= maxLines {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[:maxLines], "\n") + fmt.Sprintf("\n... (%d more lines)", len(lines)-maxLines)
}
