package pipeline

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	clierr "github.com/ggonzalez94/yieldsensei/internal/errors"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

func ParseRiskLevel(s string) (RiskLevel, error) {
	switch v := RiskLevel(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return RiskMedium, nil
	case RiskLow, RiskMedium, RiskHigh:
		return v, nil
	default:
		return "", clierr.New(clierr.CodeUsage, fmt.Sprintf("risk level must be low, medium or high, got %q", s))
	}
}

type Strategy string

const (
	StrategyBalanced     Strategy = "balanced"
	StrategyAggressive   Strategy = "aggressive"
	StrategyConservative Strategy = "conservative"
)

func ParseStrategy(s string) (Strategy, error) {
	switch v := Strategy(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return StrategyBalanced, nil
	case StrategyBalanced, StrategyAggressive, StrategyConservative:
		return v, nil
	default:
		return "", clierr.New(clierr.CodeUsage, fmt.Sprintf("strategy must be balanced, aggressive or conservative, got %q", s))
	}
}

var DefaultCapital = decimal.NewFromInt(10000)

// StageOutput is the text one stage produced.
type StageOutput struct {
	Stage  StageName `json:"stage"`
	Agent  string    `json:"agent"`
	Output string    `json:"output"`
}

// Context is the state shared by the stages of one run. Outputs are only
// ever appended, in execution order.
type Context struct {
	Capital   decimal.Decimal
	RiskLevel RiskLevel
	Strategy  Strategy

	outputs []StageOutput
}

func NewContext(capital decimal.Decimal, riskLevel RiskLevel, strategy Strategy) (*Context, error) {
	if !capital.IsPositive() {
		return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("capital must be positive, got %s", capital.String()))
	}
	riskLevel, err := ParseRiskLevel(string(riskLevel))
	if err != nil {
		return nil, err
	}
	strategy, err = ParseStrategy(string(strategy))
	if err != nil {
		return nil, err
	}
	return &Context{Capital: capital, RiskLevel: riskLevel, Strategy: strategy}, nil
}

// ParseCapital accepts plain decimals and an optional leading "$".
func ParseCapital(s string) (decimal.Decimal, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return DefaultCapital, nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, clierr.Wrap(clierr.CodeUsage, fmt.Sprintf("invalid capital %q", s), err)
	}
	return v, nil
}

func (c *Context) Outputs() []StageOutput {
	return append([]StageOutput{}, c.outputs...)
}

func (c *Context) Output(stage StageName) (StageOutput, bool) {
	for _, o := range c.outputs {
		if o.Stage == stage {
			return o, true
		}
	}
	return StageOutput{}, false
}

func (c *Context) append(o StageOutput) {
	c.outputs = append(c.outputs, o)
}

// View is the read-only projection a stage template renders from.
type View struct {
	Capital   string
	RiskLevel RiskLevel
	Strategy  Strategy
	Upstream  []StageOutput
}

func (c *Context) view(deps []StageName) View {
	v := View{
		Capital:   c.Capital.String(),
		RiskLevel: c.RiskLevel,
		Strategy:  c.Strategy,
	}
	for _, dep := range deps {
		if o, ok := c.Output(dep); ok {
			v.Upstream = append(v.Upstream, o)
		}
	}
	return v
}
