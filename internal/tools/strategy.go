package tools

import (
	"context"

	"github.com/ggonzalez94/yieldsensei/internal/classify"
	"github.com/ggonzalez94/yieldsensei/internal/model"
	"github.com/ggonzalez94/yieldsensei/internal/strategy"
)

const strategyHelp = `I can help with the following DeFi strategy queries:
- List or discover available strategies
- Estimate yield for a strategy
- Assess risks for a strategy
- Step-by-step guide for a strategy
- Protocols/assets supporting a strategy
- Historical performance of a strategy
Please specify your query more clearly.`

type Strategy struct {
	catalog *strategy.Catalog
}

func NewStrategy(catalog *strategy.Catalog) *Strategy {
	if catalog == nil {
		catalog = strategy.Default()
	}
	return &Strategy{catalog: catalog}
}

func (s *Strategy) Info() model.ToolInfo {
	return model.ToolInfo{
		Name:        "strategy",
		Description: "Yield strategy catalog: estimates, risks, guides, supporting protocols and history.",
		Intents:     intentNames(classify.StrategyRules),
	}
}

func (s *Strategy) Classify(query string) classify.Intent {
	return classify.StrategyRules.Classify(query)
}

func (s *Strategy) Execute(ctx context.Context, intent classify.Intent, query string) Result {
	var (
		payload any
		err     error
	)
	switch intent {
	case classify.StrategyList:
		return ok(intent, map[string]any{"available_strategies": s.catalog.List()})
	case classify.StrategyEstimate:
		payload, err = s.catalog.Estimate(query)
	case classify.StrategyRisk:
		payload, err = s.catalog.Risks(query)
	case classify.StrategyGuide:
		payload, err = s.catalog.Guide(query)
	case classify.StrategySupport:
		payload, err = s.catalog.Support(query)
	case classify.StrategyHistory:
		payload, err = s.catalog.History(query)
	default:
		return help(strategyHelp)
	}
	if err != nil {
		r := ok(intent, map[string]string{"error": strategy.NotRecognized})
		r.Status = StatusNotFound
		r.Err = err
		return r
	}
	return ok(intent, payload)
}
