package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/ggonzalez94/yieldsensei/internal/classify"
	clierr "github.com/ggonzalez94/yieldsensei/internal/errors"
	"github.com/ggonzalez94/yieldsensei/internal/model"
	"github.com/ggonzalez94/yieldsensei/internal/rank"
)

const marketHelp = `I can help with the following DeFiLlama queries:
- TVL data (top protocols by TVL)
- APY/Yield data (top yields or stablecoin yields)
- Protocol information (details about a specific protocol)

Please specify your query more clearly.`

// Gateway is the data source behind the market and security tools.
type Gateway interface {
	Name() string
	FetchProtocols(ctx context.Context) ([]model.ProtocolRecord, error)
	FetchYieldPools(ctx context.Context) ([]model.YieldPoolRecord, error)
	FetchProtocolDetail(ctx context.Context, slug string) (model.ProtocolDetail, error)
}

type Market struct {
	gateway Gateway
	limit   int
}

func NewMarket(gateway Gateway, limit int) *Market {
	if limit <= 0 {
		limit = rank.DefaultLimit
	}
	return &Market{gateway: gateway, limit: limit}
}

func (m *Market) Info() model.ToolInfo {
	return model.ToolInfo{
		Name:        "market",
		Description: "Top protocols by TVL, top and stablecoin yields, and protocol details from DefiLlama.",
		Intents:     intentNames(classify.MarketRules),
		Provider:    m.gateway.Name(),
	}
}

func (m *Market) Classify(query string) classify.Intent {
	return classify.MarketRules.Classify(query)
}

func (m *Market) Execute(ctx context.Context, intent classify.Intent, query string) Result {
	switch intent {
	case classify.TopTVL:
		return m.topTVL(ctx)
	case classify.TopYields:
		return m.topYields(ctx)
	case classify.StablecoinYields:
		return m.stablecoinYields(ctx)
	case classify.ProtocolInfo:
		name := classify.TokensAfter(query, "protocol", "info", "data", "details")
		if name == "" {
			return clarify(intent, "Please specify a protocol name to get details.")
		}
		return m.protocolInfo(ctx, name)
	default:
		return help(marketHelp)
	}
}

type tvlEntry struct {
	Name     string  `json:"name"`
	TVL      float64 `json:"tvl"`
	Chain    string  `json:"chain"`
	Category string  `json:"category"`
	URL      string  `json:"url"`
}

type yieldEntry struct {
	Pool       string  `json:"pool"`
	Project    string  `json:"project"`
	Chain      string  `json:"chain"`
	APY        float64 `json:"apy"`
	TVL        float64 `json:"tvl"`
	ILRisk     string  `json:"il_risk"`
	StablePool string  `json:"stable_pool"`
	Tokens     string  `json:"tokens"`
}

type stableYieldEntry struct {
	Pool    string  `json:"pool"`
	Project string  `json:"project"`
	Chain   string  `json:"chain"`
	APY     float64 `json:"apy"`
	TVL     float64 `json:"tvl"`
	Tokens  string  `json:"tokens"`
}

type protocolInfo struct {
	Name        string             `json:"name"`
	TVL         float64            `json:"tvl"`
	Chains      []string           `json:"chains"`
	Category    string             `json:"category"`
	Description string             `json:"description"`
	URL         string             `json:"url"`
	Twitter     string             `json:"twitter"`
	AuditLinks  []string           `json:"audit_links"`
	ChainTVLs   map[string]float64 `json:"chain_tvls"`
}

func (m *Market) topTVL(ctx context.Context) Result {
	protocols, err := m.gateway.FetchProtocols(ctx)
	if err != nil {
		return failure(classify.TopTVL, "Error fetching TVL data", err)
	}
	top := rank.TopTVL(protocols, m.limit)
	entries := make([]tvlEntry, 0, len(top))
	for _, p := range top {
		entries = append(entries, tvlEntry{
			Name:     orDefault(p.Name, "Unknown"),
			TVL:      p.TVL,
			Chain:    orDefault(p.Chain, "Unknown"),
			Category: orDefault(p.Category, "Unknown"),
			URL:      p.URL,
		})
	}
	return ok(classify.TopTVL, map[string]any{"top_tvl_protocols": entries})
}

func (m *Market) topYields(ctx context.Context) Result {
	pools, err := m.gateway.FetchYieldPools(ctx)
	if err != nil {
		return failure(classify.TopYields, "Error fetching yield data", err)
	}
	top := rank.TopYields(pools, m.limit)
	entries := make([]yieldEntry, 0, len(top))
	for _, p := range top {
		entries = append(entries, yieldEntry{
			Pool:       orDefault(p.Pool, "Unknown"),
			Project:    orDefault(p.Project, "Unknown"),
			Chain:      orDefault(p.Chain, "Unknown"),
			APY:        p.APY,
			TVL:        p.TVLUSD,
			ILRisk:     yesNo(p.ILRisk),
			StablePool: yesNo(p.Stablecoin),
			Tokens:     orDefault(p.Symbol, "Unknown"),
		})
	}
	return ok(classify.TopYields, map[string]any{"top_yield_opportunities": entries})
}

func (m *Market) stablecoinYields(ctx context.Context) Result {
	pools, err := m.gateway.FetchYieldPools(ctx)
	if err != nil {
		return failure(classify.StablecoinYields, "Error fetching stablecoin yield data", err)
	}
	top := rank.TopStablecoinYields(pools, m.limit)
	entries := make([]stableYieldEntry, 0, len(top))
	for _, p := range top {
		entries = append(entries, stableYieldEntry{
			Pool:    orDefault(p.Pool, "Unknown"),
			Project: orDefault(p.Project, "Unknown"),
			Chain:   orDefault(p.Chain, "Unknown"),
			APY:     p.APY,
			TVL:     p.TVLUSD,
			Tokens:  orDefault(p.Symbol, "Unknown"),
		})
	}
	return ok(classify.StablecoinYields, map[string]any{"top_stablecoin_yields": entries})
}

func (m *Market) protocolInfo(ctx context.Context, name string) Result {
	const attempt = "Error fetching protocol data"
	protocols, err := m.gateway.FetchProtocols(ctx)
	if err != nil {
		return failure(classify.ProtocolInfo, attempt, err)
	}
	p, found := model.FindProtocol(protocols, name)
	if !found {
		return failure(classify.ProtocolInfo, attempt,
			clierr.New(clierr.CodeNotFound, fmt.Sprintf("No protocol found matching '%s'", name)))
	}

	info := protocolInfo{
		Name:        orDefault(p.Name, "Unknown"),
		TVL:         p.TVL,
		Chains:      []string{},
		Category:    orDefault(p.Category, "Unknown"),
		Description: orDefault(p.Description, "No description available"),
		URL:         p.URL,
		Twitter:     p.Twitter,
		AuditLinks:  append([]string{}, p.AuditLinks...),
		ChainTVLs:   map[string]float64{},
	}
	if strings.TrimSpace(p.Slug) == "" {
		if p.Chain != "" {
			info.Chains = []string{p.Chain}
		}
		return ok(classify.ProtocolInfo, map[string]any{"protocol_info": info})
	}

	detail, err := m.gateway.FetchProtocolDetail(ctx, p.Slug)
	if err != nil {
		if clierr.Is(err, clierr.CodeNotFound) {
			err = clierr.New(clierr.CodeNotFound, fmt.Sprintf("No detailed data found for protocol '%s'", name))
		}
		return failure(classify.ProtocolInfo, attempt, err)
	}
	if tvl, has := detail.LatestTVL(); has {
		info.TVL = tvl
	}
	info.Chains = append(info.Chains, detail.Chains...)
	for chain, points := range detail.ChainTVLs {
		if n := len(points); n > 0 {
			info.ChainTVLs[chain] = points[n-1].TVLUSD
		}
	}
	return ok(classify.ProtocolInfo, map[string]any{"protocol_info": info})
}
