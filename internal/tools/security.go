package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/ggonzalez94/yieldsensei/internal/classify"
	"github.com/ggonzalez94/yieldsensei/internal/model"
	"github.com/ggonzalez94/yieldsensei/internal/risk"
)

const securityHelp = `I can help with the following security analysis queries:
- Audit information for a specific protocol
- TVL stability analysis for a protocol
- Risk ratings for protocols

Please specify your query more clearly.`

type Security struct {
	scorer   *risk.Scorer
	provider string
	protocol string
}

type SecurityOption func(*Security)

// WithProtocol pins the protocol instead of scanning the query for a known
// key. It is the only way to reach protocols outside the audit table.
func WithProtocol(name string) SecurityOption {
	return func(s *Security) { s.protocol = strings.ToLower(strings.TrimSpace(name)) }
}

func NewSecurity(scorer *risk.Scorer, provider string, opts ...SecurityOption) *Security {
	s := &Security{scorer: scorer, provider: provider}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Security) Info() model.ToolInfo {
	return model.ToolInfo{
		Name:        "security",
		Description: "Audit status, TVL stability and risk ratings for DeFi protocols.",
		Intents:     intentNames(classify.SecurityRules),
		Provider:    s.provider,
	}
}

func (s *Security) Classify(query string) classify.Intent {
	return classify.SecurityRules.Classify(query)
}

func (s *Security) Execute(ctx context.Context, intent classify.Intent, query string) Result {
	id, named := s.protocolFor(query)
	switch intent {
	case classify.Audit:
		if !named {
			return ok(intent, map[string]any{"security_overview": s.overview()})
		}
		return s.audit(ctx, intent, id)
	case classify.TVLStability:
		if !named {
			return clarify(intent, "Please specify a protocol name to check TVL stability.")
		}
		return s.stability(ctx, id)
	case classify.RiskRating:
		if !named {
			return ok(intent, map[string]any{"all_risk_ratings": s.allRatings()})
		}
		return s.rating(ctx, intent, id)
	default:
		return help(securityHelp)
	}
}

func (s *Security) protocolFor(query string) (string, bool) {
	if s.protocol != "" {
		return s.protocol, true
	}
	return classify.FirstKnown(query, s.scorer.Table().Keys())
}

type overviewEntry struct {
	Audited    bool       `json:"audited"`
	AuditScore int        `json:"audit_score"`
	RiskLevel  risk.Level `json:"risk_level"`
}

func (s *Security) overview() map[string]overviewEntry {
	out := map[string]overviewEntry{}
	for _, r := range s.scorer.Table().Records() {
		out[r.Key] = overviewEntry{Audited: r.Audited, AuditScore: r.AuditScore, RiskLevel: r.RiskLevel}
	}
	return out
}

func (s *Security) allRatings() map[string]risk.Level {
	out := map[string]risk.Level{}
	for _, r := range s.scorer.Table().Records() {
		out[r.Key] = r.RiskLevel
	}
	return out
}

type limitedInfo struct {
	AuditLinks     []string `json:"audit_links"`
	Note           string   `json:"note"`
	Recommendation string   `json:"recommendation"`
}

func limited(a risk.Assessment) map[string]any {
	return map[string]any{
		"protocol": a.Name,
		"limited_security_info": limitedInfo{
			AuditLinks:     a.AuditLinks,
			Note:           a.Note,
			Recommendation: a.Recommendation,
		},
	}
}

func (s *Security) audit(ctx context.Context, intent classify.Intent, id string) Result {
	a, err := s.scorer.LookupRisk(ctx, id)
	if err != nil {
		return failure(intent, fmt.Sprintf("Error fetching security data for %s", id), err)
	}
	if !a.Curated {
		return ok(intent, limited(a))
	}
	return ok(intent, map[string]any{"protocol": a.Key, "security_info": a.Record})
}

type ratingInfo struct {
	RiskLevel  risk.Level `json:"risk_level"`
	AuditScore int        `json:"audit_score"`
	Audited    bool       `json:"audited"`
}

func (s *Security) rating(ctx context.Context, intent classify.Intent, id string) Result {
	a, err := s.scorer.LookupRisk(ctx, id)
	if err != nil {
		return failure(intent, fmt.Sprintf("Error fetching risk rating for %s", id), err)
	}
	if !a.Curated {
		return ok(intent, limited(a))
	}
	return ok(intent, map[string]any{
		"protocol": a.Key,
		"risk_rating": ratingInfo{
			RiskLevel:  a.Record.RiskLevel,
			AuditScore: a.Record.AuditScore,
			Audited:    a.Record.Audited,
		},
	})
}

type stabilityInfo struct {
	CurrentTVL    float64    `json:"current_tvl"`
	AvgTVL        float64    `json:"30d_avg_tvl"`
	VolatilityPct float64    `json:"30d_volatility_pct"`
	Rating        risk.Level `json:"stability_rating"`
}

func (s *Security) stability(ctx context.Context, id string) Result {
	name, m, err := s.scorer.CheckStability(ctx, id)
	if err != nil {
		return failure(classify.TVLStability, fmt.Sprintf("Error checking TVL stability for %s", id), err)
	}
	return ok(classify.TVLStability, map[string]any{
		"protocol": name,
		"tvl_stability": stabilityInfo{
			CurrentTVL:    m.Current,
			AvgTVL:        m.Average,
			VolatilityPct: m.VolatilityPct,
			Rating:        m.Rating,
		},
	})
}
