package risk

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	clierr "github.com/ggonzalez94/yieldsensei/internal/errors"
	"github.com/ggonzalez94/yieldsensei/internal/model"
)

const (
	fallbackNote           = "This protocol is not in our security database. Basic information gathered from DeFiLlama."
	fallbackRecommendation = "Conduct further research before investing."
)

// Gateway is the subset of the data gateway the scorer reads from.
type Gateway interface {
	FetchProtocols(ctx context.Context) ([]model.ProtocolRecord, error)
	FetchProtocolDetail(ctx context.Context, slug string) (model.ProtocolDetail, error)
}

// Assessment is the result of a risk lookup. Curated assessments carry the
// audit record; fallback assessments carry only what the provider lists.
type Assessment struct {
	Key            string
	Name           string
	Curated        bool
	Record         AuditRecord
	AuditLinks     []string
	Note           string
	Recommendation string
}

type Scorer struct {
	table   *AuditTable
	gateway Gateway
	log     *zap.Logger
}

func NewScorer(table *AuditTable, gateway Gateway, log *zap.Logger) *Scorer {
	if table == nil {
		table = DefaultAuditTable()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scorer{table: table, gateway: gateway, log: log}
}

func (s *Scorer) Table() *AuditTable { return s.table }

// LookupRisk returns the curated record for key, or falls back to the
// provider's protocol list.
func (s *Scorer) LookupRisk(ctx context.Context, key string) (Assessment, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return Assessment{}, clierr.New(clierr.CodeUsage, "protocol name is required")
	}
	if rec, ok := s.table.Lookup(key); ok {
		return Assessment{Key: key, Name: key, Curated: true, Record: rec}, nil
	}
	if s.gateway == nil {
		return Assessment{}, clierr.New(clierr.CodeNotFound, fmt.Sprintf("No security information found for '%s'", key))
	}

	s.log.Debug("audit table miss, using provider fallback", zap.String("protocol", key))
	protocols, err := s.gateway.FetchProtocols(ctx)
	if err != nil {
		return Assessment{}, err
	}
	p, ok := model.FindProtocol(protocols, key)
	if !ok {
		return Assessment{}, clierr.New(clierr.CodeNotFound, fmt.Sprintf("No security information found for '%s'", key))
	}
	name := p.Name
	if name == "" {
		name = key
	}
	links := append([]string{}, p.AuditLinks...)
	return Assessment{
		Key:            key,
		Name:           name,
		AuditLinks:     links,
		Note:           fallbackNote,
		Recommendation: fallbackRecommendation,
	}, nil
}

// CheckStability resolves name against the provider's protocol list and
// rates the protocol's recent TVL history.
func (s *Scorer) CheckStability(ctx context.Context, name string) (string, StabilityMetric, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if s.gateway == nil {
		return "", StabilityMetric{}, clierr.New(clierr.CodeUnsupported, "no data gateway configured")
	}
	protocols, err := s.gateway.FetchProtocols(ctx)
	if err != nil {
		return "", StabilityMetric{}, err
	}
	p, ok := model.FindProtocol(protocols, name)
	if !ok {
		return "", StabilityMetric{}, clierr.New(clierr.CodeNotFound, fmt.Sprintf("No protocol found matching '%s'", name))
	}
	if strings.TrimSpace(p.Slug) == "" {
		return "", StabilityMetric{}, clierr.New(clierr.CodeNotFound, fmt.Sprintf("Could not find protocol slug for '%s'", name))
	}
	detail, err := s.gateway.FetchProtocolDetail(ctx, p.Slug)
	if err != nil {
		return "", StabilityMetric{}, err
	}
	samples := TVLSamples(detail)
	if len(samples) == 0 {
		return "", StabilityMetric{}, clierr.New(clierr.CodeInsufficientData, fmt.Sprintf("Could not retrieve TVL history for '%s'", name))
	}
	metric, err := ComputeStability(samples)
	if err != nil {
		return "", StabilityMetric{}, err
	}
	metric.Key = name
	display := p.Name
	if display == "" {
		display = name
	}
	s.log.Debug("tvl stability computed",
		zap.String("protocol", display),
		zap.Int("window", metric.Window),
		zap.Float64("volatility_pct", metric.VolatilityPct),
	)
	return display, metric, nil
}
