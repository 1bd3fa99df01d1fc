package defillama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	clierr "github.com/ggonzalez94/yieldsensei/internal/errors"
	"github.com/ggonzalez94/yieldsensei/internal/httpx"
	"github.com/ggonzalez94/yieldsensei/internal/model"
	"github.com/ggonzalez94/yieldsensei/internal/registry"
)

const (
	DefaultAPIBase    = registry.DefiLlamaAPIBaseURL
	DefaultYieldsBase = registry.DefiLlamaYieldsBaseURL
)

// Client is the data fetch gateway. Every call is one round trip; nothing
// is cached between calls.
type Client struct {
	http       *httpx.Client
	apiBase    string
	yieldsBase string
}

type Option func(*Client)

func WithAPIBase(base string) Option {
	return func(c *Client) {
		if base = strings.TrimRight(strings.TrimSpace(base), "/"); base != "" {
			c.apiBase = base
		}
	}
}

func WithYieldsBase(base string) Option {
	return func(c *Client) {
		if base = strings.TrimRight(strings.TrimSpace(base), "/"); base != "" {
			c.yieldsBase = base
		}
	}
}

func New(httpClient *httpx.Client, opts ...Option) *Client {
	c := &Client{
		http:       httpClient,
		apiBase:    DefaultAPIBase,
		yieldsBase: DefaultYieldsBase,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string { return "defillama" }

func (c *Client) FetchProtocols(ctx context.Context) ([]model.ProtocolRecord, error) {
	var resp []protocolWire
	if err := httpx.GetJSON(ctx, c.http, c.apiBase+"/protocols", &resp); err != nil {
		return nil, err
	}
	out := make([]model.ProtocolRecord, 0, len(resp))
	for _, p := range resp {
		links := []string(p.AuditLinks)
		if links == nil {
			links = []string{}
		}
		out = append(out, model.ProtocolRecord{
			Name:        string(p.Name),
			Slug:        string(p.Slug),
			TVL:         float64(p.TVL),
			Chain:       string(p.Chain),
			Category:    string(p.Category),
			URL:         string(p.URL),
			Description: string(p.Description),
			Twitter:     string(p.Twitter),
			AuditLinks:  links,
		})
	}
	return out, nil
}

func (c *Client) FetchYieldPools(ctx context.Context) ([]model.YieldPoolRecord, error) {
	var env poolsEnvelope
	if err := httpx.GetJSON(ctx, c.http, c.yieldsBase+"/pools", &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		return nil, clierr.New(clierr.CodeParse, "yields response has no data list")
	}
	out := make([]model.YieldPoolRecord, 0, len(env.Data))
	for _, p := range env.Data {
		out = append(out, model.YieldPoolRecord{
			Pool:       string(p.Pool),
			Project:    string(p.Project),
			Chain:      string(p.Chain),
			Symbol:     string(p.Symbol),
			APY:        float64(p.APY),
			TVLUSD:     float64(p.TVLUSD),
			ILRisk:     bool(p.ILRisk),
			Stablecoin: bool(p.Stablecoin),
		})
	}
	return out, nil
}

func (c *Client) FetchProtocolDetail(ctx context.Context, slug string) (model.ProtocolDetail, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return model.ProtocolDetail{}, clierr.New(clierr.CodeNotFound, "protocol has no slug")
	}
	var raw json.RawMessage
	if err := httpx.GetJSON(ctx, c.http, c.apiBase+"/protocol/"+url.PathEscape(slug), &raw); err != nil {
		return model.ProtocolDetail{}, err
	}

	body := bytes.TrimSpace(raw)
	if len(body) > 0 && body[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(body, &items); err != nil {
			return model.ProtocolDetail{}, clierr.Wrap(clierr.CodeParse, "decode protocol detail list", err)
		}
		if len(items) == 0 {
			return model.ProtocolDetail{}, clierr.New(clierr.CodeNotFound, fmt.Sprintf("no detailed data found for protocol %q", slug))
		}
		body = items[0]
	}

	var wire detailWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return model.ProtocolDetail{}, clierr.Wrap(clierr.CodeParse, "decode protocol detail", err)
	}
	return toDetail(wire), nil
}

func toDetail(w detailWire) model.ProtocolDetail {
	detail := model.ProtocolDetail{
		Name:       string(w.Name),
		CurrentTVL: w.TVL.scalar,
		TVLSeries:  toPoints(w.TVL.series),
		Chains:     []string(w.Chains),
		ChainTVLs:  map[string][]model.TVLPoint{},
	}
	if detail.Chains == nil {
		detail.Chains = []string{}
	}
	for chain, raw := range w.ChainTVLs {
		var hist chainHistoryWire
		if err := json.Unmarshal(raw, &hist); err != nil {
			continue
		}
		points := make([]pointWire, 0, len(hist.TVL))
		for _, item := range hist.TVL {
			var p pointWire
			if err := json.Unmarshal(item, &p); err != nil {
				continue
			}
			points = append(points, p)
		}
		detail.ChainTVLs[chain] = toPoints(points)
	}
	return detail
}

func toPoints(in []pointWire) []model.TVLPoint {
	if len(in) == 0 {
		return nil
	}
	out := make([]model.TVLPoint, 0, len(in))
	for _, p := range in {
		out = append(out, model.TVLPoint{Date: int64(p.Date), TVLUSD: float64(p.TotalLiquidityUSD)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
