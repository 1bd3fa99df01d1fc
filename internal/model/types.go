package model

import (
	"strings"
	"time"
)

const EnvelopeVersion = "v1"

type Envelope struct {
	Version  string       `json:"version"`
	Success  bool         `json:"success"`
	Data     any          `json:"data,omitempty"`
	Error    *ErrorBody   `json:"error"`
	Warnings []string     `json:"warnings,omitempty"`
	Meta     EnvelopeMeta `json:"meta"`
}

type ErrorBody struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

type EnvelopeMeta struct {
	RequestID string           `json:"request_id"`
	Timestamp time.Time        `json:"timestamp"`
	Command   string           `json:"command"`
	Intent    string           `json:"intent,omitempty"`
	Providers []ProviderStatus `json:"providers,omitempty"`
	Partial   bool             `json:"partial"`
}

type ProviderStatus struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
}

type ToolInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Intents     []string `json:"intents"`
	Provider    string   `json:"provider,omitempty"`
}

// ProtocolRecord is one entry of the provider's protocol list.
type ProtocolRecord struct {
	Name        string   `json:"name"`
	Slug        string   `json:"slug"`
	TVL         float64  `json:"tvl"`
	Chain       string   `json:"chain"`
	Category    string   `json:"category"`
	URL         string   `json:"url"`
	Description string   `json:"description"`
	Twitter     string   `json:"twitter"`
	AuditLinks  []string `json:"audit_links"`
}

// YieldPoolRecord is one entry of the provider's yield pool list.
type YieldPoolRecord struct {
	Pool       string  `json:"pool"`
	Project    string  `json:"project"`
	Chain      string  `json:"chain"`
	Symbol     string  `json:"symbol"`
	APY        float64 `json:"apy"`
	TVLUSD     float64 `json:"tvl_usd"`
	ILRisk     bool    `json:"il_risk"`
	Stablecoin bool    `json:"stablecoin"`
}

// TVLPoint is a dated TVL sample. Date is a unix timestamp in seconds.
type TVLPoint struct {
	Date   int64   `json:"date"`
	TVLUSD float64 `json:"tvl_usd"`
}

// ProtocolDetail is the per-protocol detail object. CurrentTVL is set when
// the provider reports a scalar; TVLSeries when it reports the aggregate
// chart. ChainTVLs holds each chain's history, most recent last.
type ProtocolDetail struct {
	Name       string                `json:"name"`
	CurrentTVL *float64              `json:"current_tvl,omitempty"`
	TVLSeries  []TVLPoint            `json:"tvl_series,omitempty"`
	Chains     []string              `json:"chains"`
	ChainTVLs  map[string][]TVLPoint `json:"chain_tvls"`
}

// LatestTVL prefers the scalar, then the last aggregate sample.
func (d ProtocolDetail) LatestTVL() (float64, bool) {
	if d.CurrentTVL != nil {
		return *d.CurrentTVL, true
	}
	if n := len(d.TVLSeries); n > 0 {
		return d.TVLSeries[n-1].TVLUSD, true
	}
	return 0, false
}

// FindProtocol returns the first record whose name contains name,
// case-insensitively.
func FindProtocol(records []ProtocolRecord, name string) (ProtocolRecord, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return ProtocolRecord{}, false
	}
	for _, p := range records {
		if strings.Contains(strings.ToLower(p.Name), needle) {
			return p, true
		}
	}
	return ProtocolRecord{}, false
}
