package defillama

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// The provider is loose about field types. These wrappers decode a single
// field to its zero value instead of failing the whole record.

type number float64

func (n *number) UnmarshalJSON(b []byte) error {
	*n = 0
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			*n = number(finite(v))
		}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err == nil {
		*n = number(finite(v))
	}
	return nil
}

type text string

func (t *text) UnmarshalJSON(b []byte) error {
	*t = ""
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = text(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*t = text(strconv.FormatFloat(f, 'f', -1, 64))
	}
	return nil
}

type flag bool

func (f *flag) UnmarshalJSON(b []byte) error {
	*f = false
	var v bool
	if err := json.Unmarshal(b, &v); err == nil {
		*f = flag(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "yes", "true", "1":
			*f = true
		}
	}
	return nil
}

type textList []string

func (l *textList) UnmarshalJSON(b []byte) error {
	*l = textList{}
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}
	for _, item := range raw {
		var s text
		_ = s.UnmarshalJSON(item)
		if s != "" {
			*l = append(*l, string(s))
		}
	}
	return nil
}

type protocolWire struct {
	Name        text     `json:"name"`
	Slug        text     `json:"slug"`
	TVL         number   `json:"tvl"`
	Chain       text     `json:"chain"`
	Category    text     `json:"category"`
	URL         text     `json:"url"`
	Description text     `json:"description"`
	Twitter     text     `json:"twitter"`
	AuditLinks  textList `json:"audit_links"`
}

type poolsEnvelope struct {
	Status string     `json:"status"`
	Data   []poolWire `json:"data"`
}

type poolWire struct {
	Pool       text   `json:"pool"`
	Project    text   `json:"project"`
	Chain      text   `json:"chain"`
	Symbol     text   `json:"symbol"`
	APY        number `json:"apy"`
	TVLUSD     number `json:"tvlUsd"`
	ILRisk     flag   `json:"ilRisk"`
	Stablecoin flag   `json:"stablecoin"`
}

type pointWire struct {
	Date              number `json:"date"`
	TotalLiquidityUSD number `json:"totalLiquidityUSD"`
}

// tvlField is either a scalar or the aggregate chart.
type tvlField struct {
	scalar *float64
	series []pointWire
}

func (f *tvlField) UnmarshalJSON(b []byte) error {
	*f = tvlField{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}
	if b[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(b, &raw); err != nil {
			return nil
		}
		for _, item := range raw {
			var p pointWire
			if err := json.Unmarshal(item, &p); err != nil {
				continue
			}
			f.series = append(f.series, p)
		}
		return nil
	}
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var n number
	_ = n.UnmarshalJSON(b)
	v := float64(n)
	f.scalar = &v
	return nil
}

type detailWire struct {
	Name      text                       `json:"name"`
	TVL       tvlField                   `json:"tvl"`
	Chains    textList                   `json:"chains"`
	ChainTVLs map[string]json.RawMessage `json:"chainTvls"`
}

type chainHistoryWire struct {
	TVL []json.RawMessage `json:"tvl"`
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
