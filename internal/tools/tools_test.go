package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ggonzalez94/yieldsensei/internal/classify"
	clierr "github.com/ggonzalez94/yieldsensei/internal/errors"
	"github.com/ggonzalez94/yieldsensei/internal/httpx"
	"github.com/ggonzalez94/yieldsensei/internal/providers/defillama"
	"github.com/ggonzalez94/yieldsensei/internal/risk"
	"github.com/ggonzalez94/yieldsensei/internal/strategy"
)

const protocolsBody = `[
	{"name":"Lido","slug":"lido","tvl":300,"chain":"Ethereum","category":"Liquid Staking","url":"https://lido.fi"},
	{"name":"Aave V3","slug":"aave-v3","tvl":500,"chain":"Multi-Chain","category":"Lending","url":"https://aave.com","description":"Lending market","twitter":"aave","audit_links":["https://aave.com/audit"]},
	{"name":"NoSlug Swap","tvl":10,"chain":"Base"},
	{"name":"UnknownXYZ Finance","slug":"unknownxyz","tvl":1,"audit_links":["https://audits.example/xyz"]},
	{"name":"Uniswap V3","slug":"uniswap-v3","tvl":400}
]`

const poolsBody = `{"status":"success","data":[
	{"pool":"p1","project":"aave-v3","chain":"Ethereum","symbol":"USDC","apy":4.5,"tvlUsd":1000,"ilRisk":"no","stablecoin":true},
	{"pool":"p2","project":"curve","chain":"Ethereum","symbol":"ETH-STETH","apy":12,"tvlUsd":500,"ilRisk":"yes","stablecoin":false},
	{"pool":"p3","project":"scam","chain":"Base","symbol":"XYZ","apy":5000,"tvlUsd":5,"ilRisk":"yes","stablecoin":false},
	{"pool":"p4","project":"curve","chain":"Ethereum","symbol":"DAI-USDC","apy":7,"tvlUsd":800,"ilRisk":"no","stablecoin":true}
]}`

func newFakeLlama(t *testing.T) *defillama.Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/protocols", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(protocolsBody))
	})
	mux.HandleFunc("/pools", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(poolsBody))
	})
	mux.HandleFunc("/protocol/aave-v3", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"name":"Aave V3",
			"chains":["Ethereum","Arbitrum"],
			"tvl":[{"date":1,"totalLiquidityUSD":480},{"date":2,"totalLiquidityUSD":510}],
			"chainTvls":{
				"Ethereum":{"tvl":[{"date":1,"totalLiquidityUSD":300},{"date":2,"totalLiquidityUSD":320}]},
				"Arbitrum":{"tvl":[{"date":1,"totalLiquidityUSD":180},{"date":2,"totalLiquidityUSD":190}]}
			}
		}`))
	})
	mux.HandleFunc("/protocol/lido", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name":"Lido","tvl":[{"date":1,"totalLiquidityUSD":300}]}`))
	})
	mux.HandleFunc("/protocol/uniswap-v3", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"tvl":[
			{"date":1,"totalLiquidityUSD":100},
			{"date":2,"totalLiquidityUSD":101},
			{"date":3,"totalLiquidityUSD":102}
		]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return defillama.New(httpx.New(2*time.Second, 0), defillama.WithAPIBase(srv.URL), defillama.WithYieldsBase(srv.URL))
}

func newDownLlama(t *testing.T) *defillama.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	return defillama.New(httpx.New(2*time.Second, 0), defillama.WithAPIBase(srv.URL), defillama.WithYieldsBase(srv.URL))
}

func decode(t *testing.T, r Result) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal([]byte(r.Text), &out); err != nil {
		t.Fatalf("result text is not json: %v\n%s", err, r.Text)
	}
	return out
}

func TestMarketTopTVL(t *testing.T) {
	m := NewMarket(newFakeLlama(t), 3)
	r := Run(context.Background(), m, "top TVL protocols")
	if r.Status != StatusOK || r.Intent != classify.TopTVL {
		t.Fatalf("unexpected result %+v", r)
	}
	list := decode(t, r)["top_tvl_protocols"].([]any)
	if len(list) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(list))
	}
	first := list[0].(map[string]any)
	if first["name"] != "Aave V3" || first["tvl"].(float64) != 500 || first["category"] != "Lending" {
		t.Fatalf("unexpected first entry %+v", first)
	}
	for _, key := range []string{"name", "tvl", "chain", "category", "url"} {
		if _, ok := first[key]; !ok {
			t.Fatalf("missing key %q in %+v", key, first)
		}
	}
}

func TestMarketYields(t *testing.T) {
	m := NewMarket(newFakeLlama(t), 10)

	r := Run(context.Background(), m, "highest apy")
	list := decode(t, r)["top_yield_opportunities"].([]any)
	if len(list) != 3 {
		t.Fatalf("apy filter should drop the 5000%% pool, got %d", len(list))
	}
	first := list[0].(map[string]any)
	if first["pool"] != "p2" || first["il_risk"] != "Yes" || first["stable_pool"] != "No" || first["tokens"] != "ETH-STETH" {
		t.Fatalf("unexpected first pool %+v", first)
	}

	r = Run(context.Background(), m, "stablecoin yield")
	if r.Intent != classify.StablecoinYields {
		t.Fatalf("expected stablecoin intent, got %s", r.Intent)
	}
	stable := decode(t, r)["top_stablecoin_yields"].([]any)
	if len(stable) != 2 || stable[0].(map[string]any)["pool"] != "p4" {
		t.Fatalf("unexpected stablecoin pools %+v", stable)
	}
	if _, ok := stable[0].(map[string]any)["il_risk"]; ok {
		t.Fatal("stablecoin entries carry no il_risk")
	}
}

func TestMarketProtocolInfo(t *testing.T) {
	m := NewMarket(newFakeLlama(t), 10)

	r := Run(context.Background(), m, "protocol info aave")
	info := decode(t, r)["protocol_info"].(map[string]any)
	if info["name"] != "Aave V3" || info["tvl"].(float64) != 510 || info["twitter"] != "aave" {
		t.Fatalf("unexpected info %+v", info)
	}
	chainTVLs := info["chain_tvls"].(map[string]any)
	if chainTVLs["Ethereum"].(float64) != 320 || chainTVLs["Arbitrum"].(float64) != 190 {
		t.Fatalf("unexpected chain tvls %+v", chainTVLs)
	}

	r = Run(context.Background(), m, "protocol details noslug")
	info = decode(t, r)["protocol_info"].(map[string]any)
	if info["name"] != "NoSlug Swap" || info["description"] != "No description available" {
		t.Fatalf("unexpected slugless info %+v", info)
	}

	r = Run(context.Background(), m, "protocol info")
	if r.Status != StatusHelp && r.Status != StatusClarify {
		t.Fatalf("unexpected status %s", r.Status)
	}

	r = m.Execute(context.Background(), classify.ProtocolInfo, "protocol data")
	if r.Status != StatusClarify || r.Text != "Please specify a protocol name to get details." {
		t.Fatalf("expected clarification, got %+v", r)
	}

	r = Run(context.Background(), m, "protocol info does-not-exist")
	if r.Status != StatusNotFound || r.Text != "No protocol found matching 'does-not-exist'" {
		t.Fatalf("expected not found, got %+v", r)
	}
}

func TestMarketFetchFailureIsText(t *testing.T) {
	m := NewMarket(newDownLlama(t), 10)
	r := Run(context.Background(), m, "tvl")
	if r.Status != StatusError || !strings.HasPrefix(r.Text, "Error fetching TVL data: ") {
		t.Fatalf("unexpected failure result %+v", r)
	}
	if !clierr.IsFetch(r.Err) {
		t.Fatalf("expected fetch error to be retained, got %v", r.Err)
	}
}

func TestHelpFallbackForEveryTool(t *testing.T) {
	llama := newFakeLlama(t)
	set := NewSet(
		NewMarket(llama, 10),
		NewSecurity(risk.NewScorer(nil, llama, nil), llama.Name()),
		NewStrategy(strategy.Default()),
	)
	for _, info := range set.Infos() {
		tool, _ := set.Get(info.Name)
		r := Run(context.Background(), tool, "foobar")
		if r.Status != StatusHelp || r.Intent != classify.Help {
			t.Fatalf("%s: expected help, got %+v", info.Name, r)
		}
		if json.Valid([]byte(r.Text)) {
			t.Fatalf("%s: help text must not be json", info.Name)
		}
		if !strings.HasPrefix(r.Text, "I can help with the following") {
			t.Fatalf("%s: unexpected help text %q", info.Name, r.Text)
		}
	}
}

func TestSecurityAuditPrecedence(t *testing.T) {
	llama := newFakeLlama(t)
	s := NewSecurity(risk.NewScorer(nil, llama, nil), llama.Name())

	r := Run(context.Background(), s, "check tvl stability and security for aave")
	if r.Intent != classify.Audit {
		t.Fatalf("expected audit intent, got %s", r.Intent)
	}
	body := decode(t, r)
	info := body["security_info"].(map[string]any)
	if body["protocol"] != "aave" || info["audit_score"].(float64) != 95 || info["risk_level"] != "LOW" {
		t.Fatalf("unexpected security info %+v", body)
	}
	if _, ok := info["security_incidents"].([]any); !ok {
		t.Fatalf("security_incidents should be a list, got %+v", info["security_incidents"])
	}
}

func TestSecurityViewsWithoutProtocol(t *testing.T) {
	llama := newFakeLlama(t)
	s := NewSecurity(risk.NewScorer(nil, llama, nil), llama.Name())

	overview := decode(t, Run(context.Background(), s, "security overview"))["security_overview"].(map[string]any)
	if len(overview) != 7 {
		t.Fatalf("expected 7 protocols, got %d", len(overview))
	}

	ratings := decode(t, Run(context.Background(), s, "risk ratings"))["all_risk_ratings"].(map[string]any)
	if ratings["curve"] != "MEDIUM" || ratings["uniswap"] != "LOW" {
		t.Fatalf("unexpected ratings %+v", ratings)
	}

	r := Run(context.Background(), s, "tvl stability please")
	if r.Status != StatusClarify || r.Text != "Please specify a protocol name to check TVL stability." {
		t.Fatalf("expected clarification, got %+v", r)
	}
}

func TestSecurityRatingAndStability(t *testing.T) {
	llama := newFakeLlama(t)
	s := NewSecurity(risk.NewScorer(nil, llama, nil), llama.Name())

	body := decode(t, Run(context.Background(), s, "risk rating for curve"))
	rating := body["risk_rating"].(map[string]any)
	if body["protocol"] != "curve" || rating["risk_level"] != "MEDIUM" || rating["audited"] != true {
		t.Fatalf("unexpected rating %+v", body)
	}

	body = decode(t, Run(context.Background(), s, "tvl stability of uniswap"))
	stab := body["tvl_stability"].(map[string]any)
	if body["protocol"] != "Uniswap V3" || stab["stability_rating"] != "HIGH" || stab["30d_avg_tvl"].(float64) != 101 {
		t.Fatalf("unexpected stability %+v", body)
	}
}

func TestSecurityPinnedProtocolFallback(t *testing.T) {
	llama := newFakeLlama(t)
	s := NewSecurity(risk.NewScorer(nil, llama, nil), llama.Name(), WithProtocol("UnknownXYZ"))

	body := decode(t, Run(context.Background(), s, "audit"))
	if body["protocol"] != "UnknownXYZ Finance" {
		t.Fatalf("unexpected protocol %+v", body)
	}
	info := body["limited_security_info"].(map[string]any)
	if len(info["audit_links"].([]any)) != 1 || info["recommendation"] != "Conduct further research before investing." {
		t.Fatalf("unexpected limited info %+v", info)
	}

	s = NewSecurity(risk.NewScorer(nil, llama, nil), llama.Name(), WithProtocol("ghost"))
	r := Run(context.Background(), s, "audit")
	if r.Status != StatusNotFound || r.Text != "No security information found for 'ghost'" {
		t.Fatalf("expected not found, got %+v", r)
	}
}

func TestSecurityStabilityStatusesDiffer(t *testing.T) {
	llama := newFakeLlama(t)

	s := NewSecurity(risk.NewScorer(nil, llama, nil), llama.Name(), WithProtocol("lido"))
	r := Run(context.Background(), s, "tvl stability")
	if r.Status != StatusInsufficientData || !clierr.Is(r.Err, clierr.CodeInsufficientData) {
		t.Fatalf("expected insufficient data, got %+v", r)
	}

	s = NewSecurity(risk.NewScorer(nil, llama, nil), llama.Name(), WithProtocol("ghost"))
	r = Run(context.Background(), s, "tvl stability")
	if r.Status != StatusNotFound || r.Text != "No protocol found matching 'ghost'" {
		t.Fatalf("expected not found, got %+v", r)
	}
}

func TestStrategyTool(t *testing.T) {
	s := NewStrategy(nil)

	list := decode(t, Run(context.Background(), s, "list available strategies"))["available_strategies"].([]any)
	if len(list) != 7 {
		t.Fatalf("expected 7 strategies, got %d", len(list))
	}

	body := decode(t, Run(context.Background(), s, "estimate apy for delta-neutral"))
	if body["strategy"] != "delta-neutral" || body["estimated_apy"] != "8-12%" || body["protocol"] != "Aave/Uniswap" {
		t.Fatalf("unexpected estimate %+v", body)
	}

	body = decode(t, Run(context.Background(), s, "history of leveraged farming"))
	perf := body["historical_performance"].(map[string]any)
	if perf["2023"] != "15% APY" {
		t.Fatalf("unexpected history %+v", body)
	}

	r := Run(context.Background(), s, "guide for options")
	if r.Status != StatusNotFound {
		t.Fatalf("expected not found status, got %s", r.Status)
	}
	if decode(t, r)["error"] != strategy.NotRecognized {
		t.Fatalf("unexpected unknown-strategy payload %s", r.Text)
	}
}
