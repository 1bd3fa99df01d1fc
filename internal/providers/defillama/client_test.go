package defillama

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	clierr "github.com/ggonzalez94/yieldsensei/internal/errors"
	"github.com/ggonzalez94/yieldsensei/internal/httpx"
)

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return New(httpx.New(2*time.Second, 0), WithAPIBase(srv.URL), WithYieldsBase(srv.URL))
}

func TestFetchProtocolsDefaultsMalformedFields(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/protocols", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"name":"Aave V3","slug":"aave-v3","tvl":1200.5,"chain":"Multi-Chain","category":"Lending","url":"https://aave.com","audit_links":["https://a/1"]},
			{"name":"Broken","slug":"broken","tvl":"n/a","chain":"Ethereum","audit_links":null},
			{"name":"Stringy","tvl":"42.5"},
			{"name":"NullTVL","tvl":null}
		]`))
	})
	c := newTestClient(t, mux)

	got, err := c.FetchProtocols(context.Background())
	if err != nil {
		t.Fatalf("FetchProtocols failed: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 records, got %d", len(got))
	}
	if got[0].TVL != 1200.5 || got[0].Slug != "aave-v3" || len(got[0].AuditLinks) != 1 {
		t.Fatalf("unexpected first record: %+v", got[0])
	}
	if got[1].TVL != 0 || got[1].AuditLinks == nil || len(got[1].AuditLinks) != 0 {
		t.Fatalf("malformed tvl should default to zero and links to empty: %+v", got[1])
	}
	if got[2].TVL != 42.5 {
		t.Fatalf("numeric string tvl should parse, got %v", got[2].TVL)
	}
	if got[3].TVL != 0 {
		t.Fatalf("null tvl should be zero, got %v", got[3].TVL)
	}
}

func TestFetchYieldPoolsParsesILRiskStrings(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/pools", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"status":"success",
			"data":[
				{"pool":"p1","chain":"Base","project":"aave-v3","symbol":"USDC","apy":5,"tvlUsd":1000000,"ilRisk":"no","stablecoin":true},
				{"pool":"p2","chain":"Ethereum","project":"curve","symbol":"ETH-STETH","apy":null,"tvlUsd":10000,"ilRisk":"yes","stablecoin":false}
			]
		}`))
	})
	c := newTestClient(t, mux)

	got, err := c.FetchYieldPools(context.Background())
	if err != nil {
		t.Fatalf("FetchYieldPools failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 pools, got %d", len(got))
	}
	if got[0].ILRisk || !got[0].Stablecoin || got[0].APY != 5 {
		t.Fatalf("unexpected first pool: %+v", got[0])
	}
	if !got[1].ILRisk || got[1].APY != 0 {
		t.Fatalf("unexpected second pool: %+v", got[1])
	}
}

func TestFetchYieldPoolsWrongShapeIsParseError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/pools", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","data":"nope"}`))
	})
	c := newTestClient(t, mux)

	_, err := c.FetchYieldPools(context.Background())
	if !clierr.Is(err, clierr.CodeParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestFetchYieldPoolsMissingDataIsParseError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/pools", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success"}`))
	})
	c := newTestClient(t, mux)

	_, err := c.FetchYieldPools(context.Background())
	if !clierr.Is(err, clierr.CodeParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestFetchProtocolsServerErrorIsFetchError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/protocols", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	c := newTestClient(t, mux)

	_, err := c.FetchProtocols(context.Background())
	if !clierr.IsFetch(err) {
		t.Fatalf("expected fetch error, got %v", err)
	}
}

func TestFetchProtocolDetailSeriesAndChains(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/protocol/aave-v3", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"name":"Aave V3",
			"chains":["Ethereum","Arbitrum"],
			"tvl":[{"date":2,"totalLiquidityUSD":110},{"date":1,"totalLiquidityUSD":100}],
			"chainTvls":{
				"Ethereum":{"tvl":[{"date":1,"totalLiquidityUSD":60},{"date":2,"totalLiquidityUSD":70}]},
				"Arbitrum":{"tvl":[{"date":1,"totalLiquidityUSD":40}]},
				"weird":"not-an-object"
			}
		}`))
	})
	c := newTestClient(t, mux)

	detail, err := c.FetchProtocolDetail(context.Background(), "aave-v3")
	if err != nil {
		t.Fatalf("FetchProtocolDetail failed: %v", err)
	}
	if len(detail.TVLSeries) != 2 || detail.TVLSeries[0].Date != 1 || detail.TVLSeries[1].TVLUSD != 110 {
		t.Fatalf("series should be date ordered: %+v", detail.TVLSeries)
	}
	if latest, ok := detail.LatestTVL(); !ok || latest != 110 {
		t.Fatalf("unexpected latest tvl %v %v", latest, ok)
	}
	if len(detail.ChainTVLs) != 2 || len(detail.ChainTVLs["Ethereum"]) != 2 {
		t.Fatalf("unexpected chain tvls: %+v", detail.ChainTVLs)
	}
	if len(detail.Chains) != 2 {
		t.Fatalf("unexpected chains: %+v", detail.Chains)
	}
}

func TestFetchProtocolDetailListBody(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/protocol/listy", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"name":"Listy","tvl":55}]`))
	})
	mux.HandleFunc("/protocol/empty", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	c := newTestClient(t, mux)

	detail, err := c.FetchProtocolDetail(context.Background(), "listy")
	if err != nil {
		t.Fatalf("FetchProtocolDetail failed: %v", err)
	}
	if detail.CurrentTVL == nil || *detail.CurrentTVL != 55 {
		t.Fatalf("expected scalar tvl 55, got %+v", detail)
	}

	_, err = c.FetchProtocolDetail(context.Background(), "empty")
	if !clierr.Is(err, clierr.CodeNotFound) {
		t.Fatalf("expected not found for empty list, got %v", err)
	}
}

func TestFetchProtocolDetailRequiresSlug(t *testing.T) {
	c := New(httpx.New(time.Second, 0))
	_, err := c.FetchProtocolDetail(context.Background(), "  ")
	if !clierr.Is(err, clierr.CodeNotFound) {
		t.Fatalf("expected not found for empty slug, got %v", err)
	}
}
