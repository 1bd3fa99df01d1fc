package classify

import "testing"

func TestMarketRules(t *testing.T) {
	cases := []struct {
		query string
		want  Intent
	}{
		{"Show me top TVL protocols", TopTVL},
		{"tvl and apy", TopTVL},
		{"best stablecoin APY", StablecoinYields},
		{"highest yield", TopYields},
		{"protocol info aave", ProtocolInfo},
		{"protocol details for curve", ProtocolInfo},
		{"protocol", Help},
		{"foobar", Help},
		{"   ", Help},
	}
	for _, tc := range cases {
		if got := MarketRules.Classify(tc.query); got != tc.want {
			t.Errorf("MarketRules.Classify(%q) = %q, want %q", tc.query, got, tc.want)
		}
	}
}

func TestSecurityRulesPrecedence(t *testing.T) {
	cases := []struct {
		query string
		want  Intent
	}{
		{"check tvl stability and security for aave", Audit},
		{"audit status of curve", Audit},
		{"tvl stability of uniswap", TVLStability},
		{"tvl of uniswap", Help},
		{"risk rating for balancer", RiskRating},
		{"foobar", Help},
	}
	for _, tc := range cases {
		if got := SecurityRules.Classify(tc.query); got != tc.want {
			t.Errorf("SecurityRules.Classify(%q) = %q, want %q", tc.query, got, tc.want)
		}
	}
}

func TestStrategyRules(t *testing.T) {
	cases := []struct {
		query string
		want  Intent
	}{
		{"list strategies", StrategyList},
		{"estimate delta-neutral", StrategyEstimate},
		{"what is the risk of leveraged farming", StrategyRisk},
		{"how do i do stablecoin farming", StrategyGuide},
		{"which protocols support delta-neutral", StrategySupport},
		{"historical performance of leveraged", StrategyHistory},
		{"foobar", Help},
	}
	for _, tc := range cases {
		if got := StrategyRules.Classify(tc.query); got != tc.want {
			t.Errorf("StrategyRules.Classify(%q) = %q, want %q", tc.query, got, tc.want)
		}
	}
}

func TestPredicates(t *testing.T) {
	if All()("anything") {
		t.Fatal("empty All must not match")
	}
	if And()("anything") {
		t.Fatal("empty And must not match")
	}
	if Or()("anything") {
		t.Fatal("empty Or must not match")
	}
	p := Or(All("a", "b"), Any("z"))
	if !p("xaby") || !p("z") || p("a") {
		t.Fatal("Or/All/Any composition mismatch")
	}
}

func TestTokensAfter(t *testing.T) {
	cases := []struct {
		query string
		want  string
	}{
		{"Protocol Info Aave V3", "aave v3"},
		{"show protocol data for curve", "for curve"},
		{"protocol info", ""},
		{"info protocol aave", ""},
	}
	for _, tc := range cases {
		if got := TokensAfter(tc.query, "protocol", "info", "data", "details"); got != tc.want {
			t.Errorf("TokensAfter(%q) = %q, want %q", tc.query, got, tc.want)
		}
	}
}

func TestFirstKnownUsesDeclarationOrder(t *testing.T) {
	ids := []string{"aave", "compound", "uniswap"}
	got, ok := FirstKnown("compare Uniswap with Aave", ids)
	if !ok || got != "aave" {
		t.Fatalf("expected aave, got %q %v", got, ok)
	}
	if _, ok := FirstKnown("nothing here", ids); ok {
		t.Fatal("expected no match")
	}
}

func TestIntentsDeduplicates(t *testing.T) {
	table := Table{{Intent: "a", Match: Any("x")}, {Intent: "b", Match: Any("y")}, {Intent: "a", Match: Any("z")}}
	got := table.Intents()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected intents %v", got)
	}
}
