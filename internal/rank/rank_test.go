package rank

import (
	"math"
	"math/rand"
	"testing"

	"github.com/ggonzalez94/yieldsensei/internal/model"
)

type item struct {
	id  int
	key float64
}

func TestRankStableDescendingAndLimited(t *testing.T) {
	items := []item{{1, 5}, {2, 7}, {3, 5}, {4, 9}, {5, 7}, {6, 5}}
	got := Rank(items, nil, func(i item) float64 { return i.key }, 5)

	want := []int{4, 2, 5, 1, 3}
	if len(got) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].id != id {
			t.Fatalf("position %d: expected id %d, got %+v", i, id, got)
		}
	}
}

func TestRankPropertiesOnRandomInput(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		n := rng.Intn(40)
		items := make([]item, n)
		for i := range items {
			items[i] = item{id: i, key: float64(rng.Intn(6))}
		}
		limit := 1 + rng.Intn(15)
		got := Rank(items, nil, func(i item) float64 { return i.key }, limit)

		if len(got) > limit {
			t.Fatalf("length %d exceeds limit %d", len(got), limit)
		}
		for i := 1; i < len(got); i++ {
			if got[i-1].key < got[i].key {
				t.Fatalf("not descending at %d: %+v", i, got)
			}
			if got[i-1].key == got[i].key && got[i-1].id > got[i].id {
				t.Fatalf("equal keys lost input order at %d: %+v", i, got)
			}
		}
	}
}

func TestRankDefaultLimitAndNaN(t *testing.T) {
	items := make([]item, 0, 15)
	for i := 0; i < 15; i++ {
		items = append(items, item{id: i, key: float64(i)})
	}
	items[14].key = math.NaN()
	got := Rank(items, nil, func(i item) float64 { return i.key }, 0)
	if len(got) != DefaultLimit {
		t.Fatalf("expected default limit %d, got %d", DefaultLimit, len(got))
	}
	if got[0].id != 13 {
		t.Fatalf("NaN must not rank first: %+v", got[0])
	}
}

func TestTopTVLTreatsMissingAsZero(t *testing.T) {
	protocols := []model.ProtocolRecord{
		{Name: "A", TVL: 0},
		{Name: "B", TVL: 300},
		{Name: "C", TVL: 100},
	}
	got := TopTVL(protocols, 2)
	if len(got) != 2 || got[0].Name != "B" || got[1].Name != "C" {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestTopYieldsFiltersAPYBounds(t *testing.T) {
	pools := []model.YieldPoolRecord{
		{Pool: "zero", APY: 0},
		{Pool: "neg", APY: -3},
		{Pool: "huge", APY: 1000},
		{Pool: "ok-high", APY: 999.9},
		{Pool: "ok", APY: 12},
		{Pool: "nan", APY: math.NaN()},
	}
	got := TopYields(pools, 10)
	if len(got) != 2 || got[0].Pool != "ok-high" || got[1].Pool != "ok" {
		t.Fatalf("unexpected yields: %+v", got)
	}
	for _, p := range got {
		if p.APY <= 0 || p.APY >= MaxYieldAPY {
			t.Fatalf("apy out of bounds: %+v", p)
		}
	}
}

func TestTopStablecoinYieldsFilters(t *testing.T) {
	pools := []model.YieldPoolRecord{
		{Pool: "volatile", APY: 20, Stablecoin: false},
		{Pool: "too-high", APY: 100, Stablecoin: true},
		{Pool: "a", APY: 8, Stablecoin: true},
		{Pool: "b", APY: 8, Stablecoin: true},
		{Pool: "c", APY: 11, Stablecoin: true},
	}
	got := TopStablecoinYields(pools, 10)
	want := []string{"c", "a", "b"}
	if len(got) != len(want) {
		t.Fatalf("unexpected result: %+v", got)
	}
	for i, id := range want {
		if got[i].Pool != id {
			t.Fatalf("position %d: expected %s, got %+v", i, id, got)
		}
		if !got[i].Stablecoin || got[i].APY >= MaxStablecoinAPY {
			t.Fatalf("filter violated: %+v", got[i])
		}
	}
}
