package rank

import (
	"math"
	"sort"

	"github.com/ggonzalez94/yieldsensei/internal/model"
)

const DefaultLimit = 10

const (
	MaxYieldAPY      = 1000.0
	MaxStablecoinAPY = 100.0
)

// Rank keeps the records accepted by filter, orders them by key descending
// and truncates to limit. Equal keys keep their input order. A nil filter
// accepts everything; limit <= 0 means DefaultLimit. NaN and infinite keys
// rank as zero.
func Rank[T any](records []T, filter func(T) bool, key func(T) float64, limit int) []T {
	if limit <= 0 {
		limit = DefaultLimit
	}
	out := make([]T, 0, len(records))
	for _, r := range records {
		if filter != nil && !filter(r) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return finite(key(out[i])) > finite(key(out[j]))
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func TopTVL(protocols []model.ProtocolRecord, limit int) []model.ProtocolRecord {
	return Rank(protocols, nil, func(p model.ProtocolRecord) float64 { return p.TVL }, limit)
}

func TopYields(pools []model.YieldPoolRecord, limit int) []model.YieldPoolRecord {
	return Rank(pools, func(p model.YieldPoolRecord) bool {
		return openInterval(p.APY, 0, MaxYieldAPY)
	}, poolAPY, limit)
}

func TopStablecoinYields(pools []model.YieldPoolRecord, limit int) []model.YieldPoolRecord {
	return Rank(pools, func(p model.YieldPoolRecord) bool {
		return p.Stablecoin && openInterval(p.APY, 0, MaxStablecoinAPY)
	}, poolAPY, limit)
}

func poolAPY(p model.YieldPoolRecord) float64 { return p.APY }

func openInterval(v, lo, hi float64) bool {
	v = finite(v)
	return v > lo && v < hi
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
