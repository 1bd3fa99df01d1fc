package risk

import (
	"fmt"
	"math"
	"sort"
	"strings"

	clierr "github.com/ggonzalez94/yieldsensei/internal/errors"
	"github.com/ggonzalez94/yieldsensei/internal/model"
)

const StabilityWindow = 30

type StabilityMetric struct {
	Key           string  `json:"protocol"`
	Window        int     `json:"window"`
	Current       float64 `json:"current_tvl"`
	Average       float64 `json:"avg_tvl"`
	Max           float64 `json:"max_tvl"`
	Min           float64 `json:"min_tvl"`
	VolatilityPct float64 `json:"volatility_pct"`
	Rating        Level   `json:"stability_rating"`
}

// ComputeStability rates the last StabilityWindow samples. At least two
// samples and a positive average are required.
func ComputeStability(samples []float64) (StabilityMetric, error) {
	if len(samples) > StabilityWindow {
		samples = samples[len(samples)-StabilityWindow:]
	}
	if len(samples) < 2 {
		return StabilityMetric{}, clierr.New(clierr.CodeInsufficientData,
			fmt.Sprintf("need at least 2 tvl samples, have %d", len(samples)))
	}
	maxV, minV, sum := math.Inf(-1), math.Inf(1), 0.0
	for _, v := range samples {
		maxV = math.Max(maxV, v)
		minV = math.Min(minV, v)
		sum += v
	}
	avg := sum / float64(len(samples))
	if avg <= 0 || math.IsNaN(avg) {
		return StabilityMetric{}, clierr.New(clierr.CodeInsufficientData, "average tvl over the window is not positive")
	}
	vol := (maxV - minV) / avg * 100
	return StabilityMetric{
		Window:        len(samples),
		Current:       samples[len(samples)-1],
		Average:       avg,
		Max:           maxV,
		Min:           minV,
		VolatilityPct: vol,
		Rating:        StabilityRating(vol),
	}, nil
}

var derivedChainKeys = map[string]struct{}{
	"borrowed": {},
	"staking":  {},
	"pool2":    {},
	"vesting":  {},
	"treasury": {},
	"offers":   {},
}

// TVLSamples returns total TVL per day, oldest first. The aggregate series
// is used when present; otherwise per-chain histories are summed by date,
// skipping derived entries such as "borrowed" or "Ethereum-staking".
func TVLSamples(detail model.ProtocolDetail) []float64 {
	if len(detail.TVLSeries) > 0 {
		out := make([]float64, 0, len(detail.TVLSeries))
		for _, p := range detail.TVLSeries {
			out = append(out, p.TVLUSD)
		}
		return out
	}

	byDate := map[int64]float64{}
	for chain, points := range detail.ChainTVLs {
		if isDerivedChainKey(chain) {
			continue
		}
		for _, p := range points {
			byDate[p.Date] += p.TVLUSD
		}
	}
	if len(byDate) == 0 {
		return nil
	}
	dates := make([]int64, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i] < dates[j] })
	out := make([]float64, 0, len(dates))
	for _, d := range dates {
		out = append(out, byDate[d])
	}
	return out
}

func isDerivedChainKey(chain string) bool {
	key := strings.ToLower(chain)
	if strings.Contains(key, "-") {
		return true
	}
	_, ok := derivedChainKeys[key]
	return ok
}
