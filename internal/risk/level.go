package risk

import (
	"fmt"
	"strings"
)

type Level string

const (
	Low    Level = "LOW"
	Medium Level = "MEDIUM"
	High   Level = "HIGH"
)

func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToUpper(strings.TrimSpace(s))) {
	case Low:
		return Low, nil
	case Medium:
		return Medium, nil
	case High:
		return High, nil
	default:
		return "", fmt.Errorf("unknown risk level %q", s)
	}
}

// Stability bands, in volatility percent.
const (
	highStabilityBelow   = 10.0
	mediumStabilityBelow = 30.0
)

// StabilityRating maps a volatility percentage to a capital-stability rating.
// Lower volatility is higher stability.
func StabilityRating(volatilityPct float64) Level {
	switch {
	case volatilityPct < highStabilityBelow:
		return High
	case volatilityPct < mediumStabilityBelow:
		return Medium
	default:
		return Low
	}
}
