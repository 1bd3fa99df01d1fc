package strategy

var families = []string{
	"Delta-neutral yield farming",
	"Leveraged yield farming",
	"Stablecoin yield farming",
	"Lending/borrowing loop",
	"LP staking",
	"Options-based yield",
	"Structured products (vaults)",
}

// Match terms are scanned in this order.
var definitions = []Definition{
	{
		ID:                "delta-neutral",
		Name:              "delta-neutral",
		MatchTerm:         "delta-neutral",
		EstimatedAPYRange: "8-12%",
		ProtocolHint:      "Aave/Uniswap",
		Risks: []string{
			"Smart contract risk",
			"Liquidation risk (if using leverage)",
			"Impermanent loss (if LP involved)",
			"Execution complexity",
		},
		Steps: []string{
			"Deposit collateral on a lending protocol (e.g., Aave)",
			"Borrow a volatile asset against your collateral",
			"Provide equal value of borrowed asset and stablecoin to an LP (e.g., Uniswap)",
			"Earn trading fees and incentives while maintaining delta-neutral exposure",
		},
		SupportingProtocols:   []string{"Aave", "Uniswap", "Balancer", "Curve"},
		HistoricalPerformance: map[string]string{"2022": "10% APY", "2023": "8% APY"},
	},
	{
		ID:                "leveraged-yield",
		Name:              "leveraged yield",
		MatchTerm:         "leveraged",
		EstimatedAPYRange: "15-25%",
		ProtocolHint:      "Aave",
		Risks: []string{
			"Liquidation risk",
			"Smart contract risk",
			"Interest rate risk",
		},
		Steps: []string{
			"Deposit collateral",
			"Borrow stablecoins",
			"Deposit borrowed stablecoins into a yield farm",
			"Repeat (loop) to increase leverage",
		},
		SupportingProtocols:   []string{"Aave", "Compound", "Alpha Homora"},
		HistoricalPerformance: map[string]string{"2022": "20% APY", "2023": "15% APY"},
	},
	{
		ID:                "stablecoin-yield",
		Name:              "stablecoin yield",
		MatchTerm:         "stablecoin",
		EstimatedAPYRange: "4-7%",
		ProtocolHint:      "Curve",
		Risks: []string{
			"Depeg risk",
			"Smart contract risk",
		},
		Steps: []string{
			"Deposit stablecoins into a stablecoin pool (e.g., Curve)",
			"Earn yield from trading fees and incentives",
		},
		SupportingProtocols:   []string{"Curve", "Convex", "Yearn"},
		HistoricalPerformance: map[string]string{"2022": "6% APY", "2023": "5% APY"},
	},
}
