package classify

// Market intents.
const (
	TopTVL           Intent = "top_tvl"
	StablecoinYields Intent = "stablecoin_yields"
	TopYields        Intent = "top_yields"
	ProtocolInfo     Intent = "protocol_info"
)

// Security intents.
const (
	Audit        Intent = "audit"
	TVLStability Intent = "tvl_stability"
	RiskRating   Intent = "risk_rating"
)

// Strategy intents.
const (
	StrategyList     Intent = "list"
	StrategyEstimate Intent = "estimate"
	StrategyRisk     Intent = "risk"
	StrategyGuide    Intent = "guide"
	StrategySupport  Intent = "support"
	StrategyHistory  Intent = "history"
)

var yieldWords = Any("apy", "yield")

var MarketRules = Table{
	{Intent: TopTVL, Match: Any("tvl")},
	{Intent: StablecoinYields, Match: And(yieldWords, Any("stablecoin"))},
	{Intent: TopYields, Match: yieldWords},
	{Intent: ProtocolInfo, Match: And(Any("protocol"), Any("info", "data", "details"))},
}

// SecurityRules checks audit before stability: a query naming both is an
// audit query.
var SecurityRules = Table{
	{Intent: Audit, Match: Any("audit", "security")},
	{Intent: TVLStability, Match: All("tvl", "stability")},
	{Intent: RiskRating, Match: Any("risk", "rating")},
}

var StrategyRules = Table{
	{Intent: StrategyList, Match: Any("list", "discover", "available")},
	{Intent: StrategyEstimate, Match: Any("estimate", "apy", "apr", "yield")},
	{Intent: StrategyRisk, Match: Any("risk")},
	{Intent: StrategyGuide, Match: Any("guide", "how", "steps")},
	{Intent: StrategySupport, Match: Any("protocol", "asset", "support")},
	{Intent: StrategyHistory, Match: Any("performance", "history")},
}
