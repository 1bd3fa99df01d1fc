package pipeline

import (
	"fmt"
	"strings"

	clierr "github.com/ggonzalez94/yieldsensei/internal/errors"
)

type StageName string

const (
	StageResearch   StageName = "research"
	StageYield      StageName = "yield"
	StageSecurity   StageName = "security"
	StageSentiment  StageName = "sentiment"
	StageAllocation StageName = "allocation"
)

// Profile describes the agent persona that runs a stage.
type Profile struct {
	Name      string `json:"name"`
	Role      string `json:"role"`
	Goal      string `json:"goal"`
	Backstory string `json:"backstory"`
}

type Stage struct {
	Name           StageName
	DependsOn      []StageName
	Agent          Profile
	Template       func(View) string
	ExpectedOutput string
}

func (s Stage) Render(v View) string {
	if s.Template == nil {
		return ""
	}
	return strings.TrimSpace(s.Template(v))
}

// validateStages checks names are unique and every dependency ran earlier.
func validateStages(stages []Stage) error {
	if len(stages) == 0 {
		return clierr.New(clierr.CodeInternal, "pipeline has no stages")
	}
	seen := make(map[StageName]bool, len(stages))
	for _, s := range stages {
		if s.Name == "" {
			return clierr.New(clierr.CodeInternal, "pipeline stage is missing a name")
		}
		if seen[s.Name] {
			return clierr.New(clierr.CodeInternal, fmt.Sprintf("duplicate pipeline stage %q", s.Name))
		}
		for _, dep := range s.DependsOn {
			if !seen[dep] {
				return clierr.New(clierr.CodeInternal, fmt.Sprintf("stage %q depends on %q which does not run before it", s.Name, dep))
			}
		}
		seen[s.Name] = true
	}
	return nil
}

var (
	Sage = Profile{
		Name: "Sage",
		Role: "DeFi Researcher",
		Goal: "Scan the top protocols by TVL and summarize stablecoin APR opportunities.",
		Backstory: "You are Sage, the Logic Satellite of the YieldSensei system. " +
			"Your primary function is to research and analyze DeFi protocols, focusing on data-driven insights. " +
			"You remain calm and rational at all times, providing clear market analysis without emotional bias.",
	}
	Pulse = Profile{
		Name: "Pulse",
		Role: "Yield Strategist",
		Goal: "Rank the top 5 yield farming or staking options this week based on APY and safety.",
		Backstory: "You are Pulse, the Growth Satellite of the YieldSensei system. " +
			"Your primary function is to identify the most promising yield opportunities across DeFi. " +
			"You are ambitious and opportunistic, always searching for the best returns while maintaining awareness of risks.",
	}
	Aegis = Profile{
		Name: "Aegis",
		Role: "Risk Analyst",
		Goal: "Cross-check protocols in use with audit data and check for rugpull warnings.",
		Backstory: "You are Aegis, the Security Satellite of the YieldSensei system. " +
			"Your primary function is to protect capital by identifying security risks in DeFi protocols. " +
			"You are cautious and data-driven, always prioritizing capital preservation over high returns.",
	}
	Echo = Profile{
		Name: "Echo",
		Role: "Sentiment Analyst",
		Goal: "Monitor social media and community sentiment around selected protocols.",
		Backstory: "You are Echo, the Sentiment Satellite of the YieldSensei system. " +
			"Your primary function is to track and interpret social signals and narrative trends in DeFi. " +
			"You are socially aware and capable of distinguishing valuable signals from noise in community chatter.",
	}
	Fuel = Profile{
		Name: "Fuel",
		Role: "Capital Manager",
		Goal: "Track portfolio performance, gas costs, and return on investment.",
		Backstory: "You are Fuel, the Logistics Satellite of the YieldSensei system. " +
			"Your primary function is to manage and optimize capital deployment across DeFi protocols. " +
			"You are detail-oriented and disciplined, focusing on efficiency and measurable results.",
	}
)

// DefaultStages returns the five stages in execution order.
func DefaultStages() []Stage {
	return []Stage{
		{
			Name:           StageResearch,
			Agent:          Sage,
			Template:       researchTask,
			ExpectedOutput: "A comprehensive market research report on current DeFi opportunities.",
		},
		{
			Name:           StageYield,
			DependsOn:      []StageName{StageResearch},
			Agent:          Pulse,
			Template:       yieldTask,
			ExpectedOutput: "A ranked list of 5 yield opportunities with detailed entry requirements and expected returns.",
		},
		{
			Name:           StageSecurity,
			DependsOn:      []StageName{StageYield},
			Agent:          Aegis,
			Template:       securityTask,
			ExpectedOutput: "Security ratings and risk analysis for each yield opportunity.",
		},
		{
			Name:           StageSentiment,
			DependsOn:      []StageName{StageYield, StageSecurity},
			Agent:          Echo,
			Template:       sentimentTask,
			ExpectedOutput: "Sentiment analysis and social signals for each protocol under consideration.",
		},
		{
			Name:           StageAllocation,
			DependsOn:      []StageName{StageResearch, StageYield, StageSecurity, StageSentiment},
			Agent:          Fuel,
			Template:       allocationTask,
			ExpectedOutput: "A detailed capital allocation plan with expected returns and risk management strategy.",
		},
	}
}

func researchTask(v View) string {
	return fmt.Sprintf(`Research the current state of DeFi markets with a focus on:
1. Top 10 protocols by Total Value Locked (TVL)
2. Stablecoin yield opportunities with APY above 5%%
3. Recent protocol launches or upgrades in the last 30 days
4. Market trends that might affect yield opportunities

Format your findings in a clear, structured report with data-backed insights.
Capital available: $%s`, v.Capital)
}

func yieldTask(v View) string {
	return fmt.Sprintf(`Based on Sage's research, identify the top 5 yield opportunities that match these criteria:
1. Risk level: %s (low = bluechip only, medium = established protocols, high = newer protocols)
2. Strategy focus: %s (balanced, aggressive growth, conservative)
3. Minimum APY threshold that makes sense given the risk level
4. Gas efficiency for entry/exit (especially important for smaller amounts)

For each opportunity, provide:
- Protocol name and contract details
- Current APY/APR and stability history
- Entry requirements (tokens needed, steps to enter)
- Estimated gas costs for entry/exit
- Liquidation risks if applicable

Capital available: $%s`, v.RiskLevel, v.Strategy, v.Capital)
}

func securityTask(v View) string {
	return fmt.Sprintf(`For each of the 5 yield opportunities identified by Pulse, conduct a security analysis:
1. Audit status (who audited, when, major findings)
2. TVL stability (look for sudden drops or suspicious activities)
3. Team background and transparency
4. Smart contract risks and potential attack vectors
5. Historical security incidents if any

Provide a safety rating for each protocol:
- GREEN: Safe, well-audited, established
- YELLOW: Exercise caution, some concerns
- RED: High risk, avoid

Capital at risk: $%s`, v.Capital)
}

func sentimentTask(v View) string {
	return fmt.Sprintf(`For each protocol in our consideration set, analyze the current social sentiment:
1. Twitter/X activity around the protocol (volume and sentiment)
2. Community engagement metrics (Discord/Telegram activity)
3. Recent news or announcements
4. Developer activity and commitment

Identify any red flags or positive signals that could impact future performance.

Focus on reliable signals that could affect our $%s investment.`, v.Capital)
}

func allocationTask(v View) string {
	return fmt.Sprintf(`Based on all previous analyses, create an optimal capital allocation strategy:
1. Recommended allocation percentages across the vetted protocols
2. Entry timing recommendations (immediate vs. staged entry)
3. Expected ROI calculations with best/average/worst case scenarios
4. Gas optimization strategies
5. Exit strategy recommendations

Create a clear action plan for deploying $%s across the recommended protocols.
Risk level: %s. Strategy focus: %s.`, v.Capital, v.RiskLevel, v.Strategy)
}
