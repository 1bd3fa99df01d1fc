// Package agent provides the pipeline executors: LLM backed ones and an
// offline executor that answers from the analytical tools.
package agent

import (
	"fmt"
	"strings"

	"github.com/ggonzalez94/yieldsensei/internal/pipeline"
)

func systemPrompt(p pipeline.Profile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Role: %s\n", p.Role)
	fmt.Fprintf(&b, "Goal: %s\n\n", p.Goal)
	b.WriteString(p.Backstory)
	return b.String()
}

func userPrompt(req pipeline.Request) string {
	var b strings.Builder
	b.WriteString(req.Task)
	if len(req.View.Upstream) > 0 {
		b.WriteString("\n\nFindings from earlier stages:\n")
		for _, up := range req.View.Upstream {
			fmt.Fprintf(&b, "\n### %s (%s)\n%s\n", up.Stage, up.Agent, strings.TrimSpace(up.Output))
		}
	}
	if req.ExpectedOutput != "" {
		fmt.Fprintf(&b, "\nExpected output: %s", req.ExpectedOutput)
	}
	return b.String()
}
