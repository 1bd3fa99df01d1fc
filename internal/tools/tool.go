// Package tools binds the classifier, the data gateway and the scoring
// packages into the analytical tools exposed to users and pipeline agents.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ggonzalez94/yieldsensei/internal/classify"
	clierr "github.com/ggonzalez94/yieldsensei/internal/errors"
	"github.com/ggonzalez94/yieldsensei/internal/model"
)

type Status string

const (
	StatusOK               Status = "ok"
	StatusHelp             Status = "help"
	StatusNotFound         Status = "not_found"
	StatusInsufficientData Status = "insufficient_data"
	StatusClarify          Status = "clarify"
	StatusError            Status = "error"
)

// Result is a tool answer. Text is what a caller prints: indented JSON for
// structured answers, plain text for help, clarifications and errors.
type Result struct {
	Intent  classify.Intent
	Status  Status
	Payload any
	Text    string
	Err     error
}

func (r Result) OK() bool { return r.Status == StatusOK }

type Tool interface {
	Info() model.ToolInfo
	Classify(query string) classify.Intent
	Execute(ctx context.Context, intent classify.Intent, query string) Result
}

// Run classifies query and executes the resulting intent.
func Run(ctx context.Context, t Tool, query string) Result {
	return t.Execute(ctx, t.Classify(query), query)
}

func intentNames(table classify.Table) []string {
	intents := table.Intents()
	out := make([]string, 0, len(intents)+1)
	for _, i := range intents {
		out = append(out, string(i))
	}
	return append(out, string(classify.Help))
}

func ok(intent classify.Intent, payload any) Result {
	buf, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return Result{
			Intent: intent,
			Status: StatusError,
			Text:   fmt.Sprintf("Error encoding result: %v", err),
			Err:    clierr.Wrap(clierr.CodeInternal, "encode tool result", err),
		}
	}
	return Result{Intent: intent, Status: StatusOK, Payload: payload, Text: string(buf)}
}

func help(text string) Result {
	return Result{Intent: classify.Help, Status: StatusHelp, Text: text}
}

func clarify(intent classify.Intent, text string) Result {
	return Result{
		Intent: intent,
		Status: StatusClarify,
		Text:   text,
		Err:    clierr.New(clierr.CodeUsage, text),
	}
}

// failure turns err into a readable result. Lookup misses keep their own
// message; fetch and parse failures are prefixed with what was attempted.
func failure(intent classify.Intent, attempt string, err error) Result {
	switch code := clierr.CodeOf(err); code {
	case clierr.CodeNotFound, clierr.CodeInsufficientData:
		msg := err.Error()
		if e, isCLI := clierr.As(err); isCLI {
			msg = e.Message
		}
		status := StatusNotFound
		if code == clierr.CodeInsufficientData {
			status = StatusInsufficientData
		}
		return Result{Intent: intent, Status: status, Text: msg, Err: err}
	default:
		return Result{Intent: intent, Status: StatusError, Text: fmt.Sprintf("%s: %v", attempt, err), Err: err}
	}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
