package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	clierr "github.com/ggonzalez94/yieldsensei/internal/errors"
)

type fakeExecutor struct {
	failAt  StageName
	failErr error
	cancel  context.CancelFunc
	mu     sync.Mutex
	seen   []Request
}

func (f *fakeExecutor) Name() string { return "fake" }

func (f *fakeExecutor) Execute(ctx context.Context, req Request) (string, error) {
	f.mu.Lock()
	f.seen = append(f.seen, req)
	f.mu.Unlock()
	if req.Stage == f.failAt {
		if f.failErr != nil {
			return "", f.failErr
		}
		return "", errors.New("agent exploded")
	}
	if f.cancel != nil && req.Stage == StageYield {
		f.cancel()
	}
	return "output of " + string(req.Stage), nil
}

type memJournal struct {
	saves []Run
}

func (m *memJournal) Save(run Run) error {
	m.saves = append(m.saves, run)
	return nil
}

type recordingObserver struct {
	events []string
}

func (r *recordingObserver) StageChanged(_ context.Context, _ Run, stage StageRecord) {
	r.events = append(r.events, string(stage.Name)+":"+string(stage.Status))
}

func newTestContext(t *testing.T) *Context {
	t.Helper()
	pc, err := NewContext(decimal.NewFromInt(5000), RiskMedium, StrategyBalanced)
	if err != nil {
		t.Fatalf("NewContext failed: %v", err)
	}
	return pc
}

func fixedClock() func() time.Time {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var n int
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func TestRunProducesFiveOutputsInOrder(t *testing.T) {
	exec := &fakeExecutor{}
	journal := &memJournal{}
	obs := &recordingObserver{}
	o := New(exec, WithLogger(zaptest.NewLogger(t)), WithJournal(journal), WithObserver(obs), WithClock(fixedClock()))
	pc := newTestContext(t)

	run, err := o.Run(context.Background(), pc)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if run.Status != StatusCompleted || run.Executor != "fake" || run.Capital != "5000" {
		t.Fatalf("unexpected run %+v", run)
	}

	want := []StageName{StageResearch, StageYield, StageSecurity, StageSentiment, StageAllocation}
	outputs := pc.Outputs()
	if len(outputs) != len(want) {
		t.Fatalf("expected %d outputs, got %d", len(want), len(outputs))
	}
	for i, name := range want {
		if outputs[i].Stage != name || run.Stages[i].Status != StatusCompleted {
			t.Fatalf("stage %d: expected %s completed, got %+v / %+v", i, name, outputs[i], run.Stages[i])
		}
	}

	if len(obs.events) != 10 || obs.events[0] != "research:running" || obs.events[9] != "allocation:completed" {
		t.Fatalf("unexpected observer events %v", obs.events)
	}
	last := journal.saves[len(journal.saves)-1]
	if last.Status != StatusCompleted || last.ID != run.ID {
		t.Fatalf("journal should end with the completed run, got %+v", last)
	}
}

func TestRunPassesUpstreamAndRenderedTasks(t *testing.T) {
	exec := &fakeExecutor{}
	o := New(exec)
	pc, err := NewContext(decimal.RequireFromString("2500.50"), RiskHigh, StrategyAggressive)
	if err != nil {
		t.Fatalf("NewContext failed: %v", err)
	}
	if _, err := o.Run(context.Background(), pc); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	research := exec.seen[0]
	if len(research.View.Upstream) != 0 || !strings.Contains(research.Task, "Capital available: $2500.5") {
		t.Fatalf("unexpected research request %+v", research)
	}
	if research.Agent.Name != "Sage" || research.ExpectedOutput == "" {
		t.Fatalf("research request missing agent profile: %+v", research.Agent)
	}
	yield := exec.seen[1]
	if !strings.Contains(yield.Task, "Risk level: high") || !strings.Contains(yield.Task, "Strategy focus: aggressive") {
		t.Fatalf("yield task not rendered from context: %s", yield.Task)
	}
	allocation := exec.seen[4]
	if len(allocation.View.Upstream) != 4 || allocation.View.Upstream[0].Stage != StageResearch {
		t.Fatalf("allocation should see all upstream outputs: %+v", allocation.View.Upstream)
	}
}

func TestRunFailsFastAtSecurity(t *testing.T) {
	exec := &fakeExecutor{failAt: StageSecurity}
	journal := &memJournal{}
	o := New(exec, WithJournal(journal))
	pc := newTestContext(t)

	run, err := o.Run(context.Background(), pc)
	if !clierr.Is(err, clierr.CodeStageFailed) {
		t.Fatalf("expected stage failed error, got %v", err)
	}
	if !strings.Contains(err.Error(), "security") || !strings.Contains(err.Error(), "agent exploded") {
		t.Fatalf("error should name stage and cause: %v", err)
	}

	outputs := pc.Outputs()
	if len(outputs) != 2 || outputs[0].Stage != StageResearch || outputs[1].Stage != StageYield {
		t.Fatalf("expected research and yield outputs only, got %+v", outputs)
	}
	if run.Status != StatusFailed || run.Stages[2].Status != StatusFailed || run.Stages[3].Status != StatusPending {
		t.Fatalf("unexpected stage statuses %+v", run.Stages)
	}
	if len(exec.seen) != 3 {
		t.Fatalf("stages after the failure must not run, saw %d", len(exec.seen))
	}
	if journal.saves[len(journal.saves)-1].Status != StatusFailed {
		t.Fatal("journal should record the failed run")
	}
}

func TestProviderTimeoutIsStageFailure(t *testing.T) {
	exec := &fakeExecutor{
		failAt:  StageSecurity,
		failErr: clierr.Wrap(clierr.CodeTimeout, "provider timeout", context.DeadlineExceeded),
	}
	run, err := New(exec).Run(context.Background(), newTestContext(t))
	if !clierr.Is(err, clierr.CodeStageFailed) {
		t.Fatalf("expected stage failure, got code %d: %v", clierr.CodeOf(err), err)
	}
	if !strings.Contains(err.Error(), "stage security failed") {
		t.Fatalf("error should name the stage: %v", err)
	}
	if run.Status != StatusFailed || run.Stages[2].Status != StatusFailed {
		t.Fatalf("unexpected run state %+v", run)
	}
}

func TestRunHonoursCancellationBetweenStages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	exec := &fakeExecutor{cancel: cancel}
	o := New(exec)
	pc := newTestContext(t)

	run, err := o.Run(ctx, pc)
	if !clierr.Is(err, clierr.CodeCancelled) {
		t.Fatalf("expected cancelled, got %v", err)
	}
	if len(pc.Outputs()) != 2 || run.Status != StatusFailed {
		t.Fatalf("expected two completed stages before cancellation, got %d (%s)", len(pc.Outputs()), run.Status)
	}
	if run.Stages[2].Status != StatusPending {
		t.Fatalf("security should never start, got %s", run.Stages[2].Status)
	}
}

func TestRunRejectsMisorderedStages(t *testing.T) {
	stages := DefaultStages()
	stages[0], stages[1] = stages[1], stages[0]
	o := New(&fakeExecutor{}, WithStages(stages))
	if _, err := o.Run(context.Background(), newTestContext(t)); !clierr.Is(err, clierr.CodeInternal) {
		t.Fatalf("expected internal error for bad ordering, got %v", err)
	}
}

func TestNewContextValidation(t *testing.T) {
	if _, err := NewContext(decimal.Zero, RiskLow, StrategyBalanced); !clierr.Is(err, clierr.CodeUsage) {
		t.Fatalf("expected usage error for zero capital, got %v", err)
	}
	if _, err := NewContext(decimal.NewFromInt(1), "reckless", StrategyBalanced); !clierr.Is(err, clierr.CodeUsage) {
		t.Fatalf("expected usage error for bad risk level, got %v", err)
	}
	pc, err := NewContext(decimal.NewFromInt(1), "", "")
	if err != nil || pc.RiskLevel != RiskMedium || pc.Strategy != StrategyBalanced {
		t.Fatalf("expected defaults, got %+v %v", pc, err)
	}
	pc, err = NewContext(decimal.NewFromInt(1), "LOW", "Conservative")
	if err != nil || pc.RiskLevel != RiskLow || pc.Strategy != StrategyConservative {
		t.Fatalf("expected normalized enums, got %+v %v", pc, err)
	}
}

func TestParseCapital(t *testing.T) {
	v, err := ParseCapital("$12,500.25")
	if err != nil || !v.Equal(decimal.RequireFromString("12500.25")) {
		t.Fatalf("unexpected capital %s %v", v, err)
	}
	v, err = ParseCapital("")
	if err != nil || !v.Equal(DefaultCapital) {
		t.Fatalf("expected default capital, got %s %v", v, err)
	}
	if _, err := ParseCapital("lots"); !clierr.Is(err, clierr.CodeUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
}
