package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	clierr "github.com/ggonzalez94/yieldsensei/internal/errors"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Request is everything an executor gets for one stage.
type Request struct {
	RunID          string
	Stage          StageName
	Agent          Profile
	Task           string
	ExpectedOutput string
	// View carries the outputs of the stages this one depends on. Task does
	// not repeat them, so executors must render View.Upstream themselves.
	View           View
}

// Executor runs one agent task and returns its text output.
type Executor interface {
	Name() string
	Execute(ctx context.Context, req Request) (string, error)
}

type StageRecord struct {
	Name       StageName `json:"name"`
	Agent      string    `json:"agent"`
	Status     Status    `json:"status"`
	Output     string    `json:"output,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  string    `json:"started_at,omitempty"`
	FinishedAt string    `json:"finished_at,omitempty"`
}

// Run is the bookkeeping record of one pipeline execution.
type Run struct {
	ID        string        `json:"run_id"`
	Status    Status        `json:"status"`
	Executor  string        `json:"executor"`
	Capital   string        `json:"capital"`
	RiskLevel RiskLevel     `json:"risk_level"`
	Strategy  Strategy      `json:"strategy"`
	CreatedAt string        `json:"created_at"`
	UpdatedAt string        `json:"updated_at"`
	Stages    []StageRecord `json:"stages"`
	Error     string        `json:"error,omitempty"`
}

// Journal persists run records. Save is called after every transition.
type Journal interface {
	Save(run Run) error
}

// Observer is notified after every stage transition.
type Observer interface {
	StageChanged(ctx context.Context, run Run, stage StageRecord)
}

type Orchestrator struct {
	exec      Executor
	stages    []Stage
	log       *zap.Logger
	journal   Journal
	observers []Observer
	now       func() time.Time
	newID     func() string
}

type Option func(*Orchestrator)

func WithLogger(log *zap.Logger) Option {
	return func(o *Orchestrator) {
		if log != nil {
			o.log = log
		}
	}
}

func WithJournal(j Journal) Option {
	return func(o *Orchestrator) { o.journal = j }
}

func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

func WithStages(stages []Stage) Option {
	return func(o *Orchestrator) { o.stages = append([]Stage{}, stages...) }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

func New(exec Executor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		exec:   exec,
		stages: DefaultStages(),
		log:    zap.NewNop(),
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) Stages() []Stage { return append([]Stage{}, o.stages...) }

// Run executes the stages in order against pc. The first failing stage
// stops the run; outputs of completed stages stay in pc and in the
// returned record. Cancellation is checked before each stage.
func (o *Orchestrator) Run(ctx context.Context, pc *Context) (*Run, error) {
	if o.exec == nil {
		return nil, clierr.New(clierr.CodeInternal, "pipeline has no executor")
	}
	if pc == nil {
		return nil, clierr.New(clierr.CodeInternal, "missing pipeline context")
	}
	if err := validateStages(o.stages); err != nil {
		return nil, err
	}

	now := o.timestamp()
	run := &Run{
		ID:        o.newID(),
		Status:    StatusRunning,
		Executor:  o.exec.Name(),
		Capital:   pc.Capital.String(),
		RiskLevel: pc.RiskLevel,
		Strategy:  pc.Strategy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, s := range o.stages {
		run.Stages = append(run.Stages, StageRecord{Name: s.Name, Agent: s.Agent.Name, Status: StatusPending})
	}
	log := o.log.With(zap.String("run_id", run.ID))
	log.Info("pipeline started",
		zap.String("executor", run.Executor),
		zap.String("capital", run.Capital),
		zap.String("risk_level", string(run.RiskLevel)),
		zap.String("strategy", string(run.Strategy)),
	)
	o.save(run)

	for i, stage := range o.stages {
		rec := &run.Stages[i]
		if err := ctx.Err(); err != nil {
			msg := fmt.Sprintf("pipeline cancelled before stage %s", stage.Name)
			o.fail(run, msg)
			log.Warn("pipeline cancelled", zap.String("stage", string(stage.Name)))
			return run, clierr.Wrap(clierr.CodeCancelled, msg, err)
		}

		rec.Status = StatusRunning
		rec.StartedAt = o.timestamp()
		o.transition(ctx, run, *rec)
		log.Info("stage running", zap.String("stage", string(stage.Name)), zap.String("agent", stage.Agent.Name))

		view := pc.view(stage.DependsOn)
		output, err := o.exec.Execute(ctx, Request{
			RunID:          run.ID,
			Stage:          stage.Name,
			Agent:          stage.Agent,
			Task:           stage.Render(view),
			ExpectedOutput: stage.ExpectedOutput,
			View:           view,
		})
		rec.FinishedAt = o.timestamp()
		if err != nil {
			rec.Status = StatusFailed
			rec.Error = err.Error()
			msg := fmt.Sprintf("stage %s failed", stage.Name)
			run.Status = StatusFailed
			run.Error = fmt.Sprintf("%s: %v", msg, err)
			run.UpdatedAt = rec.FinishedAt
			o.transition(ctx, run, *rec)
			log.Error("stage failed", zap.String("stage", string(stage.Name)), zap.Error(err))
			// A provider timeout inside the stage is a failure; only the run's own ctx cancels.
			if ctx.Err() != nil || clierr.Is(err, clierr.CodeCancelled) {
				return run, clierr.Wrap(clierr.CodeCancelled, msg, err)
			}
			return run, clierr.Wrap(clierr.CodeStageFailed, msg, err)
		}

		rec.Status = StatusCompleted
		rec.Output = output
		pc.append(StageOutput{Stage: stage.Name, Agent: stage.Agent.Name, Output: output})
		run.UpdatedAt = rec.FinishedAt
		o.transition(ctx, run, *rec)
		log.Info("stage completed", zap.String("stage", string(stage.Name)), zap.Int("output_bytes", len(output)))
	}

	run.Status = StatusCompleted
	run.UpdatedAt = o.timestamp()
	o.save(run)
	log.Info("pipeline completed")
	return run, nil
}

func (o *Orchestrator) fail(run *Run, msg string) {
	run.Status = StatusFailed
	run.Error = msg
	run.UpdatedAt = o.timestamp()
	o.save(run)
}

func (o *Orchestrator) transition(ctx context.Context, run *Run, rec StageRecord) {
	o.save(run)
	snapshot := cloneRun(*run)
	for _, obs := range o.observers {
		obs.StageChanged(ctx, snapshot, rec)
	}
}

// save is best-effort: a journal failure never fails the run.
func (o *Orchestrator) save(run *Run) {
	if o.journal == nil {
		return
	}
	if err := o.journal.Save(cloneRun(*run)); err != nil {
		o.log.Warn("journal save failed", zap.String("run_id", run.ID), zap.Error(err))
	}
}

func (o *Orchestrator) timestamp() string {
	return o.now().UTC().Format(time.RFC3339Nano)
}

func cloneRun(r Run) Run {
	r.Stages = append([]StageRecord{}, r.Stages...)
	return r
}
