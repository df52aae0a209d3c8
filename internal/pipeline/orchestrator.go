package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mohammad-safakhou/copydesk/config"
	"github.com/mohammad-safakhou/copydesk/internal/telemetry"
)

// Agent is a role-bound worker executing one stage.
type Agent interface {
	Stage() Stage
	Execute(ctx context.Context, input StageInput) (Artifact, error)
}

// Orchestrator drives runs through the fixed stage sequence. Agents are
// injected at construction; the orchestrator owns no generation logic.
type Orchestrator struct {
	agents       map[Stage]Agent
	defs         map[Stage]StageDefinition
	tracker      *Tracker
	stageTimeout time.Duration
	semaphore    chan struct{}
	logger       *log.Logger
}

// NewOrchestrator wires agents to the stage table. Every stage in StageOrder
// must have exactly one agent.
func NewOrchestrator(agents []Agent, tracker *Tracker, cfg config.PipelineConfig) (*Orchestrator, error) {
	byStage := make(map[Stage]Agent, len(agents))
	for _, a := range agents {
		if _, dup := byStage[a.Stage()]; dup {
			return nil, fmt.Errorf("duplicate agent for stage %s", a.Stage())
		}
		byStage[a.Stage()] = a
	}
	defs := make(map[Stage]StageDefinition)
	for _, d := range Definitions() {
		if _, ok := byStage[d.Name]; !ok {
			return nil, fmt.Errorf("no agent for stage %s", d.Name)
		}
		defs[d.Name] = d
	}
	maxRuns := cfg.MaxConcurrentRuns
	if maxRuns <= 0 {
		maxRuns = 1
	}
	return &Orchestrator{
		agents:       byStage,
		defs:         defs,
		tracker:      tracker,
		stageTimeout: cfg.StageTimeout,
		semaphore:    make(chan struct{}, maxRuns),
		logger:       log.New(log.Writer(), "[ORCHESTRATOR] ", log.LstdFlags),
	}, nil
}

// Tracker exposes the registry this orchestrator reports into.
func (o *Orchestrator) Tracker() *Tracker { return o.tracker }

// StartRun validates the request and registers a pending run. Validation
// failures never create a run.
func (o *Orchestrator) StartRun(req ContentRequest) (*Run, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	run := newRun(req)
	o.tracker.Add(run)
	telemetry.RunsStarted.Inc()
	o.logger.Printf("run %s created: type=%s topic=%q", run.ID, req.ContentType, req.Topic)
	return run, nil
}

// Advance drives exactly one stage of the run to completion or failure.
// It is an idempotent no-op on terminal runs, and when another advance is
// already in flight it returns the currently visible status without
// executing anything.
func (o *Orchestrator) Advance(ctx context.Context, run *Run) (RunStatus, error) {
	if st := run.Status(); st.State.Terminal() {
		return st, nil
	}
	if !run.execMu.TryLock() {
		return run.Status(), nil
	}
	defer run.execMu.Unlock()

	// Re-check under the execution lock.
	if st := run.Status(); st.State.Terminal() {
		return st, nil
	}
	if run.cancelRequested() || ctx.Err() != nil {
		run.setCancelled()
		o.finish(run)
		return run.Status(), nil
	}

	stage, ok := run.nextStage()
	if !ok {
		run.setCompleted()
		o.finish(run)
		return run.Status(), nil
	}

	def := o.defs[stage]
	input := StageInput{Request: run.Request}
	for _, dep := range def.DependsOn {
		a, present := run.Artifact(dep)
		if !present {
			err := NewStageError(stage, KindInternal, fmt.Errorf("dependency artifact %s missing", dep))
			run.setFailed(stage, KindInternal, err)
			o.finish(run)
			return run.Status(), nil
		}
		input.Prior = append(input.Prior, a)
	}

	run.setRunning(stage)
	o.logger.Printf("run %s: executing stage %s", run.ID, stage)

	stageCtx, cancel := context.WithTimeout(ctx, o.stageTimeout)
	defer cancel()

	started := time.Now()
	artifact, err := o.agents[stage].Execute(stageCtx, input)
	elapsed := time.Since(started)

	if err != nil {
		se := ClassifyStageError(stage, err)
		telemetry.StageDuration.WithLabelValues(string(stage), "error").Observe(elapsed.Seconds())
		if se.Kind == KindCancelled {
			run.setCancelled()
		} else {
			run.setFailed(stage, se.Kind, se)
		}
		o.finish(run)
		o.logger.Printf("run %s: stage %s failed after %s: %v", run.ID, stage, elapsed.Round(time.Millisecond), se)
		return run.Status(), nil
	}
	if artifact.Text == "" {
		se := NewStageError(stage, KindEmptyOutput, fmt.Errorf("stage produced no content"))
		telemetry.StageDuration.WithLabelValues(string(stage), "error").Observe(elapsed.Seconds())
		run.setFailed(stage, KindEmptyOutput, se)
		o.finish(run)
		return run.Status(), nil
	}

	// A cancel that arrived mid-stage is observed here, at the boundary:
	// the stage's own output is discarded, prior artifacts stay intact.
	if run.cancelRequested() || ctx.Err() != nil {
		run.setCancelled()
		o.finish(run)
		o.logger.Printf("run %s: cancelled during stage %s, output discarded", run.ID, stage)
		return run.Status(), nil
	}

	artifact.Stage = stage
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = time.Now()
	}
	run.recordArtifact(artifact)
	telemetry.StageDuration.WithLabelValues(string(stage), "ok").Observe(elapsed.Seconds())
	o.logger.Printf("run %s: stage %s done in %s (%d chars)", run.ID, stage, elapsed.Round(time.Millisecond), len(artifact.Text))

	if stage == StageOrder[len(StageOrder)-1] {
		run.setCompleted()
		o.finish(run)
	}
	return run.Status(), nil
}

// Execute drives the run to a terminal state, advancing stage by stage.
// Concurrency across runs is bounded by the configured limit.
func (o *Orchestrator) Execute(ctx context.Context, run *Run) (RunStatus, error) {
	select {
	case o.semaphore <- struct{}{}:
	case <-ctx.Done():
		run.setCancelled()
		o.finish(run)
		return run.Status(), ctx.Err()
	}
	defer func() { <-o.semaphore }()

	for {
		st, err := o.Advance(ctx, run)
		if err != nil {
			return st, err
		}
		if st.State.Terminal() {
			return st, nil
		}
	}
}

// Cancel marks the run for cancellation. A running stage finishes first;
// the mark is observed at the next stage boundary.
func (o *Orchestrator) Cancel(run *Run) {
	run.RequestCancel()
	o.logger.Printf("run %s: cancellation requested", run.ID)
}

func (o *Orchestrator) finish(run *Run) {
	st := run.Status()
	switch st.State {
	case StateCompleted:
		telemetry.RunsCompleted.Inc()
	case StateFailed:
		telemetry.RunsFailed.WithLabelValues(string(st.Kind)).Inc()
	case StateCancelled:
		telemetry.RunsFailed.WithLabelValues(string(KindCancelled)).Inc()
	}
}
