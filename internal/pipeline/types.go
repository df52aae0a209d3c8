package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Stage identifies one step of the fixed pipeline.
type Stage string

const (
	StageResearch Stage = "research"
	StageWrite    Stage = "write"
	StageEdit     Stage = "edit"
	StageSEO      Stage = "seo"
)

// StageOrder is the fixed execution order. Each stage consumes the output of
// the one before it.
var StageOrder = []Stage{StageResearch, StageWrite, StageEdit, StageSEO}

// StageDefinition describes a stage statically: its role persona and the
// artifacts that must exist before it runs.
type StageDefinition struct {
	Name      Stage
	Role      string
	DependsOn []Stage
}

// Definitions returns the static stage table. Dependencies form a total
// order over StageOrder.
func Definitions() []StageDefinition {
	return []StageDefinition{
		{Name: StageResearch, Role: "Content Researcher", DependsOn: nil},
		{Name: StageWrite, Role: "Content Writer", DependsOn: []Stage{StageResearch}},
		{Name: StageEdit, Role: "Content Editor", DependsOn: []Stage{StageResearch, StageWrite}},
		{Name: StageSEO, Role: "SEO Specialist", DependsOn: []Stage{StageResearch, StageWrite, StageEdit}},
	}
}

// ContentRequest is the immutable input of a run.
type ContentRequest struct {
	ContentType    string `json:"content_type" validate:"required,oneof=blog social email"`
	Topic          string `json:"topic" validate:"required"`
	TargetAudience string `json:"target_audience" validate:"required"`
	Tone           string `json:"tone" validate:"required"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the request before any run is created.
func (r ContentRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}

// Source is a reference collected during research.
type Source struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// Artifact is the immutable output of one stage.
type Artifact struct {
	Stage           Stage     `json:"stage"`
	Text            string    `json:"text"`
	Sources         []Source  `json:"sources,omitempty"`
	Keywords        []string  `json:"keywords,omitempty"`
	MetaDescription string    `json:"meta_description,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// StageInput is what an agent receives: the original request plus the prior
// artifacts it depends on, in stage order.
type StageInput struct {
	Request ContentRequest
	Prior   []Artifact
}

// Dependency returns the prior artifact for a stage, if present.
func (in StageInput) Dependency(stage Stage) (Artifact, bool) {
	for _, a := range in.Prior {
		if a.Stage == stage {
			return a, true
		}
	}
	return Artifact{}, false
}

// State is the coarse lifecycle state of a run.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// RunStatus is an immutable snapshot of where a run is.
type RunStatus struct {
	State State     `json:"state"`
	Stage Stage     `json:"stage,omitempty"` // active stage when running, failing stage when failed
	Kind  ErrorKind `json:"error_kind,omitempty"`
	Error string    `json:"error,omitempty"`
}

// Run is one end-to-end execution of the pipeline for a single request.
// Status and artifacts are guarded by mu; readers always get copies.
type Run struct {
	ID        uuid.UUID
	Request   ContentRequest
	CreatedAt time.Time

	mu          sync.RWMutex
	status      RunStatus
	artifacts   map[Stage]Artifact
	completedAt time.Time

	// execMu enforces at most one advance in flight per run.
	execMu sync.Mutex
	// cancelled is observed at stage boundaries.
	cancelled bool
}

func newRun(req ContentRequest) *Run {
	return &Run{
		ID:        uuid.New(),
		Request:   req,
		CreatedAt: time.Now(),
		status:    RunStatus{State: StatePending},
		artifacts: make(map[Stage]Artifact),
	}
}

// Status returns the current status snapshot.
func (r *Run) Status() RunStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// CompletedAt returns the terminal timestamp, zero while the run is live.
func (r *Run) CompletedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.completedAt
}

// Artifact returns the artifact recorded for a stage, if any.
func (r *Run) Artifact(stage Stage) (Artifact, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.artifacts[stage]
	return a, ok
}

// Artifacts returns all recorded artifacts in stage order.
func (r *Run) Artifacts() []Artifact {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Artifact, 0, len(r.artifacts))
	for _, s := range StageOrder {
		if a, ok := r.artifacts[s]; ok {
			out = append(out, a)
		}
	}
	return out
}

// FinalArtifact returns the last stage's artifact once the run completed.
func (r *Run) FinalArtifact() (Artifact, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.status.State != StateCompleted {
		return Artifact{}, false
	}
	a, ok := r.artifacts[StageOrder[len(StageOrder)-1]]
	return a, ok
}

// RequestCancel marks the run for cancellation. The orchestrator observes
// the mark at the next stage boundary; a pending run terminates immediately.
func (r *Run) RequestCancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = true
	if r.status.State == StatePending {
		r.status = RunStatus{State: StateCancelled, Kind: KindCancelled}
		r.completedAt = time.Now()
	}
}

func (r *Run) cancelRequested() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cancelled
}

// nextStage returns the first stage without an artifact. ok is false when
// every stage has produced output.
func (r *Run) nextStage() (Stage, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range StageOrder {
		if _, done := r.artifacts[s]; !done {
			return s, true
		}
	}
	return "", false
}

func (r *Run) setRunning(stage Stage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.State.Terminal() {
		return
	}
	r.status = RunStatus{State: StateRunning, Stage: stage}
}

// recordArtifact stores the stage output and publishes the status change in
// the same critical section, so pollers never see stage N+1 running before
// stage N's artifact is visible.
func (r *Run) recordArtifact(a Artifact) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.State.Terminal() {
		return
	}
	r.artifacts[a.Stage] = a
}

func (r *Run) setCompleted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.State.Terminal() {
		return
	}
	r.status = RunStatus{State: StateCompleted}
	r.completedAt = time.Now()
}

func (r *Run) setFailed(stage Stage, kind ErrorKind, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.State.Terminal() {
		return
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	r.status = RunStatus{State: StateFailed, Stage: stage, Kind: kind, Error: msg}
	r.completedAt = time.Now()
}

func (r *Run) setCancelled() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.State.Terminal() {
		return
	}
	r.status = RunStatus{State: StateCancelled, Kind: KindCancelled}
	r.completedAt = time.Now()
}

// String implements fmt.Stringer for log lines.
func (s RunStatus) String() string {
	switch s.State {
	case StateRunning:
		return fmt.Sprintf("running(%s)", s.Stage)
	case StateFailed:
		return fmt.Sprintf("failed(%s, %s)", s.Stage, s.Kind)
	default:
		return string(s.State)
	}
}
