package server

import (
	"time"

	"github.com/mohammad-safakhou/copydesk/internal/pipeline"
	"github.com/mohammad-safakhou/copydesk/internal/store"
)

// HTTPError is the JSON error envelope returned by the error handler.
type HTTPError struct {
	Error string `json:"error"`
}

type AuthSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type IDResponse struct {
	ID string `json:"id"`
}

// CreateRunRequest mirrors pipeline.ContentRequest on the wire.
type CreateRunRequest struct {
	ContentType    string `json:"content_type"`
	Topic          string `json:"topic"`
	TargetAudience string `json:"target_audience"`
	Tone           string `json:"tone"`
}

func (r CreateRunRequest) toRequest() pipeline.ContentRequest {
	return pipeline.ContentRequest{
		ContentType:    r.ContentType,
		Topic:          r.Topic,
		TargetAudience: r.TargetAudience,
		Tone:           r.Tone,
	}
}

// RunResponse is the status view of a run, used by pollers to drive the
// four-step progress indicator.
type RunResponse struct {
	ID         string                  `json:"id"`
	Request    pipeline.ContentRequest `json:"request"`
	State      pipeline.State          `json:"state"`
	Stage      pipeline.Stage          `json:"stage,omitempty"`
	ErrorKind  pipeline.ErrorKind      `json:"error_kind,omitempty"`
	Error      string                  `json:"error,omitempty"`
	Stages     []string                `json:"stages_done"`
	CreatedAt  time.Time               `json:"created_at"`
	FinishedAt *time.Time              `json:"finished_at,omitempty"`
}

func newRunResponse(run *pipeline.Run) RunResponse {
	st := run.Status()
	resp := RunResponse{
		ID:        run.ID.String(),
		Request:   run.Request,
		State:     st.State,
		Stage:     st.Stage,
		ErrorKind: st.Kind,
		Error:     st.Error,
		Stages:    []string{},
		CreatedAt: run.CreatedAt,
	}
	for _, a := range run.Artifacts() {
		resp.Stages = append(resp.Stages, string(a.Stage))
	}
	if t := run.CompletedAt(); !t.IsZero() {
		resp.FinishedAt = &t
	}
	return resp
}

// ResultResponse carries the final artifact of a completed run.
type ResultResponse struct {
	Text            string            `json:"text"`
	Keywords        []string          `json:"keywords"`
	MetaDescription string            `json:"meta_description"`
	Sources         []pipeline.Source `json:"sources,omitempty"`
}

// CreateBriefRequest schedules a recurring content request.
type CreateBriefRequest struct {
	CreateRunRequest
	CronSpec string `json:"cron_spec"`
}

// BriefResponse is the API view of a stored brief.
type BriefResponse struct {
	ID        string                  `json:"id"`
	Request   pipeline.ContentRequest `json:"request"`
	CronSpec  string                  `json:"cron_spec"`
	CreatedAt time.Time               `json:"created_at"`
	LastRunAt *time.Time              `json:"last_run_at,omitempty"`
}

func newBriefResponse(b store.Brief) BriefResponse {
	return BriefResponse{
		ID:        b.ID,
		Request:   b.Request,
		CronSpec:  b.CronSpec,
		CreatedAt: b.CreatedAt,
		LastRunAt: b.LastRunAt,
	}
}
