package agent

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/mohammad-safakhou/copydesk/config"
	"github.com/mohammad-safakhou/copydesk/internal/llm"
	"github.com/mohammad-safakhou/copydesk/internal/pipeline"
)

// base carries what every role agent shares: a persona, an LLM handle and a
// routed model.
type base struct {
	stage   pipeline.Stage
	persona string
	llm     llm.Provider
	model   string
	logger  *log.Logger
}

func (b *base) Stage() pipeline.Stage { return b.stage }

// generate runs one persona-biased completion and trims the result.
func (b *base) generate(ctx context.Context, user string) (string, error) {
	out, err := b.llm.Generate(ctx, b.model, []llm.Message{
		{Role: "system", Content: b.persona},
		{Role: "user", Content: user},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// dependency fetches a required prior artifact; absence is a programming
// defect, never a retryable condition.
func (b *base) dependency(input pipeline.StageInput, stage pipeline.Stage) (pipeline.Artifact, error) {
	a, ok := input.Dependency(stage)
	if !ok {
		return pipeline.Artifact{}, pipeline.NewStageError(b.stage, pipeline.KindInternal,
			fmt.Errorf("missing %s artifact", stage))
	}
	return a, nil
}

// NewAgents creates the closed set of role agents, one per stage.
func NewAgents(cfg *config.Config, provider llm.Provider, tools *ToolSet) ([]pipeline.Agent, error) {
	if provider == nil {
		return nil, fmt.Errorf("llm provider is required")
	}
	if tools == nil {
		tools = &ToolSet{}
	}
	seo, err := NewSEOSpecialist(cfg, provider)
	if err != nil {
		return nil, err
	}
	return []pipeline.Agent{
		NewResearcher(cfg, provider, tools),
		NewWriter(cfg, provider),
		NewEditor(cfg, provider),
		seo,
	}, nil
}

func describeRequest(req pipeline.ContentRequest) string {
	return fmt.Sprintf("Content type: %s\nTopic: %s\nTarget audience: %s\nTone: %s",
		req.ContentType, req.Topic, req.TargetAudience, req.Tone)
}
