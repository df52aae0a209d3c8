package agent

import (
	"context"
	"fmt"
	"log"

	"github.com/mohammad-safakhou/copydesk/config"
	"github.com/mohammad-safakhou/copydesk/internal/llm"
	"github.com/mohammad-safakhou/copydesk/internal/pipeline"
)

const writerPersona = `You are a professional content writer. You turn research
briefs into engaging, well structured drafts that speak directly to the
target audience in the requested tone. You write in Markdown. Respond with
the draft only, no commentary.`

// Writer turns the research brief into a full draft.
type Writer struct {
	base
}

func NewWriter(cfg *config.Config, provider llm.Provider) *Writer {
	return &Writer{base{
		stage:   pipeline.StageWrite,
		persona: writerPersona,
		llm:     provider,
		model:   cfg.LLM.Routing.ModelFor(string(pipeline.StageWrite)),
		logger:  log.New(log.Writer(), "[WRITER-AGENT] ", log.LstdFlags),
	}}
}

func (a *Writer) Execute(ctx context.Context, input pipeline.StageInput) (pipeline.Artifact, error) {
	research, err := a.dependency(input, pipeline.StageResearch)
	if err != nil {
		return pipeline.Artifact{}, err
	}

	prompt := fmt.Sprintf(`%s

Write a complete %s piece on the topic above, grounded in the research brief
below. Address the target audience directly and keep the requested tone
throughout. Use Markdown headings where they help the structure.

Research brief:
%s`, describeRequest(input.Request), input.Request.ContentType, research.Text)

	draft, err := a.generate(ctx, prompt)
	if err != nil {
		return pipeline.Artifact{}, err
	}
	if draft == "" {
		return pipeline.Artifact{}, pipeline.NewStageError(a.stage, pipeline.KindEmptyOutput,
			fmt.Errorf("empty draft"))
	}
	return pipeline.Artifact{Stage: a.stage, Text: draft}, nil
}
