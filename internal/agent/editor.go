package agent

import (
	"context"
	"fmt"
	"log"

	"github.com/mohammad-safakhou/copydesk/config"
	"github.com/mohammad-safakhou/copydesk/internal/llm"
	"github.com/mohammad-safakhou/copydesk/internal/pipeline"
)

const editorPersona = `You are a meticulous content editor. You tighten prose,
fix errors of grammar and fact-consistency against the research, improve flow,
and preserve the author's voice and the requested tone. You never summarize a
draft down to a stub. Respond with the revised piece only.`

// Editor revises the draft. Output shorter than the configured minimum is a
// soft failure since downstream stages need substantial content.
type Editor struct {
	base
	minLength int
}

func NewEditor(cfg *config.Config, provider llm.Provider) *Editor {
	return &Editor{
		base: base{
			stage:   pipeline.StageEdit,
			persona: editorPersona,
			llm:     provider,
			model:   cfg.LLM.Routing.ModelFor(string(pipeline.StageEdit)),
			logger:  log.New(log.Writer(), "[EDITOR-AGENT] ", log.LstdFlags),
		},
		minLength: cfg.Pipeline.MinEditedLength,
	}
}

func (a *Editor) Execute(ctx context.Context, input pipeline.StageInput) (pipeline.Artifact, error) {
	research, err := a.dependency(input, pipeline.StageResearch)
	if err != nil {
		return pipeline.Artifact{}, err
	}
	draft, err := a.dependency(input, pipeline.StageWrite)
	if err != nil {
		return pipeline.Artifact{}, err
	}

	prompt := fmt.Sprintf(`%s

Edit the draft below. Check claims against the research brief, tighten the
prose, and keep the structure and tone. Do not shorten it into a summary.

Research brief:
%s

Draft:
%s`, describeRequest(input.Request), research.Text, draft.Text)

	revised, err := a.generate(ctx, prompt)
	if err != nil {
		return pipeline.Artifact{}, err
	}
	if revised == "" {
		return pipeline.Artifact{}, pipeline.NewStageError(a.stage, pipeline.KindEmptyOutput,
			fmt.Errorf("empty edit result"))
	}
	if len(revised) < a.minLength {
		return pipeline.Artifact{}, pipeline.NewStageError(a.stage, pipeline.KindEmptyOutput,
			fmt.Errorf("edited content shrank to %d chars, minimum is %d", len(revised), a.minLength))
	}
	return pipeline.Artifact{Stage: a.stage, Text: revised}, nil
}
