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

const researcherPersona = `You are a senior content researcher. You dig up accurate,
current information on a topic and condense it into a research brief other
writers can build on. You cite where a claim comes from, you prefer primary
sources, and you never pad a brief with filler. Respond with the brief only.`

// Researcher gathers background material for the topic. It is the only
// agent permitted to invoke external tools.
type Researcher struct {
	base
	tools     *ToolSet
	maxScrape int
}

func NewResearcher(cfg *config.Config, provider llm.Provider, tools *ToolSet) *Researcher {
	return &Researcher{
		base: base{
			stage:   pipeline.StageResearch,
			persona: researcherPersona,
			llm:     provider,
			model:   cfg.LLM.Routing.ModelFor(string(pipeline.StageResearch)),
			logger:  log.New(log.Writer(), "[RESEARCH-AGENT] ", log.LstdFlags),
		},
		tools:     tools,
		maxScrape: tools.maxPages,
	}
}

func (a *Researcher) Execute(ctx context.Context, input pipeline.StageInput) (pipeline.Artifact, error) {
	req := input.Request

	var sources []pipeline.Source
	var material strings.Builder

	if a.tools.HasSearch() {
		results, err := a.tools.Search(ctx, req.Topic)
		if err != nil {
			return pipeline.Artifact{}, pipeline.NewStageError(a.stage, pipeline.KindToolUnavailable, err)
		}
		for _, r := range results {
			sources = append(sources, pipeline.Source{Title: r.Title, URL: r.URL, Snippet: r.Snippet})
			fmt.Fprintf(&material, "- %s (%s): %s\n", r.Title, r.URL, r.Snippet)
		}

		if a.tools.HasScrape() {
			scraped := 0
			for _, r := range results {
				if scraped >= a.maxScrape {
					break
				}
				page, err := a.tools.Scrape(ctx, r.URL)
				if err != nil {
					return pipeline.Artifact{}, pipeline.NewStageError(a.stage, pipeline.KindToolUnavailable, err)
				}
				if page.Text == "" {
					continue
				}
				fmt.Fprintf(&material, "\n--- extract from %s ---\n%s\n", r.URL, page.Text)
				scraped++
			}
		}
	} else {
		a.logger.Printf("search not configured, researching %q from model knowledge only", req.Topic)
	}

	prompt := fmt.Sprintf(`%s

Produce a research brief for the topic above. Cover the key facts, current
developments, points of debate, and angles that matter to the target
audience. Structure it as short sections with bullet points.`, describeRequest(req))
	if material.Len() > 0 {
		prompt += "\n\nCollected material:\n" + material.String()
	}

	brief, err := a.generate(ctx, prompt)
	if err != nil {
		return pipeline.Artifact{}, err
	}
	if brief == "" {
		return pipeline.Artifact{}, pipeline.NewStageError(a.stage, pipeline.KindEmptyOutput,
			fmt.Errorf("empty research brief"))
	}

	return pipeline.Artifact{Stage: a.stage, Text: brief, Sources: sources}, nil
}
