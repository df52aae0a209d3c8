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

const seoPersona = `You are an SEO specialist. You polish finished pieces for
search visibility without damaging readability: you weave target keywords in
naturally and write compelling meta descriptions under 160 characters.
Respond with the optimized piece only.`

const metaDescriptionLimit = 160

// SEOSpecialist produces the final artifact: optimized text plus keyword
// and meta-description metadata, with the metadata block appended to the
// content itself.
type SEOSpecialist struct {
	base
	extractor   *keywordExtractor
	maxKeywords int
}

func NewSEOSpecialist(cfg *config.Config, provider llm.Provider) (*SEOSpecialist, error) {
	extractor, err := newKeywordExtractor()
	if err != nil {
		return nil, err
	}
	return &SEOSpecialist{
		base: base{
			stage:   pipeline.StageSEO,
			persona: seoPersona,
			llm:     provider,
			model:   cfg.LLM.Routing.ModelFor(string(pipeline.StageSEO)),
			logger:  log.New(log.Writer(), "[SEO-AGENT] ", log.LstdFlags),
		},
		extractor:   extractor,
		maxKeywords: cfg.Pipeline.MaxKeywords,
	}, nil
}

func (a *SEOSpecialist) Execute(ctx context.Context, input pipeline.StageInput) (pipeline.Artifact, error) {
	edited, err := a.dependency(input, pipeline.StageEdit)
	if err != nil {
		return pipeline.Artifact{}, err
	}

	keywords := a.extractor.Extract(input.Request.Topic, edited.Text, a.maxKeywords)
	if len(keywords) == 0 {
		return pipeline.Artifact{}, pipeline.NewStageError(a.stage, pipeline.KindEmptyOutput,
			fmt.Errorf("no keywords could be derived from topic %q", input.Request.Topic))
	}

	prompt := fmt.Sprintf(`%s

Optimize the piece below for search. Work the target keywords in naturally
where they fit; do not stuff them. Keep the structure and tone intact.

Target keywords: %s

Piece:
%s`, describeRequest(input.Request), strings.Join(keywords, ", "), edited.Text)

	optimized, err := a.generate(ctx, prompt)
	if err != nil {
		return pipeline.Artifact{}, err
	}
	if optimized == "" {
		return pipeline.Artifact{}, pipeline.NewStageError(a.stage, pipeline.KindEmptyOutput,
			fmt.Errorf("empty optimization result"))
	}

	meta := metaDescription(optimized)
	if meta == "" {
		return pipeline.Artifact{}, pipeline.NewStageError(a.stage, pipeline.KindEmptyOutput,
			fmt.Errorf("could not derive a meta description"))
	}

	final := fmt.Sprintf("%s\n\n---\nKeywords: %s\nMeta description: %s\n",
		optimized, strings.Join(keywords, ", "), meta)

	return pipeline.Artifact{
		Stage:           a.stage,
		Text:            final,
		Keywords:        keywords,
		MetaDescription: meta,
	}, nil
}

// metaDescription takes the first prose sentence-ish slice of the piece,
// skipping Markdown headings, capped at the search snippet limit.
func metaDescription(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "---") {
			continue
		}
		if len(line) > metaDescriptionLimit {
			cut := strings.LastIndex(line[:metaDescriptionLimit], " ")
			if cut <= 0 {
				cut = metaDescriptionLimit
			}
			return strings.TrimSpace(line[:cut])
		}
		return line
	}
	return ""
}
