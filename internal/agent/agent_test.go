package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mohammad-safakhou/copydesk/config"
	"github.com/mohammad-safakhou/copydesk/internal/llm"
	"github.com/mohammad-safakhou/copydesk/internal/pipeline"
	fetchmodels "github.com/mohammad-safakhou/copydesk/tools/web_fetch/models"
	searchmodels "github.com/mohammad-safakhou/copydesk/tools/web_search/models"
)

type fakeProvider struct {
	fn func(model string, messages []llm.Message) (string, error)
}

func (f *fakeProvider) Generate(_ context.Context, model string, messages []llm.Message) (string, error) {
	return f.fn(model, messages)
}

func constantProvider(out string) *fakeProvider {
	return &fakeProvider{fn: func(string, []llm.Message) (string, error) { return out, nil }}
}

type fakeSearcher struct {
	results []searchmodels.Result
	err     error
}

func (f *fakeSearcher) Discover(_ context.Context, _ string, _ int) ([]searchmodels.Result, error) {
	return f.results, f.err
}

type fakeFetcher struct {
	pages map[string]string
	err   error
}

func (f *fakeFetcher) Exec(_ context.Context, url string) (fetchmodels.Result, error) {
	if f.err != nil {
		return fetchmodels.Result{}, f.err
	}
	return fetchmodels.Result{URL: url, Text: f.pages[url]}, nil
}

func testAgentConfig() *config.Config {
	return &config.Config{
		LLM: config.LLMConfig{
			Routing: config.RoutingConfig{Fallback: "gpt-test"},
		},
		Pipeline: config.PipelineConfig{
			StageTimeout:      5 * time.Second,
			MinEditedLength:   40,
			MaxKeywords:       5,
			MaxConcurrentRuns: 2,
		},
	}
}

func blogRequest() pipeline.ContentRequest {
	return pipeline.ContentRequest{
		ContentType:    "blog",
		Topic:          "remote work",
		TargetAudience: "startup founders",
		Tone:           "informative",
	}
}

func TestResearcherCollectsSources(t *testing.T) {
	var prompt string
	provider := &fakeProvider{fn: func(_ string, messages []llm.Message) (string, error) {
		prompt = messages[len(messages)-1].Content
		return "Remote work adoption keeps growing across startups.", nil
	}}
	tools := &ToolSet{
		searcher: &fakeSearcher{results: []searchmodels.Result{
			{Title: "Remote trends", URL: "https://example.com/trends", Snippet: "hybrid is up"},
			{Title: "Focus time", URL: "https://example.com/focus", Snippet: "fewer meetings"},
		}},
		fetcher:       &fakeFetcher{pages: map[string]string{"https://example.com/trends": "long form analysis of hybrid schedules"}},
		searchTimeout: time.Second,
		maxResults:    5,
	}

	r := NewResearcher(testAgentConfig(), provider, tools)
	r.maxScrape = 1
	art, err := r.Execute(context.Background(), pipeline.StageInput{Request: blogRequest()})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if art.Stage != pipeline.StageResearch || art.Text == "" {
		t.Fatalf("artifact = %+v", art)
	}
	if len(art.Sources) != 2 || art.Sources[0].URL != "https://example.com/trends" {
		t.Fatalf("sources = %+v", art.Sources)
	}
	if !strings.Contains(prompt, "https://example.com/trends") {
		t.Fatalf("prompt missing search material:\n%s", prompt)
	}
	if !strings.Contains(prompt, "long form analysis") {
		t.Fatalf("prompt missing scraped extract:\n%s", prompt)
	}
}

func TestResearcherSearchFailureIsToolUnavailable(t *testing.T) {
	tools := &ToolSet{
		searcher:      &fakeSearcher{err: errors.New("provider returned 503")},
		searchTimeout: time.Second,
		maxResults:    5,
	}
	r := NewResearcher(testAgentConfig(), constantProvider("unused"), tools)

	_, err := r.Execute(context.Background(), pipeline.StageInput{Request: blogRequest()})
	var se *pipeline.StageError
	if !errors.As(err, &se) || se.Kind != pipeline.KindToolUnavailable {
		t.Fatalf("err = %v, want stage error with tool_unavailable", err)
	}
}

func TestResearcherWithoutSearchUsesModelOnly(t *testing.T) {
	r := NewResearcher(testAgentConfig(), constantProvider("brief from model knowledge"), &ToolSet{})
	art, err := r.Execute(context.Background(), pipeline.StageInput{Request: blogRequest()})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(art.Sources) != 0 {
		t.Fatalf("sources = %+v, want none without a search tool", art.Sources)
	}
	if art.Text != "brief from model knowledge" {
		t.Fatalf("text = %q", art.Text)
	}
}

func TestWriterRequiresResearchArtifact(t *testing.T) {
	w := NewWriter(testAgentConfig(), constantProvider("draft"))
	_, err := w.Execute(context.Background(), pipeline.StageInput{Request: blogRequest()})
	var se *pipeline.StageError
	if !errors.As(err, &se) || se.Kind != pipeline.KindInternal {
		t.Fatalf("err = %v, want stage error with internal_invariant_violation", err)
	}
}

func TestEditorRejectsShrunkenOutput(t *testing.T) {
	e := NewEditor(testAgentConfig(), constantProvider("too short"))
	input := pipeline.StageInput{
		Request: blogRequest(),
		Prior: []pipeline.Artifact{
			{Stage: pipeline.StageResearch, Text: "research brief"},
			{Stage: pipeline.StageWrite, Text: "a complete draft with plenty of substance to edit"},
		},
	}
	_, err := e.Execute(context.Background(), input)
	var se *pipeline.StageError
	if !errors.As(err, &se) || se.Kind != pipeline.KindEmptyOutput {
		t.Fatalf("err = %v, want stage error with empty_output", err)
	}
	if se.Stage != pipeline.StageEdit {
		t.Fatalf("stage = %s, want edit", se.Stage)
	}
}

func TestSEOSpecialistProducesMetadata(t *testing.T) {
	optimized := "# Remote Work for Founders\n\nRemote work gives startup founders leverage on hiring and focus.\n\nMore body text about distributed teams."
	seo, err := NewSEOSpecialist(testAgentConfig(), constantProvider(optimized))
	if err != nil {
		t.Fatalf("NewSEOSpecialist: %v", err)
	}
	input := pipeline.StageInput{
		Request: blogRequest(),
		Prior: []pipeline.Artifact{
			{Stage: pipeline.StageResearch, Text: "brief"},
			{Stage: pipeline.StageWrite, Text: "draft"},
			{Stage: pipeline.StageEdit, Text: "Remote work changes how startup teams hire, meet and ship."},
		},
	}
	art, err := seo.Execute(context.Background(), input)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if art.Stage != pipeline.StageSEO {
		t.Fatalf("stage = %s", art.Stage)
	}
	if len(art.Keywords) == 0 || len(art.Keywords) > 5 {
		t.Fatalf("keywords = %v", art.Keywords)
	}
	joined := strings.Join(art.Keywords, " ")
	if !strings.Contains(joined, "remote") || !strings.Contains(joined, "work") {
		t.Fatalf("keywords %v missing topic terms", art.Keywords)
	}
	if art.MetaDescription == "" || len(art.MetaDescription) > 160 {
		t.Fatalf("meta description = %q (%d chars)", art.MetaDescription, len(art.MetaDescription))
	}
	if strings.HasPrefix(art.MetaDescription, "#") {
		t.Fatalf("meta description picked a heading: %q", art.MetaDescription)
	}
	if !strings.Contains(art.Text, "Keywords: ") || !strings.Contains(art.Text, "Meta description: ") {
		t.Fatalf("final text missing metadata block:\n%s", art.Text)
	}
}

func TestMetaDescription(t *testing.T) {
	long := strings.Repeat("remote work matters ", 20)
	cases := []struct {
		name string
		in   string
		want func(string) bool
	}{
		{"skips headings", "# Title\n\nFirst real line.", func(s string) bool { return s == "First real line." }},
		{"empty input", "", func(s string) bool { return s == "" }},
		{"cuts at word boundary", long, func(s string) bool {
			return len(s) <= 160 && !strings.HasSuffix(s, " ") && strings.HasPrefix(long, s)
		}},
	}
	for _, tc := range cases {
		if got := metaDescription(tc.in); !tc.want(got) {
			t.Fatalf("%s: metaDescription = %q", tc.name, got)
		}
	}
}

func TestNewAgentsCoversEveryStage(t *testing.T) {
	agents, err := NewAgents(testAgentConfig(), constantProvider("x"), nil)
	if err != nil {
		t.Fatalf("NewAgents: %v", err)
	}
	seen := make(map[pipeline.Stage]bool)
	for _, a := range agents {
		seen[a.Stage()] = true
	}
	for _, stage := range pipeline.StageOrder {
		if !seen[stage] {
			t.Fatalf("no agent for stage %s", stage)
		}
	}
}

// Full pipeline over fake generation: a blog run about remote work completes
// with four artifacts and topic-derived keywords on the final one.
func TestPipelineEndToEnd(t *testing.T) {
	body := "Remote work reshapes how startup founders build teams. " +
		"Distributed hiring widens the talent pool while async habits protect focus. " +
		"The tradeoffs are real but manageable with deliberate communication."
	provider := constantProvider(body)

	agents, err := NewAgents(testAgentConfig(), provider, &ToolSet{})
	if err != nil {
		t.Fatalf("NewAgents: %v", err)
	}
	orch, err := pipeline.NewOrchestrator(agents, pipeline.NewTracker(), testAgentConfig().Pipeline)
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}

	run, err := orch.StartRun(blogRequest())
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	st, err := orch.Execute(context.Background(), run)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if st.State != pipeline.StateCompleted {
		t.Fatalf("final state = %s, want completed", st)
	}
	if got := run.Artifacts(); len(got) != len(pipeline.StageOrder) {
		t.Fatalf("got %d artifacts, want %d", len(got), len(pipeline.StageOrder))
	}

	final, ok := run.FinalArtifact()
	if !ok {
		t.Fatalf("no final artifact on completed run")
	}
	joined := strings.Join(final.Keywords, " ")
	if !strings.Contains(joined, "remote") || !strings.Contains(joined, "work") {
		t.Fatalf("final keywords %v missing topic terms", final.Keywords)
	}
	if final.MetaDescription == "" {
		t.Fatalf("final artifact missing meta description")
	}
}
