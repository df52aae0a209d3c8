package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	searchmodels "github.com/mohammad-safakhou/copydesk/tools/web_search/models"
)

func TestInvokeSearchFormatsResults(t *testing.T) {
	tools := &ToolSet{
		searcher: &fakeSearcher{results: []searchmodels.Result{
			{Title: "Remote trends", URL: "https://example.com/trends", Snippet: "hybrid is up"},
			{Title: "Focus time", URL: "https://example.com/focus", Snippet: "fewer meetings"},
		}},
		searchTimeout: time.Second,
		maxResults:    5,
	}

	out, err := tools.Invoke(context.Background(), CapabilitySearch, "remote work")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	for _, want := range []string{"Remote trends", "https://example.com/focus", "hybrid is up"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestInvokeScrapeReturnsPageText(t *testing.T) {
	tools := &ToolSet{
		fetcher: &fakeFetcher{pages: map[string]string{
			"https://example.com/trends": "long form analysis of hybrid schedules",
		}},
	}

	out, err := tools.Invoke(context.Background(), CapabilityScrape, "https://example.com/trends")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out != "long form analysis of hybrid schedules" {
		t.Fatalf("output = %q", out)
	}
}

func TestInvokeSurfacesToolErrors(t *testing.T) {
	tools := &ToolSet{
		searcher:      &fakeSearcher{err: errors.New("provider returned 503")},
		searchTimeout: time.Second,
	}
	if _, err := tools.Invoke(context.Background(), CapabilitySearch, "remote work"); err == nil {
		t.Fatalf("expected search error")
	}
	if _, err := tools.Invoke(context.Background(), CapabilityScrape, "https://example.com"); err == nil {
		t.Fatalf("expected error for unconfigured scrape")
	}
}

func TestInvokeUnknownCapability(t *testing.T) {
	tools := &ToolSet{searcher: &fakeSearcher{}, searchTimeout: time.Second}
	_, err := tools.Invoke(context.Background(), Capability("summarize"), "anything")
	if err == nil || !strings.Contains(err.Error(), "unknown capability") {
		t.Fatalf("err = %v, want unknown capability", err)
	}
}

func TestResearcherScrapeLimitComesFromToolSet(t *testing.T) {
	tools := &ToolSet{maxPages: 2}
	r := NewResearcher(testAgentConfig(), constantProvider("unused"), tools)
	if r.maxScrape != 2 {
		t.Fatalf("maxScrape = %d, want 2", r.maxScrape)
	}
}
