package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mohammad-safakhou/copydesk/config"
	"github.com/mohammad-safakhou/copydesk/internal/telemetry"
	"github.com/mohammad-safakhou/copydesk/tools/web_fetch"
	fetchmodels "github.com/mohammad-safakhou/copydesk/tools/web_fetch/models"
	"github.com/mohammad-safakhou/copydesk/tools/web_search"
	searchmodels "github.com/mohammad-safakhou/copydesk/tools/web_search/models"
)

// Capability names an external tool a stage may invoke.
type Capability string

const (
	CapabilitySearch Capability = "search"
	CapabilityScrape Capability = "scrape"
)

// ToolSet bundles the external capabilities available to agents. Every call
// carries a bounded timeout so a stalled provider cannot block a run.
type ToolSet struct {
	searcher      web_search.WebSearcher
	fetcher       web_fetch.WebFetcher
	searchTimeout time.Duration
	maxResults    int
	maxPages      int
	fetchEnabled  bool
}

// NewToolSet builds the tool adapters from configuration. A missing search
// API key disables search rather than failing startup; agents surface the
// gap as a tool error only when they actually need the capability.
func NewToolSet(cfg config.ToolsConfig) (*ToolSet, error) {
	ts := &ToolSet{
		searchTimeout: cfg.Search.Timeout,
		maxResults:    cfg.Search.MaxResults,
		maxPages:      cfg.Fetch.MaxPages,
		fetchEnabled:  cfg.Fetch.Enabled,
	}
	if cfg.Search.APIKey != "" {
		searcher, err := web_search.NewWebSearcher(web_search.Provider(cfg.Search.Provider), cfg.Search.APIKey)
		if err != nil {
			return nil, fmt.Errorf("search provider: %w", err)
		}
		ts.searcher = searcher
	}
	if cfg.Fetch.Enabled {
		fetcher, err := web_fetch.NewWebFetcher(web_fetch.ChromedpFetcherType, cfg.Fetch.Timeout, cfg.Fetch.MaxChars)
		if err != nil {
			return nil, fmt.Errorf("fetcher: %w", err)
		}
		ts.fetcher = fetcher
	}
	return ts, nil
}

// Search runs a web search for the query.
func (t *ToolSet) Search(ctx context.Context, query string) ([]searchmodels.Result, error) {
	if t.searcher == nil {
		return nil, fmt.Errorf("search capability not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, t.searchTimeout)
	defer cancel()
	results, err := t.searcher.Discover(ctx, query, t.maxResults)
	if err != nil {
		telemetry.ToolCalls.WithLabelValues(string(CapabilitySearch), "error").Inc()
		return nil, fmt.Errorf("web search %q: %w", query, err)
	}
	telemetry.ToolCalls.WithLabelValues(string(CapabilitySearch), "ok").Inc()
	return results, nil
}

// Scrape fetches and extracts readable text from a page. The per-call
// timeout lives inside the fetcher.
func (t *ToolSet) Scrape(ctx context.Context, url string) (fetchmodels.Result, error) {
	if t.fetcher == nil {
		return fetchmodels.Result{}, fmt.Errorf("scrape capability not configured")
	}
	res, err := t.fetcher.Exec(ctx, url)
	if err != nil {
		telemetry.ToolCalls.WithLabelValues(string(CapabilityScrape), "error").Inc()
		return res, fmt.Errorf("scrape %s: %w", url, err)
	}
	telemetry.ToolCalls.WithLabelValues(string(CapabilityScrape), "ok").Inc()
	return res, nil
}

// Invoke dispatches a capability by name, for generic callers that only
// speak capability + query.
func (t *ToolSet) Invoke(ctx context.Context, capability Capability, query string) (string, error) {
	switch capability {
	case CapabilitySearch:
		results, err := t.Search(ctx, query)
		if err != nil {
			return "", err
		}
		var b strings.Builder
		for _, r := range results {
			fmt.Fprintf(&b, "%s\n%s\n%s\n\n", r.Title, r.URL, r.Snippet)
		}
		return b.String(), nil
	case CapabilityScrape:
		res, err := t.Scrape(ctx, query)
		if err != nil {
			return "", err
		}
		return res.Text, nil
	default:
		return "", fmt.Errorf("unknown capability %q", capability)
	}
}

// HasSearch reports whether the search capability is available.
func (t *ToolSet) HasSearch() bool { return t.searcher != nil }

// HasScrape reports whether the scrape capability is available.
func (t *ToolSet) HasScrape() bool { return t.fetcher != nil }
