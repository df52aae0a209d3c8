package agent

import (
	"fmt"
	"sort"

	"github.com/blevesearch/bleve/analysis"
	"github.com/blevesearch/bleve/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/registry"
)

// keywordExtractor ranks terms by frequency after analysis (tokenization,
// lowercasing, English stopword removal).
type keywordExtractor struct {
	analyzer *analysis.Analyzer
}

func newKeywordExtractor() (*keywordExtractor, error) {
	cache := registry.NewCache()
	analyzer, err := cache.AnalyzerNamed(standard.Name)
	if err != nil {
		return nil, fmt.Errorf("standard analyzer: %w", err)
	}
	return &keywordExtractor{analyzer: analyzer}, nil
}

// Extract returns up to k keywords. Terms from the seed text (the topic)
// are weighted ahead of body terms so the topic's own words always rank.
func (e *keywordExtractor) Extract(seed, body string, k int) []string {
	if k <= 0 {
		return nil
	}
	const seedWeight = 1000

	freq := make(map[string]int)
	collect := func(text string, weight int) {
		for _, token := range e.analyzer.Analyze([]byte(text)) {
			term := string(token.Term)
			if len(term) < 2 {
				continue
			}
			freq[term] += weight
		}
	}
	collect(seed, seedWeight)
	collect(body, 1)

	terms := make([]string, 0, len(freq))
	for t := range freq {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool {
		if freq[terms[i]] != freq[terms[j]] {
			return freq[terms[i]] > freq[terms[j]]
		}
		return terms[i] < terms[j]
	})

	if len(terms) > k {
		terms = terms[:k]
	}
	return terms
}
