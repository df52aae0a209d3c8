package agent

import (
	"strings"
	"testing"
)

func TestKeywordExtractorRanksSeedTermsFirst(t *testing.T) {
	e, err := newKeywordExtractor()
	if err != nil {
		t.Fatalf("newKeywordExtractor: %v", err)
	}

	body := strings.Repeat("hiring hiring async focus ", 10)
	got := e.Extract("remote work", body, 4)
	if len(got) != 4 {
		t.Fatalf("Extract returned %d terms, want 4: %v", len(got), got)
	}
	// Seed terms outrank body terms regardless of body frequency.
	if got[0] != "remote" && got[0] != "work" {
		t.Fatalf("top keyword = %q, want a topic term: %v", got[0], got)
	}
	if got[1] != "remote" && got[1] != "work" {
		t.Fatalf("second keyword = %q, want a topic term: %v", got[1], got)
	}
}

func TestKeywordExtractorFiltersStopwordsAndShortTerms(t *testing.T) {
	e, err := newKeywordExtractor()
	if err != nil {
		t.Fatalf("newKeywordExtractor: %v", err)
	}

	got := e.Extract("the a of", "it is the and of a to in", 10)
	if len(got) != 0 {
		t.Fatalf("Extract over stopwords = %v, want nothing", got)
	}

	got = e.Extract("go", "x y z", 10)
	if len(got) != 1 || got[0] != "go" {
		t.Fatalf("Extract = %v, want only the two-char term", got)
	}
}

func TestKeywordExtractorCapsAtK(t *testing.T) {
	e, err := newKeywordExtractor()
	if err != nil {
		t.Fatalf("newKeywordExtractor: %v", err)
	}
	got := e.Extract("alpha beta", "gamma delta epsilon zeta", 3)
	if len(got) != 3 {
		t.Fatalf("Extract returned %d terms, want 3: %v", len(got), got)
	}
	if got := e.Extract("alpha", "beta", 0); got != nil {
		t.Fatalf("Extract with k=0 = %v, want nil", got)
	}
}
