// Package rag implements retrieval filtering and answer orchestration:
// score-cutoff + metadata-predicate filtering over raw vector-index
// search results, prompt construction, and driving the LLM client to
// produce an answer grounded in the retrieved chunks.
package rag

import (
	"strings"
	"time"

	"github.com/mvp-joe/cortex-rag/internal/knowledge/metadata"
	"github.com/mvp-joe/cortex-rag/internal/storage/vecstore"
)

// Predicates are the optional metadata filters applied after the score
// cutoff. Each populated field is an any-of match; zero-value fields
// are not applied.
type Predicates struct {
	FileTypes     []metadata.FileType
	Languages     []metadata.Language
	Tags          []string
	CreatedAfter  time.Time
	ModifiedAfter time.Time
}

func (p Predicates) empty() bool {
	return len(p.FileTypes) == 0 && len(p.Languages) == 0 && len(p.Tags) == 0 &&
		p.CreatedAfter.IsZero() && p.ModifiedAfter.IsZero()
}

// FilterOptions configures one Retrieval Filter pass.
type FilterOptions struct {
	MinRelevanceScore float32
	MaxResults        int
	Predicates        Predicates

	// CandidateIDs, when non-nil, is a typed-column predicate pushdown
	// result computed directly in SQL (vecstore.SQLite.CandidateIDs):
	// a chunk not present in the set is dropped without ever running
	// the slower in-memory Predicates check. nil means "no pushdown
	// available"; fall back to evaluating Predicates per-result.
	CandidateIDs map[string]bool
}

// Filter applies the score cutoff, optional metadata predicates, and
// the result cap, in that order.
func Filter(results []vecstore.SearchResult, opts FilterOptions) []vecstore.SearchResult {
	out := make([]vecstore.SearchResult, 0, len(results))
	for _, r := range results {
		if r.Score < opts.MinRelevanceScore {
			continue
		}
		if opts.CandidateIDs != nil {
			if !opts.CandidateIDs[r.Chunk.ID] {
				continue
			}
		} else if !opts.Predicates.empty() && !matches(r, opts.Predicates) {
			continue
		}
		out = append(out, r)
	}

	limit := opts.MaxResults
	if limit <= 0 || limit > len(out) {
		limit = len(out)
	}
	return out[:limit]
}

func matches(r vecstore.SearchResult, p Predicates) bool {
	c := r.Chunk
	if len(p.FileTypes) > 0 && !containsFileType(p.FileTypes, c.FileType) {
		return false
	}
	if len(p.Languages) > 0 && !containsLanguage(p.Languages, c.Language) {
		return false
	}
	if len(p.Tags) > 0 && !anyTagMatches(p.Tags, c.Tags) {
		return false
	}
	if !p.CreatedAfter.IsZero() && c.CreatedAt.Before(p.CreatedAfter) {
		return false
	}
	if !p.ModifiedAfter.IsZero() && c.FileModifiedAt.Before(p.ModifiedAfter) {
		return false
	}
	return true
}

func containsFileType(set []metadata.FileType, v metadata.FileType) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func containsLanguage(set []metadata.Language, v metadata.Language) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func anyTagMatches(want, have []string) bool {
	set := make(map[string]bool, len(have))
	for _, t := range have {
		set[t] = true
	}
	for _, w := range want {
		if set[w] {
			return true
		}
	}
	return false
}

// codeHints and docHints drive auto-derived predicates from a query's
// text; callers opt in explicitly, disabled by default.
var codeHints = []string{"function", "class", "api", "method", "endpoint"}
var docHints = []string{"how to", "what is", "explain"}
var portugueseQueryHints = []string{"como", "o que", "por que", "qual"}

// AutoDerivePredicates applies a keyword heuristic over query to guess
// metadata predicates: code vocabulary narrows to FileCode, "how
// to"/"what is" phrasing narrows to prose file types, and common
// Portuguese interrogatives narrow to Portuguese-language chunks. The
// result is a hint, never a hard requirement imposed by the core.
func AutoDerivePredicates(query string) Predicates {
	lower := strings.ToLower(query)
	var p Predicates

	for _, h := range codeHints {
		if strings.Contains(lower, h) {
			p.FileTypes = append(p.FileTypes, metadata.FileCode)
			break
		}
	}
	for _, h := range docHints {
		if strings.Contains(lower, h) {
			p.FileTypes = append(p.FileTypes, metadata.FileMarkdown, metadata.FileText)
			break
		}
	}
	for _, h := range portugueseQueryHints {
		if strings.Contains(lower, " "+h+" ") || strings.HasPrefix(lower, h+" ") {
			p.Languages = append(p.Languages, metadata.LangPortuguese)
			break
		}
	}
	return p
}
