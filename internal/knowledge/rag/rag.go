package rag

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mvp-joe/cortex-rag/internal/knowledge"
	"github.com/mvp-joe/cortex-rag/internal/knowledge/chunk"
	"github.com/mvp-joe/cortex-rag/internal/knowledge/embeddings"
	"github.com/mvp-joe/cortex-rag/internal/knowledge/metadata"
	"github.com/mvp-joe/cortex-rag/internal/llm"
	"github.com/mvp-joe/cortex-rag/internal/storage/vecstore"
)

// confidenceThreshold is the max-score floor below which the system
// prompt gains a cautionary clause. It never filters results;
// MinRelevanceScore (embeddings.Config, per-provider) does that job.
const confidenceThreshold = 0.30

// maxSnippetLength bounds SourceRef.Snippet.
const maxSnippetLength = 150

const noInformationAnswer = "I don't have enough information in the knowledge base to answer that question."

// SourceRef is a user-facing citation for one retrieved chunk.
type SourceRef struct {
	Source   string
	Location string
	Snippet  string
}

// Response is one answered query: the synthesized answer plus the
// citations it was grounded in.
type Response struct {
	Answer        string
	Sources       []SourceRef
	MaxScore      float32
	LowConfidence bool
}

// Searcher is the subset of vecstore.Index that Ask needs, small
// enough that callers can pass an already-open Base.Index.
type Searcher interface {
	Search(ctx context.Context, queryVec []float32, k int) ([]vecstore.SearchResult, error)
}

// AskOptions configures one Ask run.
type AskOptions struct {
	Query      string
	TopK       int
	Predicates Predicates // caller-supplied, or AutoDerivePredicates(Query) if opted in
}

// Ask embeds the query, searches idx, applies the Retrieval Filter,
// and — if any chunks survive — builds a grounded prompt and drives
// client to synthesize an answer. An empty post-filter result set is
// not an error: it returns the canonical no-information Response.
func Ask(ctx context.Context, idx Searcher, provider embeddings.Provider, client llm.Client, model string, opts AskOptions) (Response, error) {
	queryVec, err := embeddings.Embed(ctx, provider, opts.Query)
	if err != nil {
		return Response{}, err
	}

	// TopK of zero is honored (empty retrieval, canonical no-information
	// answer); only a negative value falls back to the default.
	topK := opts.TopK
	if topK < 0 {
		topK = 5
	}
	raw, err := idx.Search(ctx, queryVec, topK)
	if err != nil {
		return Response{}, err
	}

	filtered := Filter(raw, FilterOptions{
		MinRelevanceScore: embeddings.DefaultMinRelevanceScore(provider.ProviderName()),
		MaxResults:        topK,
		Predicates:        opts.Predicates,
		CandidateIDs:      candidateIDs(idx, opts.Predicates),
	})

	if len(filtered) == 0 {
		return Response{
			Answer:        noInformationAnswer,
			Sources:       nil,
			MaxScore:      0,
			LowConfidence: true,
		}, nil
	}

	maxScore := filtered[0].Score
	for _, r := range filtered {
		if r.Score > maxScore {
			maxScore = r.Score
		}
	}
	lowConfidence := maxScore < confidenceThreshold

	contextText := buildContext(filtered)
	system := buildSystemPrompt(lowConfidence)

	temp := float32(0.3)
	maxTokens := 1000
	resp, err := client.Complete(ctx, llm.Request{
		Prompt:      fmt.Sprintf("%s\n\nQuestion: %s", contextText, opts.Query),
		Model:       model,
		System:      system,
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return Response{}, knowledge.NewError(knowledge.KindLLMFailed, err)
	}

	return Response{
		Answer:        resp.Content,
		Sources:       buildSourceRefs(filtered),
		MaxScore:      maxScore,
		LowConfidence: lowConfidence,
	}, nil
}

// predicatePushdown is the optional capability a Searcher may offer:
// resolving metadata predicates directly in SQL instead of loading
// every candidate chunk and evaluating Predicates in Go. vecstore.SQLite
// implements it; the in-memory vecstore.Memory backend does not, and
// Ask falls back to Filter's per-result Predicates evaluation.
type predicatePushdown interface {
	CandidateIDs(vecstore.MetadataFilter) (map[string]bool, error)
}

// candidateIDs resolves p against idx's typed columns when idx supports
// pushdown, returning nil (meaning "no pushdown, filter in memory")
// when p is empty, idx doesn't implement predicatePushdown, or the
// pushdown query itself fails — pushdown is an optimization, never a
// correctness requirement, so a failure here is silently ignored in
// favor of the always-correct in-memory path.
func candidateIDs(idx Searcher, p Predicates) map[string]bool {
	if p.empty() {
		return nil
	}
	// Tags live in a JSON column the pushdown cannot match against, so
	// any tag predicate forces the in-memory path for the whole set.
	if len(p.Tags) > 0 {
		return nil
	}
	pd, ok := idx.(predicatePushdown)
	if !ok {
		return nil
	}
	ids, err := pd.CandidateIDs(vecstore.MetadataFilter{
		FileTypes:     fileTypeStrings(p.FileTypes),
		Languages:     languageStrings(p.Languages),
		CreatedAfter:  p.CreatedAfter,
		ModifiedAfter: p.ModifiedAfter,
	})
	if err != nil {
		return nil
	}
	return ids
}

func fileTypeStrings(ts []metadata.FileType) []string {
	if len(ts) == 0 {
		return nil
	}
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = string(t)
	}
	return out
}

func languageStrings(ls []metadata.Language) []string {
	if len(ls) == 0 {
		return nil
	}
	out := make([]string, len(ls))
	for i, l := range ls {
		out[i] = string(l)
	}
	return out
}

// buildContext joins each chunk's text, prefixed with "[Document N]",
// separated by the fixed delimiter.
func buildContext(results []vecstore.SearchResult) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n---\n\n")
		}
		b.WriteString("[Document ")
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString("]\n")
		b.WriteString(r.Chunk.Text)
	}
	return b.String()
}

// ParseContext recovers the original chunk texts, in order, from a
// string built by buildContext.
func ParseContext(context string) []string {
	sections := strings.Split(context, "\n\n---\n\n")
	out := make([]string, 0, len(sections))
	for _, s := range sections {
		idx := strings.IndexByte(s, '\n')
		if idx < 0 || !strings.HasPrefix(s, "[Document ") {
			out = append(out, s)
			continue
		}
		out = append(out, s[idx+1:])
	}
	return out
}

// buildSystemPrompt composes the grounding instructions; a cautionary
// clause is appended when confidence is low.
func buildSystemPrompt(lowConfidence bool) string {
	var b strings.Builder
	b.WriteString("Answer the question using only the information in the provided context. ")
	b.WriteString("Do not mention the retrieval mechanism, document numbers, or that you were given context. ")
	b.WriteString("If the context does not contain enough information to answer, say so explicitly: \"")
	b.WriteString(noInformationAnswer)
	b.WriteString("\"")
	if lowConfidence {
		b.WriteString(" The retrieved context has low relevance to the question; be explicit about your uncertainty and avoid overstating confidence in the answer.")
	}
	return b.String()
}

// buildSourceRefs maps retrieved chunks to user-facing SourceRefs,
// deduplicated by (source, location) preserving first-seen order.
func buildSourceRefs(results []vecstore.SearchResult) []SourceRef {
	seen := map[string]bool{}
	var out []SourceRef
	for _, r := range results {
		ref := toSourceRef(r.Chunk)
		key := ref.Source + "\x00" + ref.Location
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, ref)
	}
	return out
}

func toSourceRef(c chunk.Chunk) SourceRef {
	source := c.FileName
	if source == "" {
		if seg := lastPathSegment(c.SourceID); seg != c.SourceID {
			source = seg
		} else if len(c.SourceID) > 12 {
			// A bare UUID with no path structure: truncate it.
			source = c.SourceID[:12] + "…"
		} else {
			source = c.SourceID
		}
	}

	var location string
	switch {
	case c.LineStart >= 0 && c.LineEnd >= 0:
		location = fmt.Sprintf("lines %d-%d", c.LineStart, c.LineEnd)
	case c.ByteStart >= 0 && c.ByteEnd >= 0:
		location = fmt.Sprintf("byte offset %d-%d", c.ByteStart, c.ByteEnd)
	default:
		location = fmt.Sprintf("position %d", c.Position)
	}

	return SourceRef{
		Source:   source,
		Location: location,
		Snippet:  truncateSnippet(c.Text),
	}
}

func lastPathSegment(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[i+1:]
		}
	}
	return path
}

// truncateSnippet truncates text at the last whitespace within
// maxSnippetLength bytes, appending an ellipsis when truncated.
func truncateSnippet(text string) string {
	if len(text) <= maxSnippetLength {
		return text
	}
	cut := text[:maxSnippetLength]
	if idx := strings.LastIndexAny(cut, " \t\n"); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "…"
}
