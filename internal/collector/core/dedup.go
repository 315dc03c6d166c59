package core

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"unicode/utf8"
)

const mergedTitleMaxLen = 100

// SimilarityEngine collapses near-duplicate news items. Deduplication is
// best-effort: any engine-level failure returns the input unchanged, since
// duplicates in the output are preferable to lost items.
type SimilarityEngine struct {
	embedder Embedder
	model    TextModel
	cache    EmbeddingCache
	logger   *log.Logger
}

func NewSimilarityEngine(embedder Embedder, model TextModel, cache EmbeddingCache, logger *log.Logger) *SimilarityEngine {
	if logger == nil {
		logger = log.Default()
	}
	return &SimilarityEngine{embedder: embedder, model: model, cache: cache, logger: logger}
}

// Deduplicate clusters items by embedding similarity and merges each cluster
// into one item.
//
// The clustering is a greedy single pass in input order: each unabsorbed
// item absorbs every later unabsorbed item whose similarity meets the
// threshold. Absorbed items are never reconsidered as seeds, so the result
// is order-dependent and non-transitive. Downstream consumers rely on this
// exact grouping behavior; do not replace it with transitive closure.
func (e *SimilarityEngine) Deduplicate(ctx context.Context, items []NewsItem, threshold float64) []NewsItem {
	if len(items) < 2 {
		return items
	}

	texts := make([]string, len(items))
	for i, it := range items {
		texts[i] = it.Title + "\n" + it.Summary
	}
	vecs, err := e.embedTexts(ctx, texts)
	if err != nil {
		derr := &DeduplicationError{Stage: "embedding", Err: err}
		e.logger.Printf("%v; returning original items without deduplication", derr)
		return items
	}

	absorbed := make([]bool, len(items))
	out := make([]NewsItem, 0, len(items))
	for i := range items {
		if absorbed[i] {
			continue
		}
		cluster := []int{i}
		for j := i + 1; j < len(items); j++ {
			if absorbed[j] {
				continue
			}
			if Similarity(vecs[i], vecs[j]) >= threshold {
				cluster = append(cluster, j)
				absorbed[j] = true
			}
		}
		if len(cluster) == 1 {
			out = append(out, items[i])
			continue
		}
		e.logger.Printf("merging %d similar items for topic %q", len(cluster), items[i].Topic)
		merged := items[cluster[0]]
		for _, j := range cluster[1:] {
			merged = e.merge(ctx, merged, items[j])
		}
		out = append(out, merged)
	}
	return out
}

// embedTexts computes one vector per text, consulting the optional cache.
func (e *SimilarityEngine) embedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	var missing []int
	for i, t := range texts {
		if e.cache != nil {
			if v, ok := e.cache.Get(ctx, t); ok {
				vecs[i] = v
				continue
			}
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return vecs, nil
	}

	batch := make([]string, len(missing))
	for k, i := range missing {
		batch[k] = texts[i]
	}
	fresh, err := e.embedder.Embed(ctx, batch)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(batch) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(fresh), len(batch))
	}
	for k, i := range missing {
		vecs[i] = fresh[k]
		if e.cache != nil {
			e.cache.Set(ctx, texts[i], fresh[k])
		}
	}
	return vecs, nil
}

// Similarity is cosine similarity rescaled from [-1,1] to [0,1]. Zero-norm
// vectors yield 0.
func Similarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return (cos + 1) / 2
}

const mergePromptTemplate = `You are tasked with merging two similar news items into one comprehensive item.

**News Item 1:**
Title: %s
Summary: %s
Sources: %s
Published Date: %s

**News Item 2:**
Title: %s
Summary: %s
Sources: %s
Published Date: %s

Please merge these into a single news item that:
1. Creates a new title that best captures both articles (max 15 words)
2. Combines information from both summaries into a comprehensive summary (150-250 words)
3. Combines all unique sources from both items
4. Uses the more recent published date if available

Return your response in this exact format:
TITLE: [merged title]
SUMMARY: [merged summary]
SOURCES: [comma-separated list of all unique URLs]
PUBLISHED_DATE: [more recent date or 'Unknown' if both are unknown]`

// merge folds two similar items into one via the model, falling back to a
// deterministic merge on any failure. The source union always contains every
// URL from both inputs, whatever the model returns.
func (e *SimilarityEngine) merge(ctx context.Context, a, b NewsItem) NewsItem {
	if e.model == nil {
		return fallbackMerge(a, b)
	}

	prompt := fmt.Sprintf(mergePromptTemplate,
		a.Title, a.Summary, strings.Join(a.Sources, ", "), orUnknown(a.PublishedDate),
		b.Title, b.Summary, strings.Join(b.Sources, ", "), orUnknown(b.PublishedDate),
	)
	raw, err := e.model.Generate(ctx, prompt)
	if err != nil {
		e.logger.Printf("merge model call failed: %v; using simple merge", err)
		return fallbackMerge(a, b)
	}

	title, summary, sources, date := parseMergeResponse(raw)

	allSources := unionSources(a.Sources, b.Sources)
	if len(sources) > 0 {
		allSources = unionSources(allSources, sources)
	}
	if title == "" {
		title = truncate(a.Title+" / "+b.Title, mergedTitleMaxLen)
	}
	if summary == "" {
		summary = a.Summary + "\n\n" + b.Summary
	}
	if date == "" {
		date = firstNonEmpty(a.PublishedDate, b.PublishedDate)
	}

	return NewsItem{
		Title:         title,
		Summary:       summary,
		Sources:       allSources,
		PublishedDate: date,
		Topic:         a.Topic,
		Groups:        a.Groups,
	}
}

// parseMergeResponse reads the TITLE/SUMMARY/SOURCES/PUBLISHED_DATE line
// format. Summary continuation lines are folded in.
func parseMergeResponse(raw string) (title, summary string, sources []string, date string) {
	section := ""
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "TITLE:"):
			title = strings.TrimSpace(strings.TrimPrefix(line, "TITLE:"))
			section = "title"
		case strings.HasPrefix(line, "SUMMARY:"):
			summary = strings.TrimSpace(strings.TrimPrefix(line, "SUMMARY:"))
			section = "summary"
		case strings.HasPrefix(line, "SOURCES:"):
			for _, s := range strings.Split(strings.TrimPrefix(line, "SOURCES:"), ",") {
				if s = strings.TrimSpace(s); s != "" {
					sources = append(sources, s)
				}
			}
			section = "sources"
		case strings.HasPrefix(line, "PUBLISHED_DATE:"):
			date = strings.TrimSpace(strings.TrimPrefix(line, "PUBLISHED_DATE:"))
			if strings.EqualFold(date, "unknown") {
				date = ""
			}
			section = "date"
		case line != "" && section == "summary":
			summary += " " + line
		}
	}
	return title, summary, sources, date
}

// fallbackMerge is the deterministic merge used when the model is
// unavailable or its response cannot be used.
func fallbackMerge(a, b NewsItem) NewsItem {
	return NewsItem{
		Title:         truncate(a.Title+" / "+b.Title, mergedTitleMaxLen),
		Summary:       a.Summary + "\n\n" + b.Summary,
		Sources:       unionSources(a.Sources, b.Sources),
		PublishedDate: firstNonEmpty(a.PublishedDate, b.PublishedDate),
		Topic:         a.Topic,
		Groups:        a.Groups,
	}
}

// unionSources de-duplicates while keeping first-seen order.
func unionSources(lists ...[]string) []string {
	seen := map[string]bool{}
	var out []string
	for _, list := range lists {
		for _, s := range list {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
