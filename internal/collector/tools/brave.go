package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mohammad-safakhou/newscollector/config"
	"github.com/mohammad-safakhou/newscollector/internal/collector/core"
)

const braveEndpoint = "https://api.search.brave.com/res/v1/web/search"

// BraveSearch queries the Brave Search API. The free tier allows roughly one
// request per 1.5s, so calls are serialized through a per-backend limiter;
// 429 responses retry with exponential backoff, and exhausting the retries
// fails the call. Callers treat that as a hard tool failure rather than an
// empty result.
type BraveSearch struct {
	cfg      config.BraveConfig
	endpoint string
	limiter  *RateLimiter
	client   *http.Client
	sleep    func(ctx context.Context, d time.Duration) error
	logger   *log.Logger
}

func NewBraveSearch(cfg config.BraveConfig, logger *log.Logger) *BraveSearch {
	if cfg.Count <= 0 {
		cfg.Count = 8
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 1500 * time.Millisecond
	}
	if logger == nil {
		logger = log.Default()
	}
	return &BraveSearch{
		cfg:      cfg,
		endpoint: braveEndpoint,
		limiter:  NewRateLimiter(),
		client:   &http.Client{Timeout: cfg.Timeout},
		sleep:    sleepCtx,
		logger:   logger,
	}
}

func (b *BraveSearch) Spec() core.ToolSpec {
	return core.ToolSpec{
		Name:        "brave_search",
		Description: "A web search engine. Useful for finding recent news and answering questions about current events. Input should be a search query.",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"query":{"type":"string","description":"The search query"}},"required":["query"]}`),
	}
}

func (b *BraveSearch) Call(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if in.Query == "" {
		return "", fmt.Errorf("query must not be empty")
	}

	for attempt := 0; attempt < b.cfg.MaxRetries; attempt++ {
		results, status, err := b.request(ctx, in.Query)
		if err != nil {
			return "", err
		}
		if status == http.StatusTooManyRequests {
			wait := time.Duration(1<<attempt) * time.Second
			b.logger.Printf("brave_search rate limited, waiting %s before retry %d/%d", wait, attempt+1, b.cfg.MaxRetries)
			if err := b.sleep(ctx, wait); err != nil {
				return "", err
			}
			continue
		}
		if status != http.StatusOK {
			return "", fmt.Errorf("brave_search: unexpected status %d", status)
		}
		return formatResults(results), nil
	}
	return "", &RateLimitError{Backend: "brave_search", Attempts: b.cfg.MaxRetries}
}

func (b *BraveSearch) request(ctx context.Context, query string) ([]searchResult, int, error) {
	if err := b.limiter.Acquire(ctx, b.cfg.MinInterval); err != nil {
		return nil, 0, err
	}
	defer b.limiter.Release()

	u := fmt.Sprintf("%s?q=%s&count=%d", b.endpoint, url.QueryEscape(query), b.cfg.Count)
	if b.cfg.Freshness != "" {
		u += "&freshness=" + b.cfg.Freshness
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.cfg.APIKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, nil
	}

	var raw struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
				Age         string `json:"age"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("brave_search: decoding response: %w", err)
	}

	var out []searchResult
	for i, r := range raw.Web.Results {
		if i >= b.cfg.Count {
			break
		}
		out = append(out, searchResult{Title: r.Title, URL: r.URL, Snippet: r.Description, Published: r.Age})
	}
	return out, resp.StatusCode, nil
}

type searchResult struct {
	Title     string
	URL       string
	Snippet   string
	Published string
}

func formatResults(results []searchResult) string {
	if len(results) == 0 {
		return "No results found."
	}
	var sb strings.Builder
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, r.Title)
		fmt.Fprintf(&sb, "   URL: %s\n", r.URL)
		if r.Published != "" {
			fmt.Fprintf(&sb, "   Published: %s\n", r.Published)
		}
		if r.Snippet != "" {
			fmt.Fprintf(&sb, "   %s\n", r.Snippet)
		}
	}
	return sb.String()
}
