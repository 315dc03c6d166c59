package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/mohammad-safakhou/newscollector/config"
	"github.com/mohammad-safakhou/newscollector/internal/collector/core"
)

const ddgEndpoint = "https://html.duckduckgo.com/html/"

var ddgUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
}

// DuckDuckGoSearch scrapes the DuckDuckGo HTML endpoint. DuckDuckGo rate
// limits scraping aggressively, so requests are spaced with a progressive
// delay that grows with each attempt, and rate-limit responses back off
// exponentially. Unlike Brave, exhausting the retries degrades to an empty
// result instead of failing the tool call.
type DuckDuckGoSearch struct {
	cfg      config.DuckDuckGoConfig
	endpoint string
	limiter  *RateLimiter
	client   *http.Client
	sleep    func(ctx context.Context, d time.Duration) error
	logger   *log.Logger

	// attempt counts every request ever made against the backend. Tool
	// calls within a round run concurrently, so access goes through mu.
	mu      sync.Mutex
	attempt int
}

// takeAttempt returns the current attempt ordinal and advances the counter.
func (d *DuckDuckGoSearch) takeAttempt() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := d.attempt
	d.attempt++
	return n
}

func NewDuckDuckGoSearch(cfg config.DuckDuckGoConfig, logger *log.Logger) *DuckDuckGoSearch {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 8
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 15 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &DuckDuckGoSearch{
		cfg:      cfg,
		endpoint: ddgEndpoint,
		limiter:  NewRateLimiter(),
		client:   &http.Client{Timeout: cfg.Timeout},
		sleep:    sleepCtx,
		logger:   logger,
	}
}

func (d *DuckDuckGoSearch) Spec() core.ToolSpec {
	return core.ToolSpec{
		Name:        "duckduckgo_search",
		Description: "A web search engine. Useful for finding recent news and answering questions about current events. Input should be a search query.",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"query":{"type":"string","description":"The search query"}},"required":["query"]}`),
	}
}

func (d *DuckDuckGoSearch) Call(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if in.Query == "" {
		return "", fmt.Errorf("query must not be empty")
	}

	for attempt := 0; attempt < d.cfg.MaxRetries; attempt++ {
		// Progressive spacing: the interval between requests grows with
		// every attempt ever made against the backend.
		ordinal := d.takeAttempt()
		interval := time.Duration(float64(d.cfg.BaseDelay) * math.Pow(1.5, float64(ordinal)))
		results, limited, err := d.request(ctx, in.Query, interval, ordinal)
		if err != nil {
			return "", err
		}
		if limited {
			wait := time.Duration(5*(1<<attempt)) * time.Second
			d.logger.Printf("duckduckgo_search rate limited, waiting %s before retry %d/%d", wait, attempt+1, d.cfg.MaxRetries)
			if err := d.sleep(ctx, wait); err != nil {
				return "", err
			}
			continue
		}
		return formatResults(results), nil
	}
	d.logger.Printf("duckduckgo_search: retries exhausted, returning no results")
	return "No results found.", nil
}

func (d *DuckDuckGoSearch) request(ctx context.Context, query string, interval time.Duration, ordinal int) ([]searchResult, bool, error) {
	if err := d.limiter.Acquire(ctx, interval); err != nil {
		return nil, false, err
	}
	defer d.limiter.Release()

	u := d.endpoint + "?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("User-Agent", ddgUserAgents[ordinal%len(ddgUserAgents)])
	req.Header.Set("Accept", "text/html")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusTooManyRequests {
		return nil, true, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("duckduckgo_search: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, err
	}
	if strings.Contains(strings.ToLower(string(body)), "unable to process your request") {
		return nil, true, nil
	}

	results, err := parseDDGResults(strings.NewReader(string(body)), d.cfg.MaxResults)
	if err != nil {
		return nil, false, err
	}
	return results, false, nil
}

func parseDDGResults(r io.Reader, max int) ([]searchResult, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo_search: parsing response: %w", err)
	}
	var out []searchResult
	doc.Find("div.result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		link := s.Find("a.result__a").First()
		href, ok := link.Attr("href")
		if !ok {
			return true
		}
		out = append(out, searchResult{
			Title:   strings.TrimSpace(link.Text()),
			URL:     decodeDDGRedirect(href),
			Snippet: strings.TrimSpace(s.Find(".result__snippet").Text()),
		})
		return len(out) < max
	})
	return out, nil
}

// decodeDDGRedirect unwraps //duckduckgo.com/l/?uddg=... redirect links to
// the target URL. Anything that does not look like a redirect passes through.
func decodeDDGRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" && strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}
