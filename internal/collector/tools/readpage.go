package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	readability "github.com/go-shiori/go-readability"

	"github.com/mohammad-safakhou/newscollector/config"
	"github.com/mohammad-safakhou/newscollector/internal/collector/core"
)

// ReadPage fetches a URL and extracts the readable article text, truncated to
// a configured character limit so a single page cannot blow up the model
// context.
type ReadPage struct {
	cfg    config.ReadPageConfig
	client *http.Client
	logger *log.Logger
}

func NewReadPage(cfg config.ReadPageConfig, logger *log.Logger) *ReadPage {
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 20000
	}
	if logger == nil {
		logger = log.Default()
	}
	return &ReadPage{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

func (p *ReadPage) Spec() core.ToolSpec {
	return core.ToolSpec{
		Name:        "read_page",
		Description: "Fetch a web page and return its readable article text. Use this to read the full content of a news article found via search.",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"url":{"type":"string","description":"The URL of the page to read"}},"required":["url"]}`),
	}
}

func (p *ReadPage) Call(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	pageURL, err := url.Parse(in.URL)
	if err != nil || pageURL.Scheme == "" || pageURL.Host == "" {
		return "", fmt.Errorf("read_page: invalid url %q", in.URL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", ddgUserAgents[0])

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("read_page: fetching %s: %w", pageURL.Host, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("read_page: unexpected status %d from %s", resp.StatusCode, pageURL.Host)
	}

	article, err := readability.FromReader(resp.Body, pageURL)
	if err != nil {
		return "", fmt.Errorf("read_page: extracting content: %w", err)
	}

	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return "No readable content found on the page.", nil
	}
	if len(text) > p.cfg.MaxChars {
		// Back up to a rune boundary so the cut never splits a multi-byte
		// character.
		cut := p.cfg.MaxChars
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + "\n[content truncated]"
	}
	if article.Title != "" {
		return fmt.Sprintf("Title: %s\n\n%s", article.Title, text), nil
	}
	return text, nil
}

// NewSearchTools assembles the tool set for the news worker. Brave is the
// primary search backend and only registers when an API key is configured;
// DuckDuckGo acts as a keyless fallback.
func NewSearchTools(cfg config.SearchConfig, logger *log.Logger) []core.ToolRunner {
	var runners []core.ToolRunner
	if cfg.Brave.APIKey != "" {
		runners = append(runners, NewBraveSearch(cfg.Brave, logger))
	} else {
		runners = append(runners, NewDuckDuckGoSearch(cfg.DuckDuckGo, logger))
	}
	runners = append(runners, NewReadPage(cfg.ReadPage, logger))
	return runners
}
