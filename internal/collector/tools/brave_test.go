package tools

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mohammad-safakhou/newscollector/config"
)

func newTestBrave(t *testing.T, handler http.HandlerFunc) (*BraveSearch, *httptest.Server, *[]time.Duration) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	b := NewBraveSearch(config.BraveConfig{
		APIKey:      "test-key",
		Count:       3,
		Freshness:   "pw",
		MaxRetries:  3,
		MinInterval: time.Nanosecond,
	}, testLogger())
	b.endpoint = srv.URL

	var slept []time.Duration
	b.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return b, srv, &slept
}

func braveArgs(query string) json.RawMessage {
	return json.RawMessage(`{"query":"` + query + `"}`)
}

func TestBraveSearchFormatsResults(t *testing.T) {
	var gotToken, gotQuery, gotFreshness string
	b, _, _ := newTestBrave(t, func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Subscription-Token")
		gotQuery = r.URL.Query().Get("q")
		gotFreshness = r.URL.Query().Get("freshness")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"web": map[string]interface{}{
				"results": []map[string]string{
					{"title": "First story", "url": "https://one", "description": "d1", "age": "2 days ago"},
					{"title": "Second story", "url": "https://two", "description": "d2"},
				},
			},
		})
	})

	out, err := b.Call(context.Background(), braveArgs("ai news"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotToken != "test-key" {
		t.Fatalf("expected subscription token header, got %q", gotToken)
	}
	if gotQuery != "ai news" || gotFreshness != "pw" {
		t.Fatalf("unexpected query params: q=%q freshness=%q", gotQuery, gotFreshness)
	}
	if !strings.Contains(out, "1. First story") || !strings.Contains(out, "URL: https://one") {
		t.Fatalf("unexpected formatted output:\n%s", out)
	}
	if !strings.Contains(out, "Published: 2 days ago") {
		t.Fatalf("expected age line for first result:\n%s", out)
	}
}

func TestBraveSearchRetriesOn429ThenSucceeds(t *testing.T) {
	attempts := 0
	b, _, slept := newTestBrave(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"web": map[string]interface{}{
				"results": []map[string]string{{"title": "ok", "url": "https://ok"}},
			},
		})
	})

	out, err := b.Call(context.Background(), braveArgs("q"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	// Backoff doubles per attempt: 1s then 2s.
	if len(*slept) != 2 || (*slept)[0] != time.Second || (*slept)[1] != 2*time.Second {
		t.Fatalf("unexpected backoff schedule: %v", *slept)
	}
	if !strings.Contains(out, "ok") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestBraveSearchExhaustedRetriesIsFatal(t *testing.T) {
	b, _, _ := newTestBrave(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := b.Call(context.Background(), braveArgs("q"))
	if err == nil {
		t.Fatalf("expected error after retry exhaustion")
	}
	var rlErr *RateLimitError
	if !errors.As(err, &rlErr) {
		t.Fatalf("expected RateLimitError, got %T: %v", err, err)
	}
	if rlErr.Backend != "brave_search" || rlErr.Attempts != 3 {
		t.Fatalf("unexpected error detail: %+v", rlErr)
	}
}

func TestBraveSearchUnexpectedStatus(t *testing.T) {
	b, _, _ := newTestBrave(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	if _, err := b.Call(context.Background(), braveArgs("q")); err == nil {
		t.Fatalf("expected error for non-429 failure status")
	}
}

func TestBraveSearchRespectsCountLimit(t *testing.T) {
	b, _, _ := newTestBrave(t, func(w http.ResponseWriter, r *http.Request) {
		results := make([]map[string]string, 10)
		for i := range results {
			results[i] = map[string]string{"title": "t", "url": "https://u"}
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"web": map[string]interface{}{"results": results},
		})
	})

	out, err := b.Call(context.Background(), braveArgs("q"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(out, "4. ") {
		t.Fatalf("expected at most 3 results, got:\n%s", out)
	}
}

func TestBraveSearchRejectsBadArguments(t *testing.T) {
	b, _, _ := newTestBrave(t, func(w http.ResponseWriter, r *http.Request) {})
	if _, err := b.Call(context.Background(), json.RawMessage(`{`)); err == nil {
		t.Fatalf("expected error for malformed arguments")
	}
	if _, err := b.Call(context.Background(), json.RawMessage(`{"query":""}`)); err == nil {
		t.Fatalf("expected error for empty query")
	}
}
