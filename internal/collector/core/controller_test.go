package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRecencyWindow(t *testing.T) {
	cases := []struct {
		name   string
		groups []string
		want   int
	}{
		{"politics", []string{"politics"}, 2},
		{"technology", []string{"technology"}, 4},
		{"science", []string{"science"}, 7},
		{"health", []string{"health"}, 7},
		{"unknown group", []string{"culture"}, 2},
		{"empty groups", nil, 2},
		{"case insensitive", []string{"Politics"}, 2},
		{"priority over list order", []string{"science", "politics"}, 2},
	}
	for _, tc := range cases {
		if got := RecencyWindow(tc.groups, nil); got != tc.want {
			t.Fatalf("%s: expected %d days, got %d", tc.name, tc.want, got)
		}
	}
}

func TestRecencyWindowOverrides(t *testing.T) {
	overrides := map[string]int{"technology": 9, "default": 3}

	if got := RecencyWindow([]string{"technology"}, overrides); got != 9 {
		t.Fatalf("expected override to win, got %d", got)
	}
	if got := RecencyWindow([]string{"culture"}, overrides); got != 3 {
		t.Fatalf("expected default override, got %d", got)
	}
	// Overrides change day counts, never the priority order.
	if got := RecencyWindow([]string{"science", "technology"}, overrides); got != 9 {
		t.Fatalf("expected technology to keep priority, got %d", got)
	}
}

func TestExpandGroups(t *testing.T) {
	got := ExpandGroups([]string{"us", "technology"})
	want := []string{"us", "technology", "breaking news", "politics", "recent events", "recent developments", "latest news"}
	if len(got) != len(want) {
		t.Fatalf("expected %d groups, got %d (%v)", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("group %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestExpandGroupsNoBroadTag(t *testing.T) {
	got := ExpandGroups([]string{"science"})
	for _, g := range got {
		if g == "breaking news" {
			t.Fatalf("breaking news expansion should need a broad tag, got %v", got)
		}
	}
	if got[len(got)-1] != "latest news" {
		t.Fatalf("expected universal tags appended, got %v", got)
	}
}

func TestExpandGroupsDoesNotMutateInput(t *testing.T) {
	in := []string{"world"}
	_ = ExpandGroups(in)
	if len(in) != 1 || in[0] != "world" {
		t.Fatalf("input groups mutated: %v", in)
	}
}

func TestRouteAccumulatesAndAdvances(t *testing.T) {
	c := NewController(ControllerConfig{}, nil, nil, nil, nil, testLogger())
	st := &CollectionState{
		Topics: []TopicEntry{
			{Name: "ai", Info: TopicInfo{Groups: []string{"technology"}}},
			{Name: "elections", Info: TopicInfo{Groups: []string{"politics", "us"}}},
		},
	}

	first := c.route(st)
	if first.Kind != ActionProcessTopic || first.Topic != "ai" {
		t.Fatalf("expected first topic ai, got %+v", first)
	}
	if first.RecencyDays != 4 {
		t.Fatalf("expected 4 day window for technology, got %d", first.RecencyDays)
	}
	if st.TopicIndex != 1 {
		t.Fatalf("expected cursor at 1, got %d", st.TopicIndex)
	}

	st.CurrentItems = []NewsItem{{Title: "a", Topic: "ai"}}
	second := c.route(st)
	if second.Topic != "elections" {
		t.Fatalf("expected second topic elections, got %+v", second)
	}
	if len(st.Collections) != 1 || len(st.CurrentItems) != 0 {
		t.Fatalf("expected pending items accumulated, collections=%d current=%d",
			len(st.Collections), len(st.CurrentItems))
	}

	final := c.route(st)
	if final.Kind != ActionFinalize {
		t.Fatalf("expected finalize after last topic, got %+v", final)
	}
	// Accumulation with nothing pending is a no-op.
	again := c.route(st)
	if again.Kind != ActionFinalize || len(st.Collections) != 1 {
		t.Fatalf("expected idempotent finalize, got %+v with %d collections", again, len(st.Collections))
	}
}

type scriptedWorker struct {
	items map[string][]NewsItem
	fail  map[string]bool
	runs  []string
}

func (w *scriptedWorker) Run(ctx context.Context, state interface{}) error {
	st := state.(*CollectionState)
	w.runs = append(w.runs, st.CurrentTopic)
	if w.fail[st.CurrentTopic] {
		return errors.New("worker blew up")
	}
	st.CurrentItems = w.items[st.CurrentTopic]
	return nil
}

type recordingSaver struct {
	saved map[string]SavedTopic
}

func (s *recordingSaver) Save(collection map[string]SavedTopic) (string, error) {
	s.saved = collection
	return "collections.yaml", nil
}

func writeTopicsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "topics.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing topics file: %v", err)
	}
	return path
}

func TestControllerRun(t *testing.T) {
	path := writeTopicsFile(t, "ai:\n  groups: [technology]\nelections:\n  groups: [politics, us]\n")

	worker := &scriptedWorker{items: map[string][]NewsItem{
		"ai":        {{Title: "model released", Topic: "ai", Sources: []string{"https://a"}}},
		"elections": {{Title: "vote counted", Topic: "elections", Sources: []string{"https://b"}}},
	}}
	saver := &recordingSaver{}

	c := NewController(ControllerConfig{
		TopicsFile:          path,
		SimilarityThreshold: 0.95,
		MaxItemsPerTopic:    20,
	}, worker, nil, saver, nil, testLogger())

	st, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if len(worker.runs) != 2 || worker.runs[0] != "ai" || worker.runs[1] != "elections" {
		t.Fatalf("expected topics processed in file order, got %v", worker.runs)
	}
	if len(st.Collections) != 2 {
		t.Fatalf("expected 2 collected items, got %d", len(st.Collections))
	}
	if st.MaxItemsPerTopic != 20 {
		t.Fatalf("expected max items carried into state, got %d", st.MaxItemsPerTopic)
	}
	if st.RunID == "" {
		t.Fatalf("expected a run id")
	}
	if len(saver.saved) != 2 {
		t.Fatalf("expected 2 topics saved, got %d", len(saver.saved))
	}
	if len(saver.saved["ai"].News) != 1 || saver.saved["ai"].News[0].Title != "model released" {
		t.Fatalf("unexpected saved ai topic: %+v", saver.saved["ai"])
	}
}

func TestControllerRunWorkerFailureCostsOnlyThatTopic(t *testing.T) {
	path := writeTopicsFile(t, "ai:\n  groups: [technology]\nelections:\n  groups: [politics]\n")

	worker := &scriptedWorker{
		items: map[string][]NewsItem{
			"elections": {{Title: "vote counted", Topic: "elections"}},
		},
		fail: map[string]bool{"ai": true},
	}
	saver := &recordingSaver{}

	c := NewController(ControllerConfig{TopicsFile: path}, worker, nil, saver, nil, testLogger())
	st, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("worker failure must not abort the run: %v", err)
	}
	if len(worker.runs) != 2 {
		t.Fatalf("expected both topics attempted, got %v", worker.runs)
	}
	if len(st.Collections) != 1 || st.Collections[0].Topic != "elections" {
		t.Fatalf("expected only elections items, got %+v", st.Collections)
	}
}

func TestControllerRunLoadFailureIsFatal(t *testing.T) {
	c := NewController(ControllerConfig{TopicsFile: ""}, &scriptedWorker{}, nil, nil, nil, testLogger())
	_, err := c.Run(context.Background())
	if err == nil {
		t.Fatalf("expected error for missing topics file")
	}
	var cerr *ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConfigError, got %T: %v", err, err)
	}
}

func TestControllerRunSkipsSaveWhenEmpty(t *testing.T) {
	path := writeTopicsFile(t, "ai:\n  groups: [technology]\n")
	worker := &scriptedWorker{}
	saver := &recordingSaver{}

	c := NewController(ControllerConfig{TopicsFile: path}, worker, nil, saver, nil, testLogger())
	if _, err := c.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saver.saved != nil {
		t.Fatalf("expected no save on empty run, got %+v", saver.saved)
	}
}

func TestControllerRunScratchFields(t *testing.T) {
	path := writeTopicsFile(t, "markets:\n  groups: [us]\n")
	var seenGroups []string
	var seenDays int
	worker := workerFunc(func(ctx context.Context, state interface{}) error {
		st := state.(*CollectionState)
		seenGroups = st.CurrentGroups
		seenDays = st.RecencyDays
		return nil
	})

	c := NewController(ControllerConfig{TopicsFile: path}, worker, nil, nil, nil, testLogger())
	if _, err := c.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seenDays != 2 {
		t.Fatalf("expected default window for broad tag, got %d", seenDays)
	}
	joined := strings.Join(seenGroups, ",")
	if !strings.Contains(joined, "breaking news") || !strings.Contains(joined, "latest news") {
		t.Fatalf("expected expanded groups in worker state, got %v", seenGroups)
	}
}

type workerFunc func(ctx context.Context, state interface{}) error

func (f workerFunc) Run(ctx context.Context, state interface{}) error { return f(ctx, state) }
