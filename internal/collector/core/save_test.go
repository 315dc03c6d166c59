package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestGroupByTopic(t *testing.T) {
	items := []NewsItem{
		{Title: "a", Topic: "space", Groups: []string{"science"}, Sources: []string{"https://a"}},
		{Title: "b", Topic: "markets", Groups: []string{"us"}},
		{Title: "c", Topic: "space", Groups: []string{"science"}},
	}
	grouped := GroupByTopic(items)
	if len(grouped) != 2 {
		t.Fatalf("expected 2 topics, got %d", len(grouped))
	}
	space := grouped["space"]
	if len(space.News) != 2 || space.News[0].Title != "a" || space.News[1].Title != "c" {
		t.Fatalf("unexpected space group: %+v", space)
	}
	if len(space.Groups) != 1 || space.Groups[0] != "science" {
		t.Fatalf("expected topic groups carried over, got %v", space.Groups)
	}
}

func TestFileSaverSave(t *testing.T) {
	dir := t.TempDir()
	s := NewFileSaver(dir, "", testLogger())
	s.now = func() time.Time {
		return time.Date(2026, 8, 30, 12, 4, 5, 0, time.UTC)
	}

	path, err := s.Save(map[string]SavedTopic{
		"space": {
			Groups: []string{"science"},
			News:   []SavedNewsItem{{Title: "a", Summary: "s", Sources: []string{"https://a"}}},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Base(path) != "news_collections_20260830_120405.yaml" {
		t.Fatalf("unexpected file name %q", filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading saved file: %v", err)
	}
	var loaded map[string]SavedTopic
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("parsing saved file: %v", err)
	}
	if len(loaded["space"].News) != 1 || loaded["space"].News[0].Title != "a" {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}
}

func TestFileSaverMirrorsDestFile(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "latest.yaml")
	s := NewFileSaver(filepath.Join(dir, "out"), dest, testLogger())

	if _, err := s.Save(map[string]SavedTopic{"t": {News: []SavedNewsItem{{Title: "x"}}}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("expected mirror file: %v", err)
	}
	if !strings.Contains(string(data), "x") {
		t.Fatalf("mirror content mismatch: %s", data)
	}
}

func TestFileSaverRequiresOutputDir(t *testing.T) {
	s := NewFileSaver("", "", testLogger())
	if _, err := s.Save(nil); err == nil {
		t.Fatalf("expected error for unset output dir")
	}
}
