package store

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/mohammad-safakhou/newscollector/internal/collector/core"
)

func writeCollection(t *testing.T, dir, name string, topics map[string]core.SavedTopic) {
	t.Helper()
	data, err := yaml.Marshal(topics)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestCollectionStoreListNewestFirst(t *testing.T) {
	dir := t.TempDir()
	writeCollection(t, dir, "news_collections_20260828_090000.yaml", nil)
	writeCollection(t, dir, "news_collections_20260830_120000.yaml", nil)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	s := NewCollectionStore(dir)
	names, err := s.List()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 collection files, got %v", names)
	}
	if names[0] != "news_collections_20260830_120000.yaml" {
		t.Fatalf("expected newest first, got %v", names)
	}
}

func TestCollectionStoreListMissingDir(t *testing.T) {
	s := NewCollectionStore(filepath.Join(t.TempDir(), "nope"))
	names, err := s.List()
	if err != nil || names != nil {
		t.Fatalf("expected empty result for missing dir, got %v err=%v", names, err)
	}
}

func TestCollectionStoreLatest(t *testing.T) {
	dir := t.TempDir()
	writeCollection(t, dir, "news_collections_20260828_090000.yaml", map[string]core.SavedTopic{
		"old": {News: []core.SavedNewsItem{{Title: "stale"}}},
	})
	writeCollection(t, dir, "news_collections_20260830_120000.yaml", map[string]core.SavedTopic{
		"fresh": {Groups: []string{"technology"}, News: []core.SavedNewsItem{{Title: "new"}}},
	})

	s := NewCollectionStore(dir)
	collection, name, err := s.Latest()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "news_collections_20260830_120000.yaml" {
		t.Fatalf("expected latest file, got %q", name)
	}
	if len(collection["fresh"].News) != 1 || collection["fresh"].News[0].Title != "new" {
		t.Fatalf("unexpected collection: %+v", collection)
	}
}

func TestCollectionStoreLatestEmptyDir(t *testing.T) {
	s := NewCollectionStore(t.TempDir())
	collection, name, err := s.Latest()
	if err != nil || collection != nil || name != "" {
		t.Fatalf("expected empty latest, got %v %q err=%v", collection, name, err)
	}
}

func TestCollectionStoreLoadRejectsPathTraversal(t *testing.T) {
	s := NewCollectionStore(t.TempDir())
	if _, err := s.Load("../etc/passwd"); err == nil {
		t.Fatalf("expected error for path with separators")
	}
}

func TestEmbeddingKeyStable(t *testing.T) {
	a := embeddingKey("some text")
	b := embeddingKey("some text")
	c := embeddingKey("other text")
	if a != b {
		t.Fatalf("expected deterministic keys, got %q and %q", a, b)
	}
	if a == c {
		t.Fatalf("expected distinct keys for distinct texts")
	}
	if len(a) != len("emb:")+40 {
		t.Fatalf("expected sha1 hex key, got %q", a)
	}
}
