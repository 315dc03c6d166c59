package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mohammad-safakhou/newscollector/internal/collector/core"
)

// CollectionStore reads saved collection files back from the output
// directory. Files are named news_collections_<timestamp>.yaml, so
// lexicographic order is chronological order.
type CollectionStore struct {
	dir string
}

func NewCollectionStore(dir string) *CollectionStore {
	return &CollectionStore{dir: dir}
}

// List returns the collection file names, newest first.
func (s *CollectionStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading output dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "news_collections_") && strings.HasSuffix(name, ".yaml") {
			names = append(names, name)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

// Load parses one saved collection file by name.
func (s *CollectionStore) Load(name string) (map[string]core.SavedTopic, error) {
	if filepath.Base(name) != name {
		return nil, fmt.Errorf("invalid collection name %q", name)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("reading collection %s: %w", name, err)
	}
	var collection map[string]core.SavedTopic
	if err := yaml.Unmarshal(data, &collection); err != nil {
		return nil, fmt.Errorf("parsing collection %s: %w", name, err)
	}
	return collection, nil
}

// Latest loads the most recent collection, or nil when none exist.
func (s *CollectionStore) Latest() (map[string]core.SavedTopic, string, error) {
	names, err := s.List()
	if err != nil {
		return nil, "", err
	}
	if len(names) == 0 {
		return nil, "", nil
	}
	collection, err := s.Load(names[0])
	if err != nil {
		return nil, "", err
	}
	return collection, names[0], nil
}
