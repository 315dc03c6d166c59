package core

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// SavedNewsItem is the trimmed item shape written to disk.
type SavedNewsItem struct {
	Title         string   `yaml:"title"`
	Summary       string   `yaml:"summary"`
	Sources       []string `yaml:"sources"`
	PublishedDate string   `yaml:"published_date,omitempty"`
}

// SavedTopic groups the saved items under a topic, mirroring the topics file
// structure.
type SavedTopic struct {
	Groups []string        `yaml:"groups"`
	News   []SavedNewsItem `yaml:"news"`
}

// GroupByTopic shapes the final deduplicated list for persistence.
func GroupByTopic(items []NewsItem) map[string]SavedTopic {
	out := make(map[string]SavedTopic)
	for _, it := range items {
		topic, ok := out[it.Topic]
		if !ok {
			topic = SavedTopic{Groups: it.Groups}
		}
		topic.News = append(topic.News, SavedNewsItem{
			Title:         it.Title,
			Summary:       it.Summary,
			Sources:       it.Sources,
			PublishedDate: it.PublishedDate,
		})
		out[it.Topic] = topic
	}
	return out
}

// FileSaver writes collections as timestamped YAML files under OutputDir,
// and optionally mirrors the latest collection to DestFile.
type FileSaver struct {
	OutputDir string
	DestFile  string
	now       func() time.Time
	logger    *log.Logger
}

func NewFileSaver(outputDir, destFile string, logger *log.Logger) *FileSaver {
	if logger == nil {
		logger = log.Default()
	}
	return &FileSaver{OutputDir: outputDir, DestFile: destFile, now: time.Now, logger: logger}
}

// Save writes the grouped collection and returns the timestamped path.
func (s *FileSaver) Save(collection map[string]SavedTopic) (string, error) {
	if s.OutputDir == "" {
		return "", &ConfigError{Op: "save collections", Err: fmt.Errorf("output directory not configured")}
	}
	if err := os.MkdirAll(s.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}

	data, err := yaml.Marshal(collection)
	if err != nil {
		return "", fmt.Errorf("encoding collections: %w", err)
	}

	path := filepath.Join(s.OutputDir, fmt.Sprintf("news_collections_%s.yaml", s.now().Format("20060102_150405")))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}

	if s.DestFile != "" {
		if err := os.WriteFile(s.DestFile, data, 0o644); err != nil {
			return "", fmt.Errorf("writing %s: %w", s.DestFile, err)
		}
		s.logger.Printf("mirrored collections to %s", s.DestFile)
	}
	return path, nil
}
