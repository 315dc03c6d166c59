package core

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadTopics parses the topics file: a YAML mapping of topic name to topic
// metadata. Entries keep the file's ordering, which fixes the processing
// order for the whole run. Any failure here is a ConfigError and aborts the
// run before a single topic is processed.
func LoadTopics(path string) ([]TopicEntry, error) {
	if path == "" {
		return nil, &ConfigError{Op: "load topics", Err: fmt.Errorf("topics file not configured")}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Op: "load topics", Err: err}
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ConfigError{Op: "load topics", Err: err}
	}
	if len(doc.Content) == 0 {
		return nil, &ConfigError{Op: "load topics", Err: fmt.Errorf("topics file %s is empty", path)}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, &ConfigError{Op: "load topics", Err: fmt.Errorf("topics file %s: expected a mapping of topic name to metadata", path)}
	}

	topics := make([]TopicEntry, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		keyNode, valNode := root.Content[i], root.Content[i+1]

		var meta struct {
			Groups []string `yaml:"groups"`
		}
		if err := valNode.Decode(&meta); err != nil {
			return nil, &ConfigError{Op: "load topics", Err: fmt.Errorf("topic %q: %w", keyNode.Value, err)}
		}
		extra := map[string]interface{}{}
		if err := valNode.Decode(&extra); err != nil {
			return nil, &ConfigError{Op: "load topics", Err: fmt.Errorf("topic %q: %w", keyNode.Value, err)}
		}
		delete(extra, "groups")

		topics = append(topics, TopicEntry{
			Name: keyNode.Value,
			Info: TopicInfo{Groups: meta.Groups, Extra: extra},
		})
	}
	return topics, nil
}
