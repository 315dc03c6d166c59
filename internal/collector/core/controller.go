package core

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
)

// recencyPriority fixes the scan order for window derivation: the first
// category present in the topic's groups wins, regardless of the order the
// groups appear in the topic itself.
var recencyPriority = []struct {
	group string
	days  int
}{
	{"politics", 2},
	{"technology", 4},
	{"science", 7},
	{"health", 7},
}

const defaultRecencyDays = 2

// broadGroups trigger the breaking-news expansion.
var broadGroups = map[string]bool{"us": true, "india": true, "world": true}

var universalGroups = []string{"recent events", "recent developments", "latest news"}

// RecencyWindow derives the number of days back a news item may have been
// published, from the topic's group tags. Matching is case-insensitive and
// deterministic. Overrides replace the day count for a category without
// changing the priority order.
func RecencyWindow(groups []string, overrides map[string]int) int {
	for _, p := range recencyPriority {
		days := p.days
		if o, ok := overrides[p.group]; ok {
			days = o
		}
		for _, g := range groups {
			if strings.EqualFold(g, p.group) {
				return days
			}
		}
	}
	if o, ok := overrides["default"]; ok {
		return o
	}
	return defaultRecencyDays
}

// ExpandGroups widens the topic's groups for query expansion: broad
// geographic tags pull in breaking news and politics, and every topic gets
// the universal recency tags.
func ExpandGroups(groups []string) []string {
	out := append([]string{}, groups...)
	for _, g := range groups {
		if broadGroups[strings.ToLower(g)] {
			out = append(out, "breaking news", "politics")
			break
		}
	}
	return append(out, universalGroups...)
}

// ActionKind is the controller's routing decision.
type ActionKind int

const (
	// ActionProcessTopic hands the next topic to the worker.
	ActionProcessTopic ActionKind = iota
	// ActionFinalize moves the run to deduplication and saving.
	ActionFinalize
)

// Action carries a routing decision plus the scratch values for the topic to
// process next.
type Action struct {
	Kind        ActionKind
	Topic       string
	Groups      []string
	RecencyDays int
}

// ControllerConfig carries the run-level knobs the controller needs.
type ControllerConfig struct {
	TopicsFile          string
	SimilarityThreshold float64
	MaxItemsPerTopic    int
	RecencyOverrides    map[string]int
}

// RunObserver receives controller lifecycle events. All methods are
// optional; a nil observer is valid.
type RunObserver interface {
	TopicProcessed(topic string, items int, elapsed time.Duration)
	RunFinished(total, deduplicated int, elapsed time.Duration)
}

// Controller walks the topic list to completion: one worker run per topic,
// strictly sequential, then a single deduplication pass over everything
// accumulated, then save.
type Controller struct {
	cfg      ControllerConfig
	worker   TopicWorker
	dedup    *SimilarityEngine
	saver    CollectionSaver
	observer RunObserver
	logger   *log.Logger
}

func NewController(cfg ControllerConfig, worker TopicWorker, dedup *SimilarityEngine, saver CollectionSaver, observer RunObserver, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.Default()
	}
	return &Controller{cfg: cfg, worker: worker, dedup: dedup, saver: saver, observer: observer, logger: logger}
}

// route accumulates any pending items from the previous topic run and
// decides the next action. It is called once before the first topic and once
// after every topic run; the cursor strictly increases until the list is
// exhausted. Accumulation is idempotent: with no pending items it is a
// no-op.
func (c *Controller) route(st *CollectionState) Action {
	if len(st.CurrentItems) > 0 {
		st.Collections = append(st.Collections, st.CurrentItems...)
		st.CurrentItems = nil
	}

	if st.TopicIndex >= len(st.Topics) {
		return Action{Kind: ActionFinalize}
	}

	entry := st.Topics[st.TopicIndex]
	days := RecencyWindow(entry.Info.Groups, c.cfg.RecencyOverrides)
	groups := ExpandGroups(entry.Info.Groups)

	c.logger.Printf("processing topic %d/%d: %s", st.TopicIndex+1, len(st.Topics), entry.Name)

	st.CurrentTopic = entry.Name
	st.CurrentGroups = groups
	st.RecencyDays = days
	st.TopicIndex++

	return Action{Kind: ActionProcessTopic, Topic: entry.Name, Groups: groups, RecencyDays: days}
}

// Run executes the whole collection: load, topic loop, deduplicate, save.
// A load failure aborts with no topics processed. A worker failure costs
// only that topic's items. Deduplication and saving never drop data on
// error beyond what they report.
func (c *Controller) Run(ctx context.Context) (*CollectionState, error) {
	start := time.Now()

	topics, err := LoadTopics(c.cfg.TopicsFile)
	if err != nil {
		return nil, err
	}
	st := &CollectionState{
		RunID:            uuid.New().String(),
		Topics:           topics,
		MaxItemsPerTopic: c.cfg.MaxItemsPerTopic,
	}
	c.logger.Printf("run %s: loaded %d topics from %s", st.RunID, len(topics), c.cfg.TopicsFile)

	for {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		action := c.route(st)
		if action.Kind == ActionFinalize {
			break
		}

		topicStart := time.Now()
		if err := c.worker.Run(ctx, st); err != nil {
			// Fatal for this topic only; the topic simply yields no items.
			c.logger.Printf("topic %q failed, continuing: %v", action.Topic, err)
			st.CurrentItems = nil
		}
		if c.observer != nil {
			c.observer.TopicProcessed(action.Topic, len(st.CurrentItems), time.Since(topicStart))
		}
	}

	collected := len(st.Collections)
	if len(st.Collections) > 0 && c.dedup != nil {
		c.logger.Printf("deduplicating %d news items", len(st.Collections))
		deduped := c.dedup.Deduplicate(ctx, st.Collections, c.cfg.SimilarityThreshold)
		if len(deduped) == 0 && len(st.Collections) > 0 {
			c.logger.Printf("deduplication returned empty list, keeping original collections")
		} else {
			st.Collections = deduped
		}
		c.logger.Printf("after deduplication: %d news items remain", len(st.Collections))
	}

	if c.saver != nil && len(st.Collections) > 0 {
		path, err := c.saver.Save(GroupByTopic(st.Collections))
		if err != nil {
			return st, err
		}
		c.logger.Printf("saved %d news collections to %s", len(st.Collections), path)
	}

	if c.observer != nil {
		c.observer.RunFinished(collected, len(st.Collections), time.Since(start))
	}
	return st, nil
}
