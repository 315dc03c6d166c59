package telemetry

import (
	"log"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mohammad-safakhou/newscollector/config"
)

// Telemetry provides run monitoring and LLM cost tracking. It implements the
// controller's run observer and exposes its counters both as an in-process
// snapshot and through a prometheus registry.
type Telemetry struct {
	config  config.TelemetryConfig
	logger  *log.Logger
	metrics *Metrics
	prom    *promMetrics
	reg     *prometheus.Registry
}

// Metrics holds the in-process counters behind a mutex.
type Metrics struct {
	mu sync.RWMutex

	// Run metrics
	TopicsProcessed int64
	ItemsCollected  int64
	RunsFinished    int64
	ItemsMerged     int64
	LastRunDuration time.Duration

	// LLM metrics
	LLMRequests   map[string]int64
	LLMTokensUsed map[string]int64

	// Cost tracking
	ModelCosts map[string]float64
	TotalCost  float64
}

type promMetrics struct {
	topicsProcessed prometheus.Counter
	itemsCollected  prometheus.Counter
	itemsMerged     prometheus.Counter
	runDuration     prometheus.Histogram
	llmRequests     *prometheus.CounterVec
	llmTokens       *prometheus.CounterVec
}

// Model prices in dollars per 1K tokens (prompt, completion). Models not
// listed here are tracked with zero cost.
var modelPricing = map[string][2]float64{
	"gpt-4o":                 {0.0025, 0.01},
	"gpt-4o-mini":            {0.00015, 0.0006},
	"text-embedding-3-large": {0.00013, 0},
	"text-embedding-3-small": {0.00002, 0},
}

// NewTelemetry creates a new telemetry instance
func NewTelemetry(cfg config.TelemetryConfig) *Telemetry {
	t := &Telemetry{
		config: cfg,
		logger: log.New(os.Stdout, "[TELEMETRY] ", log.LstdFlags),
		metrics: &Metrics{
			LLMRequests:   make(map[string]int64),
			LLMTokensUsed: make(map[string]int64),
			ModelCosts:    make(map[string]float64),
		},
		reg: prometheus.NewRegistry(),
	}

	t.prom = &promMetrics{
		topicsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newscollector_topics_processed_total",
			Help: "Number of topics processed across all runs.",
		}),
		itemsCollected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newscollector_items_collected_total",
			Help: "Number of news items collected before deduplication.",
		}),
		itemsMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newscollector_items_merged_total",
			Help: "Number of news items absorbed by deduplication merges.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "newscollector_run_duration_seconds",
			Help:    "Duration of full collection runs.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		llmRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newscollector_llm_requests_total",
			Help: "LLM API requests by model.",
		}, []string{"model"}),
		llmTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newscollector_llm_tokens_total",
			Help: "LLM tokens used by model and direction.",
		}, []string{"model", "direction"}),
	}
	t.reg.MustRegister(
		t.prom.topicsProcessed,
		t.prom.itemsCollected,
		t.prom.itemsMerged,
		t.prom.runDuration,
		t.prom.llmRequests,
		t.prom.llmTokens,
	)

	if cfg.Enabled && cfg.PeriodicLogs {
		go t.startCostReporting()
	}

	return t
}

// Registry exposes the prometheus registry for the metrics endpoint.
func (t *Telemetry) Registry() *prometheus.Registry { return t.reg }

// TopicProcessed implements the run observer.
func (t *Telemetry) TopicProcessed(topic string, items int, elapsed time.Duration) {
	if !t.config.Enabled {
		return
	}
	t.metrics.mu.Lock()
	t.metrics.TopicsProcessed++
	t.metrics.ItemsCollected += int64(items)
	t.metrics.mu.Unlock()

	t.prom.topicsProcessed.Inc()
	t.prom.itemsCollected.Add(float64(items))

	t.logger.Printf("Topic Processed: %s, Items=%d, Duration=%v", topic, items, elapsed)
}

// RunFinished implements the run observer. total is the item count before
// deduplication, deduplicated the count after.
func (t *Telemetry) RunFinished(total, deduplicated int, elapsed time.Duration) {
	if !t.config.Enabled {
		return
	}
	merged := total - deduplicated
	t.metrics.mu.Lock()
	t.metrics.RunsFinished++
	t.metrics.ItemsMerged += int64(merged)
	t.metrics.LastRunDuration = elapsed
	t.metrics.mu.Unlock()

	t.prom.itemsMerged.Add(float64(merged))
	t.prom.runDuration.Observe(elapsed.Seconds())

	t.logger.Printf("Run Finished: Collected=%d, AfterDedup=%d, Merged=%d, Duration=%v",
		total, deduplicated, merged, elapsed)
}

// RecordLLMUsage records a single model call. Wire it to the provider's
// usage callback.
func (t *Telemetry) RecordLLMUsage(model string, promptTokens, completionTokens int64) {
	if !t.config.Enabled {
		return
	}
	cost := 0.0
	if t.config.CostTracking {
		if price, ok := modelPricing[model]; ok {
			cost = float64(promptTokens)/1000.0*price[0] + float64(completionTokens)/1000.0*price[1]
		}
	}

	t.metrics.mu.Lock()
	t.metrics.LLMRequests[model]++
	t.metrics.LLMTokensUsed[model] += promptTokens + completionTokens
	t.metrics.ModelCosts[model] += cost
	t.metrics.TotalCost += cost
	t.metrics.mu.Unlock()

	t.prom.llmRequests.WithLabelValues(model).Inc()
	t.prom.llmTokens.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	t.prom.llmTokens.WithLabelValues(model, "completion").Add(float64(completionTokens))
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	TopicsProcessed int64
	ItemsCollected  int64
	RunsFinished    int64
	ItemsMerged     int64
	LastRunDuration time.Duration
	LLMRequests     map[string]int64
	LLMTokensUsed   map[string]int64
	ModelCosts      map[string]float64
	TotalCost       float64
}

// GetMetrics returns current metrics snapshot
func (t *Telemetry) GetMetrics() Snapshot {
	t.metrics.mu.RLock()
	defer t.metrics.mu.RUnlock()

	snapshot := Snapshot{
		TopicsProcessed: t.metrics.TopicsProcessed,
		ItemsCollected:  t.metrics.ItemsCollected,
		RunsFinished:    t.metrics.RunsFinished,
		ItemsMerged:     t.metrics.ItemsMerged,
		LastRunDuration: t.metrics.LastRunDuration,
		TotalCost:       t.metrics.TotalCost,
		LLMRequests:     make(map[string]int64),
		LLMTokensUsed:   make(map[string]int64),
		ModelCosts:      make(map[string]float64),
	}
	for k, v := range t.metrics.LLMRequests {
		snapshot.LLMRequests[k] = v
	}
	for k, v := range t.metrics.LLMTokensUsed {
		snapshot.LLMTokensUsed[k] = v
	}
	for k, v := range t.metrics.ModelCosts {
		snapshot.ModelCosts[k] = v
	}
	return snapshot
}

// startCostReporting starts periodic cost reporting
func (t *Telemetry) startCostReporting() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		m := t.GetMetrics()
		t.logger.Printf("Cost Report: Total=$%.4f", m.TotalCost)
		for model, cost := range m.ModelCosts {
			t.logger.Printf("  Model %s: %d requests, %d tokens, $%.4f",
				model, m.LLMRequests[model], m.LLMTokensUsed[model], cost)
		}
	}
}

// Shutdown logs a final report.
func (t *Telemetry) Shutdown() {
	m := t.GetMetrics()
	t.logger.Printf("Final Report:")
	t.logger.Printf("  Topics Processed: %d", m.TopicsProcessed)
	t.logger.Printf("  Items Collected: %d", m.ItemsCollected)
	t.logger.Printf("  Items Merged: %d", m.ItemsMerged)
	t.logger.Printf("  Total Cost: $%.4f", m.TotalCost)
}
