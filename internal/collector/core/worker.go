package core

import "log"

// Prompts for the per-topic news collection worker. Placeholders resolve
// against CollectionState through the passthrough keys below.
const newsSystemPrompt = `You are a news collection agent. Your task is to collect the latest news articles for the topic "{current_topic}" in the groups {current_groups}.

You must collect {max_items_per_topic} unique news items for each topic. Sort them by relevance and recency.

IMPORTANT: You do not need any confirmation for anything.

IMPORTANT: Only include news from the last {recency_days} days. Filter out any articles older than {recency_days} days from today's date. Use multiple search queries combining the topic with each group.

If {current_topic} contains a comma separated list of topics, use each topic individually and in combination with the groups to create a list of search queries. You can also combine multiple topics together to optimize the search queries.

Search queries to use:
1. topic (after splitting by comma) + each group individually
2. topic (after splitting by comma) + combinations of groups
3. topic (after splitting by comma) + combinations of groups + combinations of topics

After collecting search results, analyze and extract the most relevant and recent news items. For each news item, provide:
- title: A concise title (max 15 words)
- summary: A comprehensive summary (at least 1-2 paragraphs, 150-250 words)
- sources: List of source URLs taken from the search results - each should be a valid URL
- topic: {current_topic}
- groups: {current_groups}
- published_date: The date the news item was published

Focus on unique, high-quality news items and avoid duplicates. Prioritize recent and authoritative sources.`

const newsUserPrompt = `Please collect the latest news for the topic "{current_topic}" related to {current_groups}.

Search thoroughly using multiple queries and tools. Then provide a comprehensive list of unique news items with proper summaries and source attribution.`

const newsExtractorPrompt = `Extract news items from the following input text: {content}`

// NewNewsWorker assembles the reactive worker that collects news for a
// single topic. The caller state is CollectionState; the collected items
// land in its current-items field.
func NewNewsWorker(model ChatModel, extractor StructuredExtractor, tools []ToolRunner, maxToolCalls int, logger *log.Logger) (*ReactiveAgent, error) {
	return NewReactiveAgent(ReactiveConfig{
		SystemPrompt: newsSystemPrompt,
		Prompt:       newsUserPrompt,
		PassthroughKeys: []string{
			"current_topic",
			"current_groups",
			"recency_days",
			"max_items_per_topic",
		},
		Tools:              tools,
		MaxToolCalls:       maxToolCalls,
		StructuredOutput:   func() interface{} { return &CollectionOutput{} },
		ExtractorPrompt:    newsExtractorPrompt,
		ExtractedOutputKey: "news_items",
		OutputKey:          "current_news_items",
		AggregateOutput:    false,
	}, model, extractor, logger)
}
