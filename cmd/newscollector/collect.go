package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/newscollector/config"
	"github.com/mohammad-safakhou/newscollector/internal/collector/core"
	"github.com/mohammad-safakhou/newscollector/internal/collector/store"
	"github.com/mohammad-safakhou/newscollector/internal/collector/telemetry"
	"github.com/mohammad-safakhou/newscollector/internal/collector/tools"
	"github.com/mohammad-safakhou/newscollector/provider"
	openai_provider "github.com/mohammad-safakhou/newscollector/provider/openai"
)

func collectCMD() *cobra.Command {
	var cfgPath string
	var topicsFile string
	var collect = &cobra.Command{
		Use:   "collect",
		Short: "Run one news collection pass over the configured topics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			if topicsFile != "" {
				cfg.News.TopicsFile = topicsFile
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			tele := telemetry.NewTelemetry(cfg.Telemetry)
			defer tele.Shutdown()

			llm, err := provider.NewProvider(cfg.LLM)
			if err != nil {
				return err
			}
			if client, ok := llm.(*openai_provider.Client); ok {
				client.OnUsage(tele.RecordLLMUsage)
			}

			var cache core.EmbeddingCache
			if cfg.Storage.Redis.Host != "" {
				rdb, err := store.Conn(ctx, cfg.Storage.Redis)
				if err != nil {
					log.Printf("[COLLECT] redis unavailable, embedding cache disabled: %v", err)
				} else {
					cache = store.NewEmbeddingCache(rdb, cfg.Storage.Redis.CacheTTL, nil)
					defer rdb.Close()
				}
			}

			workerLogger := log.New(os.Stdout, "[WORKER] ", log.LstdFlags)
			searchTools := tools.NewSearchTools(cfg.Search, workerLogger)
			extractor := core.NewModelExtractor(llm)
			worker, err := core.NewNewsWorker(llm, extractor, searchTools, cfg.News.MaxToolCalls, workerLogger)
			if err != nil {
				return err
			}

			engine := core.NewSimilarityEngine(llm, llm, cache, log.New(os.Stdout, "[DEDUP] ", log.LstdFlags))
			saver := core.NewFileSaver(cfg.News.OutputDir, cfg.News.DestFile, log.New(os.Stdout, "[SAVE] ", log.LstdFlags))

			controller := core.NewController(core.ControllerConfig{
				TopicsFile:          cfg.News.TopicsFile,
				SimilarityThreshold: cfg.News.SimilarityThreshold,
				MaxItemsPerTopic:    cfg.News.MaxItemsPerTopic,
				RecencyOverrides:    cfg.News.RecencyDays,
			}, worker, engine, saver, tele, log.New(os.Stdout, "[CONTROLLER] ", log.LstdFlags))

			_, err = controller.Run(ctx)
			return err
		},
	}
	collect.Flags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")
	collect.Flags().StringVarP(&topicsFile, "topics", "t", "", "topics file (overrides config)")

	return collect
}
