package main

import (
	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/newscollector/config"
	"github.com/mohammad-safakhou/newscollector/internal/collector/server"
	"github.com/mohammad-safakhou/newscollector/internal/collector/store"
	"github.com/mohammad-safakhou/newscollector/internal/collector/telemetry"
)

func serveCMD() *cobra.Command {
	var serveAddr string
	var cfgPath string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server over saved collections",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}

			tele := telemetry.NewTelemetry(cfg.Telemetry)
			collections := store.NewCollectionStore(cfg.News.OutputDir)

			return server.Run(serveAddr, collections, tele)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", ":10001", "listen address")
	serve.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return serve
}
