// Command docstore runs the document-store database server: it binds
// the wire protocol's listening socket and serves connections until
// interrupted.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuemby/docstore/pkg/config"
	"github.com/cuemby/docstore/pkg/log"
	"github.com/cuemby/docstore/pkg/metrics"
	"github.com/cuemby/docstore/pkg/server"
	"github.com/cuemby/docstore/pkg/storage"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "docstore",
	Short:   "docstore - privacy-preserving document store server",
	Version: Version,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the document store server",
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")
		configDir, _ := cmd.Flags().GetString("config-dir")
		logLevel, _ := cmd.Flags().GetString("log-level")
		logJSON, _ := cmd.Flags().GetBool("log-json")

		log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})

		cfg, err := config.Load(configDir)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		store, err := storage.NewBoltStore(dataDir)
		if err != nil {
			metrics.RegisterComponent("storage", false, err.Error())
			return fmt.Errorf("failed to open storage: %w", err)
		}
		defer store.Close()
		metrics.RegisterComponent("storage", true, "")

		srv := server.New(store)
		if err := srv.Start(cfg.Server.ListenAddr); err != nil {
			metrics.RegisterComponent("server", false, err.Error())
			return fmt.Errorf("failed to start server: %w", err)
		}
		metrics.RegisterComponent("server", true, "")

		go func() {
			mux := http.NewServeMux()
			mux.Handle("GET /metrics", metrics.Handler())
			mux.HandleFunc("GET /health", metrics.HealthHandler())
			mux.HandleFunc("GET /ready", metrics.ReadyHandler())
			mux.HandleFunc("GET /live", metrics.LivenessHandler())
			if err := http.ListenAndServe(cfg.Server.MetricsListenAddr, mux); err != nil {
				log.Error(fmt.Sprintf("metrics server stopped: %v", err))
			}
		}()

		log.Info(fmt.Sprintf("docstore server listening on %s", cfg.Server.ListenAddr))
		log.Info(fmt.Sprintf("metrics listening on %s", cfg.Server.MetricsListenAddr))

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		log.Info("shutting down")
		return srv.Stop()
	},
}

func init() {
	startCmd.Flags().String("data-dir", "./data", "Storage data directory")
	startCmd.Flags().String("config-dir", ".", "Directory containing the config/ subdirectory")
	startCmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
	startCmd.Flags().Bool("log-json", false, "Output logs in JSON format")

	rootCmd.AddCommand(startCmd)
}
