// Command docstore-ca runs the certificate-issuance HTTP service that
// bootstraps post-quantum identities for docstore clients.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/docstore/pkg/ca"
	"github.com/cuemby/docstore/pkg/config"
	"github.com/cuemby/docstore/pkg/log"
	"github.com/cuemby/docstore/pkg/metrics"
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
	Use:     "docstore-ca",
	Short:   "docstore-ca - post-quantum certificate issuance service",
	Version: Version,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the certificate issuance service",
	RunE: func(cmd *cobra.Command, args []string) error {
		configDir, _ := cmd.Flags().GetString("config-dir")
		logLevel, _ := cmd.Flags().GetString("log-level")
		logJSON, _ := cmd.Flags().GetBool("log-json")

		log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})

		cfg, err := config.Load(configDir)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		metrics.SetCriticalComponents("ca")

		authority, err := ca.New([]byte(cfg.Cipher.AESKey), cfg.Cipher.CertificatesPath)
		if err != nil {
			metrics.RegisterComponent("ca", false, err.Error())
			return fmt.Errorf("failed to initialize certificate authority: %w", err)
		}
		metrics.RegisterComponent("ca", true, "")

		svc := ca.NewService(authority)
		log.Info(fmt.Sprintf("docstore-ca listening on %s", cfg.Server.CAListenAddr))
		return svc.ListenAndServe(cfg.Server.CAListenAddr)
	},
}

func init() {
	startCmd.Flags().String("config-dir", ".", "Directory containing the config/ subdirectory")
	startCmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
	startCmd.Flags().Bool("log-json", false, "Output logs in JSON format")

	rootCmd.AddCommand(startCmd)
}
