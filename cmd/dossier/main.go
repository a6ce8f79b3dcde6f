package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"dossier/internal/config"
	"dossier/internal/logging"
)

var (
	// Global flags
	dataDir string
	verbose bool

	// Logger for process-level lifecycle; component logging goes through the
	// categorized file logger.
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "dossier",
	Short: "dossier - ambient research assistant",
	Long: `dossier runs per-notebook research gatherers under a global supervisor.

Each notebook has its own profile, approval queue, and memory scope. A
background orchestrator collects on schedule; the supervisor judges what
comes back, synthesizes across notebooks, and writes a morning brief.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if env := os.Getenv("DOSSIER_DATA"); env != "" && !cmd.Flags().Changed("data") {
			dataDir = env
		}

		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if err := logging.Initialize(dataDir); err != nil {
			return fmt.Errorf("failed to initialize file logging: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Close()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "./data", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(briefCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(notebookCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig() (config.SupervisorConfig, error) {
	cfg, err := config.Load(dataDir)
	if err != nil {
		return cfg, err
	}
	logger.Info("configuration loaded",
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("llm_model", cfg.LLM.Model),
		zap.String("embedding_model", cfg.Embedding.Model))
	return cfg, nil
}
