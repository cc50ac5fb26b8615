package cmd

import (
	"os"

	"github.com/kebairia/restic-health/internal/logger"
	"github.com/spf13/cobra"
)

// DefaultConfigFile is the config path used when -c is not given.
const DefaultConfigFile = "/etc/restic-health.yml"

var (
	// ConfigFile is the path to the YAML configuration.
	ConfigFile string
	// Verbose enables debug-level logging.
	Verbose bool

	// rootCmd is the base command for restic-health.
	rootCmd = &cobra.Command{
		Use:   "restic-health",
		Short: "Audit restic repositories and record health metrics",
		Long: `restic-health audits one or more restic repositories: it collects
versioned health metrics into a state directory, detects stale backup
pipelines, and verifies repository integrity. The exit status reflects
the audited health of every configured location.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Flags are parsed by now, so verbosity is known.
			_, err := logger.Init(Verbose)
			return err
		},
	}
)

// Execute runs the root command and exits non-zero on any failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Global().Error("audit failed", "error", err.Error())
		logger.Cleanup()
		os.Exit(1)
	}
	logger.Cleanup()
}

func init() {
	rootCmd.PersistentFlags().
		StringVarP(&ConfigFile, "config", "c", DefaultConfigFile, "path to YAML config file")
	rootCmd.PersistentFlags().
		BoolVarP(&Verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(checkReadDataCmd)
	rootCmd.AddCommand(exportCmd)
}
