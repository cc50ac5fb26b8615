package cmd

import (
	"github.com/kebairia/restic-health/internal/operations"
	"github.com/spf13/cobra"
)

var skipCurrent bool

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect health metrics for all configured locations",
	Long: `collect queries each configured repository for its snapshots and
statistics and records them as versioned artifacts in the state
directory. A location whose newest snapshot was already recorded fails
the run, unless --skip-current acknowledges the absence of new data.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return operations.CollectAll(ConfigFile, skipCurrent)
	},
}

func init() {
	collectCmd.Flags().
		BoolVar(&skipCurrent, "skip-current", false,
			"treat an already-recorded newest snapshot as a benign skip")
}
