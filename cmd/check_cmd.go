package cmd

import (
	"github.com/kebairia/restic-health/internal/operations"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify repository metadata consistency for all locations",
	Long: `check runs a structural integrity check against each configured
repository. It validates repository metadata only and does not read
backed-up object content; use check-read-data for that.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return operations.CheckAll(ConfigFile, false)
	},
}

var checkReadDataCmd = &cobra.Command{
	Use:   "check-read-data",
	Short: "Verify full data integrity for all locations",
	Long: `check-read-data runs a full integrity check against each configured
repository, re-reading and verifying the content of every stored
object. This is the only check that detects corrupted or missing data
objects.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return operations.CheckAll(ConfigFile, true)
	},
}
