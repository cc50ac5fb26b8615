package cmd

import (
	"github.com/kebairia/restic-health/internal/operations"
	"github.com/spf13/cobra"
)

var exportDir string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Bundle collected history into compressed archives",
	Long: `export packs each location's collected state into a
<location>.tar.zst archive under the output directory, for shipping the
audit history offsite. The state directory itself is not modified.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return operations.ExportAll(ConfigFile, exportDir)
	},
}

func init() {
	exportCmd.Flags().
		StringVarP(&exportDir, "output", "o", ".", "directory to write archives into")
}
