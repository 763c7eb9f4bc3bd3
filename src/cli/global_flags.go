package cli

import (
	"github.com/spf13/cobra"

	"oci-volume-backup/src/safety"
)

// addGlobalFlags adds persistent flags to the root command.
func addGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().Bool("dry-run", false, "Show planned actions without making changes")
	cmd.PersistentFlags().BoolP("yes", "y", false, "Assume 'yes' to prompts and run non-interactively")
	cmd.PersistentFlags().String("log-level", "info", "Log level: trace|debug|info|warn|error|disabled")
	cmd.PersistentFlags().String("log-format", "auto", "Log format: auto|console|json")
	cmd.PersistentFlags().String("env-file", "", "Load OCI_VOLUME_BACKUP_* variables from this file (default .env if present)")
}

// getSafetyOptions reads global flags into a safety.Options struct.
func getSafetyOptions(cmd *cobra.Command) safety.Options {
	dry, _ := cmd.Flags().GetBool("dry-run")
	yes, _ := cmd.Flags().GetBool("yes")
	return safety.Options{DryRun: dry, Yes: yes}
}
