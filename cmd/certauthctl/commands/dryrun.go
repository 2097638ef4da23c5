package commands

import (
	"github.com/spf13/cobra"

	"github.com/clustertools/certauth/cmd/certauthctl/handlers"
	"github.com/clustertools/certauth/internal/config"
)

// DryRun returns the dry-run command.
//
// Dry-run walks the exact same decision path as write and reports what
// would change, without writing files, creating backups or restarting
// services.
func DryRun() *cobra.Command {
	var opts handlers.Options

	cmd := &cobra.Command{
		Use:   "dry-run",
		Short: "Show what write would change without changing anything",
		Long: `Dry-run evaluates every managed directive on every target and reports
the edits a write run would make. No file is modified, no backup is
created and no service is restarted.

Example:
  certauthctl dry-run`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Execute(cmd.Context(), config.ModeDryRun, opts)
		},
	}

	bindCommonFlags(cmd, &opts)

	return cmd
}
