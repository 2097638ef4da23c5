package commands

import (
	"github.com/spf13/cobra"

	"github.com/clustertools/certauth/cmd/certauthctl/handlers"
	"github.com/clustertools/certauth/internal/config"
)

// RollbackValidate returns the rollback-validate command.
//
// Rollback-validate confirms a rollback left no engine-authored edits
// behind: any directive still classified as ours makes the run exit
// non-zero. Foreign copies of the directives are acceptable.
func RollbackValidate() *cobra.Command {
	var opts handlers.Options

	cmd := &cobra.Command{
		Use:   "rollback-validate",
		Short: "Verify a rollback restored the pristine configuration",
		Long: `Rollback-validate checks every target for leftover certauthctl edits.
A target is pristine when each managed directive is either absent or was
placed by someone else; any directive still carrying the certauthctl
marker makes the run exit non-zero.

Requires root privileges.

Example:
  certauthctl rollback-validate`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Execute(cmd.Context(), config.ModeRollbackValidate, opts)
		},
	}

	bindCommonFlags(cmd, &opts)

	return cmd
}
