package commands

import (
	"github.com/spf13/cobra"

	"github.com/clustertools/certauth/cmd/certauthctl/handlers"
	"github.com/clustertools/certauth/internal/config"
)

// Rollback returns the rollback command.
//
// Rollback restores each managed file from its pristine backup, or strips
// the tool's marker-delimited edits when no backup exists. Files never
// touched by the tool are left alone. Interactive sessions are asked to
// confirm; --yes skips the prompt for automation.
func Rollback() *cobra.Command {
	var opts handlers.Options

	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Undo the certificate-auth config changes cluster-wide",
		Long: `Rollback returns every managed config file to its pre-write state.

Files with a pristine backup are restored from it byte-for-byte. Files
without a backup have the tool's marker-delimited edits stripped, after
a safety copy of the current content is made. Files the tool never
modified, including foreign copies of the directives, are untouched.
Affected services are restarted afterwards.

Requires root privileges. An interactive session is asked to confirm
before anything is restored; pass --yes to skip the prompt.

Examples:
  certauthctl rollback
  certauthctl rollback --yes`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Execute(cmd.Context(), config.ModeRollback, opts)
		},
	}

	bindCommonFlags(cmd, &opts)
	cmd.Flags().BoolVarP(&opts.AssumeYes, "yes", "y", false, "Skip the interactive confirmation")

	return cmd
}
