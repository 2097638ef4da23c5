package commands

import (
	"github.com/spf13/cobra"

	"github.com/clustertools/certauth/cmd/certauthctl/handlers"
	"github.com/clustertools/certauth/internal/config"
)

// Validate returns the validate command.
//
// Validate checks that every managed directive is in place and, when a
// probe command is configured, that certificate-based binds actually
// work. It exits non-zero if anything is missing or the probe fails.
func Validate() *cobra.Command {
	var opts handlers.Options

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Verify the certificate-auth configuration is complete",
		Long: `Validate confirms that every managed directive is present on every
target and runs the configured functional probe on each head node.
A missing directive or a failed probe makes the run exit non-zero.

Requires root privileges.

Example:
  certauthctl validate`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Execute(cmd.Context(), config.ModeValidate, opts)
		},
	}

	bindCommonFlags(cmd, &opts)

	return cmd
}
