package commands

import (
	"github.com/spf13/cobra"

	"github.com/clustertools/certauth/cmd/certauthctl/handlers"
	"github.com/clustertools/certauth/internal/config"
)

// Write returns the write command.
//
// Write applies every managed directive to every reachable target. Each
// file gets a pristine backup before its first modification; re-running
// write is a no-op for files already carrying the directive.
func Write() *cobra.Command {
	var opts handlers.Options

	cmd := &cobra.Command{
		Use:   "write",
		Short: "Apply the certificate-auth config directives cluster-wide",
		Long: `Write appends the managed directives to the LDAP client, nslcd, sssd
and slapd configs on every head node, software image and live compute
node, then restarts the affected services.

Before a file is first modified, a timestamped backup of its pristine
content is created next to it. Files already carrying the directive are
left byte-identical, so write can be run repeatedly.

Requires root privileges.

Examples:
  certauthctl write
  certauthctl write -c site.yaml -v`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Execute(cmd.Context(), config.ModeWrite, opts)
		},
	}

	bindCommonFlags(cmd, &opts)

	return cmd
}
