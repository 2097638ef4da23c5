package commands

import (
	"github.com/spf13/cobra"

	"github.com/clustertools/certauth/cmd/certauthctl/handlers"
	"github.com/clustertools/certauth/internal/config"
)

// Discover returns the discover command.
//
// Discover classifies every managed directive on every reachable target
// without touching anything: for each config file it reports whether the
// directive is absent, was written by this tool, or was placed there by
// someone else.
func Discover() *cobra.Command {
	var opts handlers.Options

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Report the current state of every managed directive",
		Long: `Discover inspects every head node, software image and live compute node
and classifies each managed config directive as absent, ours (written by
certauthctl) or foreign (present but not written by certauthctl).

Nothing is modified. Root privileges are not required.

Example:
  certauthctl discover
  certauthctl discover -c site.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Execute(cmd.Context(), config.ModeDiscover, opts)
		},
	}

	bindCommonFlags(cmd, &opts)

	return cmd
}

// bindCommonFlags attaches the flags shared by every mode command.
func bindCommonFlags(cmd *cobra.Command, opts *handlers.Options) {
	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "Path to site configuration file (default: certauth.yaml if present)")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Enable debug logging")
}
