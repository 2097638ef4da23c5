// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument
// parsing and flag binding. Command execution is delegated to handler
// functions in the handlers package.
package commands

import "github.com/spf13/cobra"

// Root returns the root command for the certauthctl CLI.
//
// The root command serves as the entry point and parent for all
// subcommands. Each subcommand selects exactly one run mode; there is no
// default mode.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "certauthctl",
		Short: "Enable certificate-based LDAP authentication across the cluster",
	}

	// Read-only modes
	cmd.AddCommand(Discover())
	cmd.AddCommand(DryRun())
	cmd.AddCommand(Validate())
	cmd.AddCommand(RollbackValidate())

	// Mutating modes
	cmd.AddCommand(Write())
	cmd.AddCommand(Rollback())

	cmd.AddCommand(Version())

	return cmd
}
