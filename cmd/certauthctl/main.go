// Package main is the entry point for the certauthctl CLI.
//
// certauthctl enables certificate-based LDAP authentication across a
// cluster: it mutates the LDAP client, lookup-daemon, identity-broker and
// directory-server configs on every head node, software image and live
// compute node, idempotently and with pristine backups for rollback.
//
// Commands: discover, dry-run, write, validate, rollback,
// rollback-validate.
//
// For detailed usage information, run:
//
//	certauthctl --help
package main

import (
	"fmt"
	"os"

	"github.com/clustertools/certauth/cmd/certauthctl/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
