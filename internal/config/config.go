// Package config holds the per-run mode value and the site configuration.
//
// The run mode is an immutable value constructed once by the CLI layer and
// threaded through every component; nothing in the tool consults a
// process-wide mode.
package config

import (
	"fmt"
	"strings"
)

// Mode selects what a run does. Exactly one is chosen per invocation.
type Mode string

const (
	// ModeDiscover reports topology and per-target directive state.
	ModeDiscover Mode = "discover"
	// ModeDryRun reports the changes a write run would make.
	ModeDryRun Mode = "dry-run"
	// ModeWrite applies the configuration edits.
	ModeWrite Mode = "write"
	// ModeValidate checks that the edits are in place and functional.
	ModeValidate Mode = "validate"
	// ModeRollback reverses the edits.
	ModeRollback Mode = "rollback"
	// ModeRollbackValidate checks that no engine-authored edit remains.
	ModeRollbackValidate Mode = "rollback-validate"
)

// Mutating reports whether the mode writes to target filesystems.
func (m Mode) Mutating() bool {
	return m == ModeWrite || m == ModeRollback
}

// RequiresRoot reports whether the mode needs elevated privilege. The
// validation modes are read-only but still read root-owned config files.
func (m Mode) RequiresRoot() bool {
	return m == ModeWrite || m == ModeValidate || m == ModeRollback
}

// Run is the immutable per-invocation configuration.
type Run struct {
	Mode Mode

	// AssumeYes skips the interactive rollback confirmation.
	AssumeYes bool

	// Verbose enables debug-level logging.
	Verbose bool
}

// Site is the optional site configuration file. Zero values fall back to
// the defaults applied by Load.
type Site struct {
	// CmshBin is the cluster-manager shell binary.
	CmshBin string `yaml:"cmshBin"`

	// SSH configures the remote execution channel to peer head nodes
	// and compute nodes.
	SSH SSH `yaml:"ssh"`

	// Paths overrides the default config file location per role:
	// ldap-client, nslcd, slapd, sssd.
	Paths map[string]string `yaml:"paths"`

	// ProbeCommand is the functional check run on each head node in
	// validate mode, e.g. an ldapsearch using SASL EXTERNAL. Empty
	// disables the probe.
	ProbeCommand string `yaml:"probeCommand"`

	// RestartCommand is the template used to restart a service, with
	// %s replaced by the service name.
	RestartCommand string `yaml:"restartCommand"`
}

// SSH is the remote channel configuration.
type SSH struct {
	User    string `yaml:"user"`
	KeyPath string `yaml:"keyPath"`
}

// Validate checks the site configuration for values the run cannot work
// with. Defaults are applied by Load before validation.
func (s *Site) Validate() error {
	if s.CmshBin == "" {
		return fmt.Errorf("cmshBin cannot be empty")
	}
	if s.SSH.User == "" {
		return fmt.Errorf("ssh.user cannot be empty")
	}
	if s.SSH.KeyPath == "" {
		return fmt.Errorf("ssh.keyPath cannot be empty")
	}
	if s.RestartCommand == "" {
		return fmt.Errorf("restartCommand cannot be empty")
	}
	if strings.Count(s.RestartCommand, "%s") != 1 {
		return fmt.Errorf("restartCommand must contain exactly one %%s for the service name")
	}
	for role := range s.Paths {
		switch role {
		case "ldap-client", "nslcd", "slapd", "sssd":
		default:
			return fmt.Errorf("paths: unknown role %q", role)
		}
	}
	return nil
}
