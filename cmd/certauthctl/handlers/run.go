// Package handlers implements the business logic for CLI commands.
//
// This package contains handler functions that are called by command
// definitions in the commands package. Handlers are framework-agnostic and
// can be tested independently of the CLI framework.
package handlers

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/clustertools/certauth/internal/config"
	"github.com/clustertools/certauth/internal/orchestrator"
)

// Options carries the flag values shared by every mode command.
type Options struct {
	ConfigPath string
	Verbose    bool
	AssumeYes  bool
}

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// loadSite loads the site configuration.
	loadSite = config.Load

	// executeRun builds and executes an orchestrated run.
	executeRun = func(ctx context.Context, run config.Run, site *config.Site, log logr.Logger) (*orchestrator.Summary, error) {
		return orchestrator.New(run, site, log).Execute(ctx)
	}

	// confirmRollback asks for interactive confirmation.
	confirmRollback = askRollbackConfirmation

	// isInteractive reports whether a user is on the other end of stdin.
	isInteractive = func() bool {
		return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	}

	// stdout is the summary destination (for testing injection).
	stdout io.Writer = os.Stdout
)

// Execute runs one mode end to end: load the site config, confirm a
// rollback if interactive, run all orchestrator stages and render the
// summary. The returned error is non-nil exactly when the process should
// exit non-zero.
func Execute(ctx context.Context, mode config.Mode, opts Options) error {
	site, err := loadSite(opts.ConfigPath)
	if err != nil {
		return err
	}

	run := config.Run{Mode: mode, AssumeYes: opts.AssumeYes, Verbose: opts.Verbose}

	if mode == config.ModeRollback && !run.AssumeYes {
		if !isInteractive() {
			return fmt.Errorf("rollback needs confirmation; pass --yes in non-interactive sessions")
		}
		ok, err := confirmRollback()
		if err != nil {
			return fmt.Errorf("confirmation failed: %w", err)
		}
		if !ok {
			return fmt.Errorf("rollback aborted")
		}
	}

	sum, err := executeRun(ctx, run, site, newLogger(run.Verbose))
	if err != nil {
		return err
	}

	fmt.Fprint(stdout, renderSummary(sum))
	return sum.Err()
}

// newLogger builds the structured logger for a run. Verbose enables
// debug-level output; either way logs go to stderr so the summary on
// stdout stays machine-readable.
func newLogger(verbose bool) logr.Logger {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	z, err := cfg.Build()
	if err != nil {
		return logr.Discard()
	}
	return zapr.NewLogger(z)
}
