// Package runner provides the execution-target abstraction: the same file
// and command operations against the local host or a remote host over ssh.
// Every mutation component is parameterized by Target so identical logic
// runs for the local head node, peer head nodes and live compute nodes.
package runner

import (
	"context"
	"os"
)

// Target executes commands and file operations on one host. Implementations
// must be safe for sequential reuse across many operations in a run.
//
// Run returns the combined output and exit code of a shell command; a
// non-zero exit is not an error. The returned error is reserved for
// transport-level failures (dial, session setup).
type Target interface {
	// Name identifies the target in logs and summaries.
	Name() string

	// Local reports whether operations execute on the calling host.
	Local() bool

	Run(ctx context.Context, command string) (output string, exitCode int, err error)

	ReadFile(ctx context.Context, path string) ([]byte, error)

	// WriteFile replaces the file content. The permission applies only
	// when the file is created; an existing file keeps its mode.
	WriteFile(ctx context.Context, path string, data []byte, perm os.FileMode) error

	FileExists(ctx context.Context, path string) (bool, error)

	// Readlink reports whether path is a symlink and, if so, its target.
	Readlink(ctx context.Context, path string) (target string, isLink bool, err error)

	// CopyFile copies src to dst within the target, preserving the
	// source file mode.
	CopyFile(ctx context.Context, src, dst string) error

	// Glob returns the paths matching a shell glob pattern, sorted. A
	// pattern with no matches returns an empty slice, not an error.
	Glob(ctx context.Context, pattern string) ([]string, error)
}
