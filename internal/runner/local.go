package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
)

// Indirections over os-level calls so tests can inject controlled failures
// without depending on filesystem behavior.
var (
	osReadFile = os.ReadFile
	osLstat    = os.Lstat
	osStat     = os.Stat
	osReadlink = os.Readlink
)

// LocalTarget executes everything directly on the calling host.
type LocalTarget struct {
	// Shell is the shell used for Run, "/bin/sh" when empty.
	Shell string
}

// NewLocal returns a Target for the local host.
func NewLocal() *LocalTarget {
	return &LocalTarget{}
}

func (t *LocalTarget) Name() string { return "localhost" }

func (t *LocalTarget) Local() bool { return true }

func (t *LocalTarget) shell() string {
	if t.Shell != "" {
		return t.Shell
	}
	return "/bin/sh"
}

func (t *LocalTarget) Run(ctx context.Context, command string) (string, int, error) {
	cmd := exec.CommandContext(ctx, t.shell(), "-c", command) // #nosec G204
	out, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return string(out), exitErr.ExitCode(), nil
		}
		return string(out), -1, fmt.Errorf("failed to run %q: %w", command, err)
	}
	return string(out), 0, nil
}

func (t *LocalTarget) ReadFile(_ context.Context, path string) ([]byte, error) {
	return osReadFile(path) // #nosec G304
}

func (t *LocalTarget) WriteFile(_ context.Context, path string, data []byte, perm os.FileMode) error {
	return os.WriteFile(path, data, perm)
}

func (t *LocalTarget) FileExists(_ context.Context, path string) (bool, error) {
	_, err := osStat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (t *LocalTarget) Readlink(_ context.Context, path string) (string, bool, error) {
	info, err := osLstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return "", false, nil
	}
	target, err := osReadlink(path)
	if err != nil {
		return "", false, err
	}
	return target, true, nil
}

func (t *LocalTarget) CopyFile(_ context.Context, src, dst string) error {
	info, err := osStat(src)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", src, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", src)
	}

	in, err := os.Open(src) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm()) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", dst, err)
	}
	return nil
}

func (t *LocalTarget) Glob(_ context.Context, pattern string) ([]string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}
