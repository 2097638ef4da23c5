// Package backup creates and looks up timestamped copies of config files.
// The first backup of a file is its pristine pre-mutation state; the store
// never creates a second one, so the oldest backup always represents true
// original content.
package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/clustertools/certauth/internal/runner"
)

const (
	// Suffix separates a backup copy from its original.
	Suffix = ".backup."
	// SafetySuffix names the snapshot taken before a heuristic strip.
	SafetySuffix = ".pre-rollback."

	timestampLayout = "20060102_150405"
)

// Store creates and finds backups on a target.
type Store struct {
	// Now supplies backup timestamps; overridable in tests.
	Now func() time.Time
}

// NewStore returns a Store using wall-clock timestamps.
func NewStore() *Store {
	return &Store{Now: time.Now}
}

// Ensure guarantees a pristine backup of realPath exists. If any backup is
// already present it is returned untouched and no copy is made; otherwise
// the file is copied to <realPath>.backup.<timestamp>. Timestamps collide
// only within one second, acceptable for a human-paced tool.
func (s *Store) Ensure(ctx context.Context, t runner.Target, realPath string) (backupPath string, created bool, err error) {
	existing, err := s.find(ctx, t, realPath)
	if err != nil {
		return "", false, err
	}
	if existing != "" {
		return existing, false, nil
	}

	backupPath = realPath + Suffix + s.Now().Format(timestampLayout)
	if err := t.CopyFile(ctx, realPath, backupPath); err != nil {
		return "", false, fmt.Errorf("failed to back up %s on %s: %w", realPath, t.Name(), err)
	}
	return backupPath, true, nil
}

// Pristine returns the backup holding original content for realPath, or
// ok=false when none exists. With a single backup the answer is exact; if
// manual copies crept in, the temporally first one is taken, since only it
// can predate every mutation. The timestamp suffix makes lexicographic and
// temporal order coincide.
func (s *Store) Pristine(ctx context.Context, t runner.Target, realPath string) (backupPath string, ok bool, err error) {
	existing, err := s.find(ctx, t, realPath)
	if err != nil {
		return "", false, err
	}
	return existing, existing != "", nil
}

// SafetyCopy snapshots current content to <path>.pre-rollback.<timestamp>
// so a heuristic strip is never destructive without a fallback.
func (s *Store) SafetyCopy(ctx context.Context, t runner.Target, realPath string) (string, error) {
	copyPath := realPath + SafetySuffix + s.Now().Format(timestampLayout)
	if err := t.CopyFile(ctx, realPath, copyPath); err != nil {
		return "", fmt.Errorf("failed to snapshot %s on %s: %w", realPath, t.Name(), err)
	}
	return copyPath, nil
}

func (s *Store) find(ctx context.Context, t runner.Target, realPath string) (string, error) {
	matches, err := t.Glob(ctx, realPath+Suffix+"*")
	if err != nil {
		return "", fmt.Errorf("failed to look up backups of %s on %s: %w", realPath, t.Name(), err)
	}
	if len(matches) == 0 {
		return "", nil
	}
	return matches[0], nil
}
