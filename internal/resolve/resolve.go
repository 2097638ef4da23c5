// Package resolve maps a nominal config path to the file that must actually
// be edited, following symlinks. Inside a software image tree an absolute
// link target points at the image's own root, not the host root, so it is
// re-rooted onto the image path before following.
package resolve

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/clustertools/certauth/internal/runner"
)

// maxLinkDepth bounds symlink chains so a link cycle cannot hang a run.
const maxLinkDepth = 16

// Resolve returns the real path behind path on the target. imageRoot, when
// non-empty, is the root of a staged image filesystem; absolute symlink
// targets of links under it are reinterpreted relative to it. Resolution is
// idempotent: resolving an already-resolved path returns it unchanged.
func Resolve(ctx context.Context, t runner.Target, path, imageRoot string) (string, error) {
	cur := filepath.Clean(path)
	for depth := 0; depth < maxLinkDepth; depth++ {
		linkTarget, isLink, err := t.Readlink(ctx, cur)
		if err != nil {
			return "", fmt.Errorf("failed to inspect %s on %s: %w", cur, t.Name(), err)
		}
		if !isLink {
			return cur, nil
		}

		switch {
		case !filepath.IsAbs(linkTarget):
			cur = filepath.Clean(filepath.Join(filepath.Dir(cur), linkTarget))
		case imageRoot != "" && underRoot(cur, imageRoot):
			cur = filepath.Join(imageRoot, linkTarget)
		default:
			cur = filepath.Clean(linkTarget)
		}
	}
	return "", fmt.Errorf("symlink chain at %s exceeds %d links", path, maxLinkDepth)
}

// InImage joins a nominal host path onto an image root.
func InImage(imageRoot, path string) string {
	return filepath.Join(imageRoot, path)
}

func underRoot(path, root string) bool {
	root = filepath.Clean(root)
	return path == root || strings.HasPrefix(path, root+string(filepath.Separator))
}
