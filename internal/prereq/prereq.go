// Package prereq checks the hard preconditions of a run: the cluster
// manager shell must be on PATH, and mutating or privileged-read modes
// must run as root. These are the only two conditions that abort a run
// outright; everything else is per-target and fail-soft.
package prereq

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/clustertools/certauth/internal/config"
)

// Indirections for tests.
var (
	lookPath = exec.LookPath
	geteuid  = os.Geteuid
)

// Check verifies the preconditions for the given run against the site
// configuration. It returns the resolved cmsh path on success.
func Check(run config.Run, site *config.Site) (cmshPath string, err error) {
	cmshPath, lookErr := lookPath(site.CmshBin)
	if lookErr != nil {
		return "", fmt.Errorf("cluster manager shell %q not found: %w", site.CmshBin, lookErr)
	}

	if run.Mode.RequiresRoot() && geteuid() != 0 {
		return "", fmt.Errorf("mode %s requires root privileges", run.Mode)
	}

	return cmshPath, nil
}
