package deploy

import (
	"os"

	"github.com/arthur-debert/resdeploy/pkg/janitor"
)

// verifyExisting reports whether an intact prior deployment already
// satisfies this load. On success every resource holds a shared read
// lock on its deployed file; on failure no locks are held unless
// partial reuse is enabled.
//
// The retry loop covers one narrow race: some files exist but cannot
// be opened and no lock file explains why. A writer that does not
// speak our protocol may be mid-flight, so wait a little and look
// again until the retry timeout runs out.
func (e *Engine) verifyExisting(root string) bool {
	// Verify automatically fails when overwrite is forced.
	if e.alwaysOverwrite {
		return false
	}

	// Unless partial reuse is on, start with no files held.
	if !e.reusePartiallyDeployed {
		e.disposeResourceFiles()
	}

	ok := e.verifyLoop(root)

	if !ok && !e.reusePartiallyDeployed {
		e.disposeResourceFiles()
	}
	return ok
}

func (e *Engine) verifyLoop(root string) bool {
	timeout := e.retryTimeoutMs
	numExpected := len(e.resources)

	for {
		numFound, numOpened := 0, 0
		for _, r := range e.resources {
			path := r.FullPath(root)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			numFound++
			if r.ReadLock() == nil {
				if err := r.AcquireReadLock(root); err != nil {
					continue
				}
			}
			numOpened++
		}

		switch {
		case numFound == 0:
			// Nothing deployed here yet.
			return false
		case numOpened == numExpected:
			return true
		case numOpened == numFound:
			// Everything found opened fine; files are simply missing.
			return false
		case janitor.LockFileExists(root):
			// A peer is deploying; the caller will contend for the
			// lock instead of waiting here.
			return false
		}

		timeout -= randomSleep(timeout)
		if timeout <= 0 {
			return false
		}
	}
}
