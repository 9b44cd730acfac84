package janitor

import (
	"os"
	"path/filepath"

	"github.com/arthur-debert/resdeploy/pkg/locking"
)

// TryDeleteDirectory deletes dir only if none of the files in it are
// held open by someone else.
//
// If at least one file is locked the operation fails without deleting
// anything. Safe to call concurrently on a single directory; if the
// directory is modified by code that does not respect the lock file,
// its contents may still be deleted partially and false is returned.
//
// Returns true when every child and the directory itself were removed.
func TryDeleteDirectory(dir string) bool {
	lock := TryCreateLockFile(dir)
	if lock == nil {
		return false
	}
	defer lock.Close()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}

	var opened []*locking.LockedFile
	var found []string
	canDelete := true

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if isLockFile(path) {
			continue
		}

		// Subdirectories are never deleted; their presence means this
		// directory was not produced by a deployment.
		if entry.IsDir() {
			canDelete = false
			break
		}

		probe := tryOpenForWriteTest(path)
		if probe == nil {
			canDelete = false
			break
		}

		opened = append(opened, probe)
		found = append(found, path)
	}

	for _, probe := range opened {
		_ = probe.Close()
	}

	if !canDelete {
		return false
	}

	for _, path := range found {
		if !tryDelete(path) {
			return false
		}
	}

	// Close releases and deletes the lock file, leaving dir empty.
	lock.Close()
	return tryDelete(dir)
}
