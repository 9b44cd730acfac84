package deploy

import (
	"sync"

	"github.com/arthur-debert/resdeploy/pkg/locking"
	"github.com/arthur-debert/resdeploy/pkg/resources"
)

// Process-wide holder list for read locks on loaded libraries. A
// pinned lock keeps the deployed file open for the life of the
// process so peers cannot delete or rewrite a library the runtime has
// mapped. Append-only, guarded by one mutex.
var (
	pinnedMu        sync.Mutex
	pinnedLibraries []*locking.LockedFile
)

// pinLibraryHandles moves the read locks of dynamic libraries into
// the process-wide holder list, where they outlive the engine.
func pinLibraryHandles(rs []*resources.Resource) {
	for _, r := range rs {
		if r.IsDynamicLibrary && r.ReadLock() != nil {
			pinnedMu.Lock()
			pinnedLibraries = append(pinnedLibraries, r.MoveReadLock())
			pinnedMu.Unlock()
		}
	}
}

// PinnedLibraryCount reports how many library handles are pinned for
// the life of the process.
func PinnedLibraryCount() int {
	pinnedMu.Lock()
	defer pinnedMu.Unlock()
	return len(pinnedLibraries)
}
