package deploy

import (
	"sort"

	"github.com/arthur-debert/resdeploy/pkg/errors"
)

// openLibrary invokes the platform dynamic-library open primitive.
// Swappable so tests can observe load order without real libraries.
var openLibrary = dlopenLibrary

// loadLibraries loads every deployed dynamic library, ascending by
// order rank. Failed loads are retried on the next sweep: a library
// whose dependency loads later in the set succeeds on a subsequent
// pass, so the iteration runs to a fixed point instead of requiring
// declared dependencies. If libraries remain unloaded once no sweep
// makes progress, the last captured error surfaces.
func (e *Engine) loadLibraries(root string) error {
	sort.SliceStable(e.resources, func(i, j int) bool {
		return e.resources[i].Order < e.resources[j].Order
	})

	numLoaded := 0
	var lastErr error
	for {
		progress := false
		for _, r := range e.resources {
			if !r.IsDynamicLibrary || r.Loaded {
				continue
			}

			path := r.FullPath(root)
			e.log.Debug().Int("n", numLoaded+1).Str("path", path).Msg("loading library")

			if err := openLibrary(path); err != nil {
				lastErr = err
				e.log.Debug().Err(err).Str("path", path).Msg("library load failed, will retry")
				continue
			}

			r.Loaded = true
			numLoaded++
			progress = true
		}
		if !progress {
			break
		}
	}

	if numLoaded < e.dynamicLibraryCount {
		return errors.Wrapf(lastErr, errors.ErrLibraryLoad,
			"unable to load %d of %d dynamic libraries",
			e.dynamicLibraryCount-numLoaded, e.dynamicLibraryCount)
	}
	return nil
}
