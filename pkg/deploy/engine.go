// Package deploy implements the deployment engine: it selects a
// writable deployment root, coordinates with peer processes through
// the directory lock file, verifies or writes the resource files, and
// loads deployed dynamic libraries.
package deploy

import (
	"os"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"

	"github.com/arthur-debert/resdeploy/pkg/bundle"
	"github.com/arthur-debert/resdeploy/pkg/errors"
	"github.com/arthur-debert/resdeploy/pkg/janitor"
	"github.com/arthur-debert/resdeploy/pkg/logging"
	"github.com/arthur-debert/resdeploy/pkg/platform"
	"github.com/arthur-debert/resdeploy/pkg/resources"
	"github.com/arthur-debert/resdeploy/pkg/template"
)

// lockUpdatePeriod is the liveness beacon period. Fixed, and frequent
// enough that no concurrent process times out regardless of how big
// its own files are; at most half the size-derived default retry
// timeout, which is never below 4 s. An explicit RetryTimeout override
// is not checked against it.
const lockUpdatePeriod = 2 * time.Second

// Engine is the per-load deployment state machine. One Load call runs
// on its calling thread; the engine spawns no goroutines.
type Engine struct {
	// user-settable options
	alwaysOverwrite        bool
	reusePartiallyDeployed bool
	addRandomFallback      bool
	shouldLoadLibraries    bool
	librarySuffix          string
	retryTimeoutMs         int64

	resourceTemplate   string
	deploymentTemplate string

	// keepLibrariesLocked pins loaded library handles for the process
	// lifetime; forced on every non-Windows platform.
	keepLibrariesLocked bool

	src        resources.SourcePath
	bundle     bundle.Bundle
	ownsBundle bool

	lastSuccessfulPath string
	lastUsedPath       string
	lastDeploymentErr  error

	lockFile       *janitor.LockFile
	lockLastUpdate time.Time

	resources           []*resources.Resource
	maxResourceLength   int
	totalResourceLen    int
	dynamicLibraryCount int

	// inputBuffer is sized once to the largest source; outputBuffer
	// grows monotonically to the largest decompressed size.
	inputBuffer  []byte
	outputBuffer []byte
	decoder      *zstd.Decoder

	log zerolog.Logger
}

func newEngine() *Engine {
	return &Engine{
		shouldLoadLibraries: true,
		retryTimeoutMs:      -1,
		log:                 logging.GetLogger("deploy"),
	}
}

// load runs the whole deployment: expand templates, enumerate
// resources, then try candidate roots in order until one succeeds.
func (e *Engine) load() error {
	if e.resourceTemplate == "" {
		return errors.New(errors.ErrConfiguration,
			"resource path is not set, use From(resourcePathTemplate) to set")
	}
	if e.deploymentTemplate == "" {
		return errors.New(errors.ErrConfiguration,
			"deployment path is not set, use To(deploymentPathTemplate) to set")
	}
	if e.alwaysOverwrite && e.reusePartiallyDeployed {
		return errors.New(errors.ErrConfiguration,
			"AlwaysOverwrite is not compatible with ReusePartiallyDeployed")
	}
	if e.bundle == nil {
		return errors.New(errors.ErrConfiguration,
			"bundle is not set, use FromBundle or WithBundle to set")
	}

	expanded, err := template.ExpandDestination(e.deploymentTemplate, os.TempDir())
	if err != nil {
		return err
	}

	roots := candidateRoots(expanded, e.addRandomFallback)
	janitor.RegisterForCleanupOnExit()

	for _, root := range roots {
		e.log.Debug().Str("root", root).Msg("candidate deployment root")
	}

	defer func() {
		if e.ownsBundle {
			_ = e.bundle.Close()
		}
	}()

	if e.resources == nil {
		if err := e.listResources(); err != nil {
			return errors.Wrapf(err, errors.GetErrorCode(err),
				"failed to list resources at: %s", e.resourceTemplate)
		}
	}

	for _, root := range roots {
		if e.tryLoadAt(root) {
			return nil
		}
	}

	return errors.Wrapf(e.lastDeploymentErr, errors.GetErrorCode(e.lastDeploymentErr),
		"failed to deploy native resources using path: %s", e.lastUsedPath)
}

// listResources enumerates the bundle and computes the aggregate
// lengths the buffers and the retry timeout derive from.
func (e *Engine) listResources() error {
	rs, err := resources.Enumerate(e.bundle, e.src, e.librarySuffix)
	if err != nil {
		return err
	}

	e.resources = rs
	e.maxResourceLength = 0
	e.totalResourceLen = 0
	e.dynamicLibraryCount = 0
	for _, r := range rs {
		if r.Length > e.maxResourceLength {
			e.maxResourceLength = r.Length
		}
		e.totalResourceLen += r.Length
		if r.IsDynamicLibrary {
			e.dynamicLibraryCount++
		}
		e.log.Debug().Int("order", r.Order).Str("file", r.OutputName).Msg("resource discovered")
	}
	return nil
}

// tryLoadAt attempts one candidate root, retaining any failure as the
// last deployment error.
func (e *Engine) tryLoadAt(root string) bool {
	e.lastUsedPath = root

	if err := e.loadAt(root); err != nil {
		e.lastDeploymentErr = err
		e.log.Debug().Err(err).Str("root", root).Msg("failed to deploy")
		return false
	}

	e.lastSuccessfulPath = root
	return true
}

// loadAt runs the per-root protocol: ensure the directory, verify or
// deploy under the directory lock, then load libraries and pin their
// handles. All exit paths release the per-file locks (except pinned
// ones) and the directory lock.
func (e *Engine) loadAt(root string) (err error) {
	if info, statErr := os.Stat(root); statErr == nil {
		if !info.IsDir() {
			return errors.Newf(errors.ErrDeployIO, "deployment path is not a directory: %s", root)
		}
	} else if mkErr := os.MkdirAll(root, 0755); mkErr != nil {
		return errors.Wrapf(mkErr, errors.ErrDeployIO, "unable to create deployment path: %s", root)
	}

	if e.retryTimeoutMs < 0 {
		// Sized for a slow disk: 4 MB/s plus four seconds of headroom.
		e.retryTimeoutMs = int64(e.totalResourceLen)/4000 + 4000
	}

	if !platform.IsWindows() {
		e.keepLibrariesLocked = true
	}

	e.log.Debug().
		Int64("retryTimeoutMs", e.retryTimeoutMs).
		Bool("keepLibrariesLocked", e.keepLibrariesLocked).
		Str("root", root).
		Msg("deploying")

	defer func() {
		e.disposeResourceFiles()
		if e.lockFile != nil {
			e.watchdogUpdate(true)
		}
		e.setLockFile(nil)
	}()

	if err := e.verifyOrDeploy(root); err != nil {
		e.setLockFile(nil)
		return err
	}

	if e.shouldLoadLibraries {
		if err := e.loadLibraries(root); err != nil {
			// Libraries stay mapped (the platform does not truly
			// unload) but the flags are reset so state is consistent.
			for _, r := range e.resources {
				r.Loaded = false
			}
			e.setLockFile(nil)
			return err
		}
		if e.keepLibrariesLocked {
			pinLibraryHandles(e.resources)
		}
	}

	return nil
}

// verifyOrDeploy checks for an intact prior deployment, and deploys
// under the directory lock when there is none. The lock file, when
// taken, is released by loadAt's deferred close-down.
func (e *Engine) verifyOrDeploy(root string) error {
	e.disposeResourceFiles()

	if e.verifyExisting(root) {
		e.log.Debug().Msg("all files already deployed")
		return nil
	}

	if err := e.acquireDirLock(root); err != nil {
		return err
	}

	// A peer may have just finished deploying; check again under the
	// lock before writing anything.
	if e.verifyExisting(root) {
		e.log.Debug().Msg("verified files after lock")
		return nil
	}

	e.log.Debug().Str("root", root).Msg("deploying files")
	e.watchdogInit()

	if err := e.deployFiles(root); err != nil {
		return err
	}

	e.watchdogUpdate(false)
	return nil
}

// acquireDirLock takes the directory lock, waiting out live peers.
// Three attempt rounds are spaced by random sleeps; when the rounds
// are exhausted the peer's beacon decides between waiting more and
// failing. A beacon within [now-T, now+10T] counts as live; the
// future-extending arm tolerates peer clock skew.
func (e *Engine) acquireDirLock(root string) error {
	start := time.Now()
	start0 := start
	retries := 3
	timeout := e.retryTimeoutMs

	for e.setLockFile(janitor.TryCreateLockFile(root)) == nil {
		elapsed := time.Since(start).Milliseconds()
		// Sleep at least once regardless of time remaining, then
		// re-check.
		randomSleep(timeout - elapsed)
		if elapsed < timeout {
			continue
		}
		if retries--; retries >= 0 {
			continue
		}

		// An unreadable lock file reports the zero time, which lands
		// far outside the liveness window and counts as orphaned.
		lockAge := time.Since(janitor.LockFileWriteTime(root)).Milliseconds()
		if lockAge < timeout && lockAge > -10*timeout {
			start = time.Now()
			retries = 3
			e.log.Debug().Int64("lockAgeMs", lockAge).Msg("lock timer extended")
			continue
		}

		elapsedTotal := time.Since(start0).Milliseconds()
		return errors.Newf(errors.ErrDeployLocked,
			"unable to grab lock file (timeout: %d ms, elapsed: %d ms, lock age: %d ms)",
			timeout, elapsedTotal, lockAge).
			WithDetail("lockAgeMs", lockAge)
	}

	e.log.Debug().Str("path", e.lockFile.Path()).Msg("lock taken")
	return nil
}

// setLockFile swaps the held directory lock, closing the old one.
func (e *Engine) setLockFile(lock *janitor.LockFile) *janitor.LockFile {
	if lock != e.lockFile {
		e.lockFile.Close()
		e.lockFile = lock
	}
	return e.lockFile
}

// disposeResourceFiles drops every held per-file read lock.
func (e *Engine) disposeResourceFiles() {
	for _, r := range e.resources {
		r.SetReadLock(nil)
	}
}

// watchdogInit arms the beacon so the first update writes through.
func (e *Engine) watchdogInit() {
	e.lockLastUpdate = time.Now().Add(-lockUpdatePeriod)
}

// watchdogUpdate rewrites byte zero of the lock file and flushes, at
// most once per beacon period unless forced. Peers read the file's
// timestamp to tell a live holder from an orphaned lock.
func (e *Engine) watchdogUpdate(force bool) {
	if e.lockFile == nil {
		return
	}
	if !force && time.Since(e.lockLastUpdate) <= lockUpdatePeriod {
		return
	}
	e.lockLastUpdate = time.Now()

	f := e.lockFile.File()
	if _, err := f.WriteAt([]byte{0}, 0); err == nil {
		_ = f.Sync()
		e.log.Trace().Msg("lock file updated")
	}
}
