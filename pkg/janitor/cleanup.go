package janitor

import (
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"sync"
	"syscall"
)

// CleanupEntry is a registered path to sweep: optionally the matching
// immediate subdirectories, optionally the path itself.
type CleanupEntry struct {
	path        string
	cleanSelf   bool
	subDirRegEx *regexp.Regexp
}

// tryCleanup attempts the sweep and reports whether everything it was
// asked to remove is gone.
func (c *CleanupEntry) tryCleanup() bool {
	if _, err := os.Stat(c.path); os.IsNotExist(err) {
		return true
	}

	success := true
	if c.subDirRegEx != nil {
		entries, err := os.ReadDir(c.path)
		if err != nil {
			return false
		}
		for _, entry := range entries {
			if entry.IsDir() && c.subDirRegEx.MatchString(entry.Name()) {
				success = TryDeleteDirectory(filepath.Join(c.path, entry.Name())) && success
			}
		}
	}

	if c.cleanSelf {
		success = TryDeleteDirectory(c.path) && success
	}

	return success
}

var (
	cleanupMu         sync.Mutex
	cleanupDirs       []*CleanupEntry
	handlerRegistered bool
)

// AddCleanupPath registers a path for the exit sweep. When cleanSelf is
// true the directory itself is removed; when subDirRegEx is non-empty,
// immediate subdirectories whose basename matches are removed first
// (not recursive). An invalid pattern registers nothing.
func AddCleanupPath(path string, cleanSelf bool, subDirRegEx string) {
	var re *regexp.Regexp
	if subDirRegEx != "" {
		var err error
		if re, err = regexp.Compile(subDirRegEx); err != nil {
			log.Warn().Err(err).Str("pattern", subDirRegEx).Msg("cleanup pattern rejected")
			return
		}
	}

	cleanupMu.Lock()
	defer cleanupMu.Unlock()
	cleanupDirs = append(cleanupDirs, &CleanupEntry{path: path, cleanSelf: cleanSelf, subDirRegEx: re})
}

// TryCleanup sweeps every registered entry now. Entries cleaned in
// full are removed from the registry; the rest stay for a later
// attempt. Returns true when the registry is empty afterwards.
func TryCleanup() bool {
	cleanupMu.Lock()
	defer cleanupMu.Unlock()

	remaining := cleanupDirs[:0]
	for _, entry := range cleanupDirs {
		if !entry.tryCleanup() {
			remaining = append(remaining, entry)
		}
	}
	cleanupDirs = remaining
	return len(cleanupDirs) == 0
}

// RegisterForCleanupOnExit installs the process-exit sweep. May be
// called several times but only has effect once.
//
// Go offers no atexit hook, so the sweep is bound to SIGINT/SIGTERM;
// binaries that exit normally should also defer Cleanup from main.
func RegisterForCleanupOnExit() {
	cleanupMu.Lock()
	defer cleanupMu.Unlock()

	if handlerRegistered {
		return
	}
	handlerRegistered = true

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ch
		TryCleanup()
		signal.Stop(ch)
		os.Exit(1)
	}()
}

// Cleanup is the deferred-from-main counterpart of the signal hook.
func Cleanup() {
	TryCleanup()
}
