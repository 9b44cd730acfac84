// Package resources models the files a deployment materializes and
// discovers them inside an application bundle from an expanded source
// path template.
package resources

import (
	"math"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/arthur-debert/resdeploy/pkg/bundle"
	"github.com/arthur-debert/resdeploy/pkg/errors"
	"github.com/arthur-debert/resdeploy/pkg/locking"
	"github.com/arthur-debert/resdeploy/pkg/platform"
)

// Resource is one file to be deployed.
type Resource struct {
	// Entry is the bundle entry the bytes come from; its Kind tags
	// the origin (file, archive entry, in-memory stream).
	Entry bundle.Entry

	// DisplayName is the original name inside the bundle, tags
	// removed.
	DisplayName string

	// OutputName is the name written to disk: underscores become
	// dots, a trailing .zst is stripped, and the optional library
	// name suffix is inserted before the extension.
	OutputName string

	// IsCompressed marks sources that need ZStandard decompression.
	IsCompressed bool

	// IsDynamicLibrary marks resources ending in the platform library
	// extension; these are loaded after deployment.
	IsDynamicLibrary bool

	// Length is the source byte length before decompression.
	Length int

	// Order is the load rank. Explicitly tagged orders are shifted
	// below the implicit enumeration range so they always load first.
	Order int

	// Loaded flips true once the library-loading primitive succeeds.
	Loaded bool

	readLock *locking.LockedFile
}

// New builds a Resource from a bundle entry. initialOrder is the
// zero-based enumeration index used when no order tag is present;
// librarySuffix optionally renames dynamic libraries.
func New(entry bundle.Entry, initialOrder int, librarySuffix string) (*Resource, error) {
	base := path.Base(entry.Name)
	display, tags := StripTags(base)

	fileName := strings.ReplaceAll(display, "_", ".")
	isZstd := strings.HasSuffix(fileName, ".zst")
	if isZstd {
		fileName = fileName[:len(fileName)-4]
	}
	fileName = renameLibrary(fileName, librarySuffix)

	order := initialOrder
	for key, value := range tags {
		if key != "order" {
			return nil, errors.Newf(errors.ErrTemplateSyntax, "invalid tag: [%s@%s]", key, value)
		}
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return nil, errors.Newf(errors.ErrTemplateSyntax,
				"order tag invalid, non-negative integer expected: [order@%s]", value)
		}
		// Shifting by MinInt32 places every explicit order below the
		// implicit enumeration range.
		order = n + math.MinInt32
	}

	if entry.Size < 0 {
		return nil, errors.Newf(errors.ErrResourceInvalid,
			"resource file '%s' length is negative: %d", entry.Name, entry.Size)
	}
	if entry.Size > math.MaxInt32 {
		return nil, errors.Newf(errors.ErrResourceInvalid,
			"resource file '%s' length is too big: %d", entry.Name, entry.Size)
	}

	return &Resource{
		Entry:            entry,
		DisplayName:      display,
		OutputName:       fileName,
		IsCompressed:     isZstd,
		IsDynamicLibrary: strings.HasSuffix(fileName, platform.DllExt()),
		Length:           int(entry.Size),
		Order:            order,
	}, nil
}

// renameLibrary inserts the configured suffix before a dynamic
// library's extension; other names pass through unchanged.
func renameLibrary(fileName, suffix string) string {
	if suffix == "" {
		return fileName
	}
	lastDot := strings.LastIndex(fileName, ".")
	if lastDot < 0 || !platform.IsDllExt(fileName[lastDot:]) {
		return fileName
	}
	return fileName[:lastDot] + suffix + fileName[lastDot:]
}

// FullPath returns the deployed location of the resource under root.
func (r *Resource) FullPath(root string) string {
	return filepath.Join(root, r.OutputName)
}

// ReadLock returns the held shared lock, or nil.
func (r *Resource) ReadLock() *locking.LockedFile { return r.readLock }

// SetReadLock replaces the held lock, closing any previous one.
func (r *Resource) SetReadLock(lock *locking.LockedFile) {
	if lock == r.readLock {
		return
	}
	if r.readLock != nil {
		_ = r.readLock.Close()
	}
	r.readLock = lock
}

// MoveReadLock hands the held lock to the caller, leaving none.
func (r *Resource) MoveReadLock() *locking.LockedFile {
	lock := r.readLock
	r.readLock = nil
	return lock
}

// AcquireReadLock opens the deployed file and retains a shared lock.
func (r *Resource) AcquireReadLock(root string) error {
	lock, err := locking.OpenShared(r.FullPath(root))
	if err != nil {
		return err
	}
	r.SetReadLock(lock)
	return nil
}

// Close releases the held read lock, if any.
func (r *Resource) Close() {
	r.SetReadLock(nil)
}
