package bundle

import (
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DirBundle serves resources straight from a filesystem directory,
// the development layout.
type DirBundle struct {
	root string
}

// NewDir returns a bundle over the given directory root.
func NewDir(root string) *DirBundle {
	return &DirBundle{root: root}
}

func (b *DirBundle) fullPath(rel string) string {
	return filepath.Join(b.root, filepath.FromSlash(rel))
}

// Lookup resolves a single regular file under the root.
func (b *DirBundle) Lookup(path string) (Entry, bool) {
	full := b.fullPath(normalize(path))
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		return Entry{}, false
	}
	return Entry{
		Name:   normalize(path),
		Size:   info.Size(),
		Kind:   OriginFile,
		source: full,
	}, true
}

// List returns the regular files directly under dir, skipping
// subdirectories, sorted by file name.
func (b *DirBundle) List(dir string) ([]Entry, error) {
	dir = normalize(dir)
	entries, err := os.ReadDir(b.fullPath(dir))
	if err != nil {
		return nil, err
	}

	var out []Entry
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		name := entry.Name()
		rel := name
		if dir != "" {
			rel = dir + "/" + name
		}
		out = append(out, Entry{
			Name:   rel,
			Size:   info.Size(),
			Kind:   OriginFile,
			source: b.fullPath(rel),
		})
	}
	return out, nil
}

// Open opens the underlying file.
func (b *DirBundle) Open(e Entry) (io.ReadCloser, error) {
	path, ok := e.source.(string)
	if !ok {
		path = b.fullPath(strings.TrimPrefix(e.Name, "/"))
	}
	return os.Open(path)
}

// Close is a no-op; directory bundles hold no handle.
func (b *DirBundle) Close() error { return nil }
