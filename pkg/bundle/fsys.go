package bundle

import (
	"io"
	"io/fs"
)

// FSBundle adapts any fs.FS as a bundle, most usefully an embed.FS,
// the Go way of shipping resources inside the binary. Entries are
// stream-origin: their bytes come from the fs.FS, not from a file the
// deploy engine could lock.
type FSBundle struct {
	fsys fs.FS
}

// NewFS returns a bundle over fsys.
func NewFS(fsys fs.FS) *FSBundle {
	return &FSBundle{fsys: fsys}
}

// Lookup resolves a single file by its bundle-relative path.
func (b *FSBundle) Lookup(path string) (Entry, bool) {
	name := normalize(path)
	info, err := fs.Stat(b.fsys, name)
	if err != nil || info.IsDir() {
		return Entry{}, false
	}
	return Entry{
		Name:   name,
		Size:   info.Size(),
		Kind:   OriginStream,
		source: name,
	}, true
}

// List returns the files directly under dir, skipping subdirectories.
func (b *FSBundle) List(dir string) ([]Entry, error) {
	name := normalize(dir)
	if name == "" {
		name = "."
	}
	entries, err := fs.ReadDir(b.fsys, name)
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
		rel := entry.Name()
		if name != "." {
			rel = name + "/" + rel
		}
		out = append(out, Entry{
			Name:   rel,
			Size:   info.Size(),
			Kind:   OriginStream,
			source: rel,
		})
	}
	return out, nil
}

// Open opens the entry's stream.
func (b *FSBundle) Open(e Entry) (io.ReadCloser, error) {
	name, ok := e.source.(string)
	if !ok {
		name = normalize(e.Name)
	}
	return b.fsys.Open(name)
}

// Close is a no-op; the fs.FS belongs to the caller.
func (b *FSBundle) Close() error { return nil }
