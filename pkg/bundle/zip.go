package bundle

import (
	"archive/zip"
	"io"
	"strings"
)

// ZipBundle serves resources from the bundle archive itself.
type ZipBundle struct {
	rc   *zip.ReadCloser
	kind OriginKind
}

// OpenZip opens the bundle archive at path.
func OpenZip(path string) (*ZipBundle, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	return &ZipBundle{rc: rc, kind: OriginArchive}, nil
}

func zipEntry(f *zip.File, kind OriginKind) Entry {
	return Entry{
		Name:   normalize(f.Name),
		Size:   int64(f.UncompressedSize64),
		Kind:   kind,
		source: f,
	}
}

func zipLookup(files []*zip.File, kind OriginKind, path string) (Entry, bool) {
	path = normalize(path)
	for _, f := range files {
		if f.FileInfo().IsDir() {
			continue
		}
		if normalize(f.Name) == path {
			return zipEntry(f, kind), true
		}
	}
	return Entry{}, false
}

// zipList returns entries whose path begins with the directory prefix
// and is longer than it, in archive order.
func zipList(files []*zip.File, kind OriginKind, dir string) []Entry {
	prefix := normalize(dir)
	if prefix != "" {
		prefix += "/"
	}

	var out []Entry
	for _, f := range files {
		if f.FileInfo().IsDir() {
			continue
		}
		name := normalize(f.Name)
		if len(name) <= len(prefix) || !strings.HasPrefix(name, prefix) {
			continue
		}
		out = append(out, zipEntry(f, kind))
	}
	return out
}

// Lookup resolves a single archive entry by path.
func (b *ZipBundle) Lookup(path string) (Entry, bool) {
	return zipLookup(b.rc.File, b.kind, path)
}

// List returns every file entry under dir, deeper subdirectories
// included, in archive order.
func (b *ZipBundle) List(dir string) ([]Entry, error) {
	return zipList(b.rc.File, b.kind, dir), nil
}

// Open returns a reader over the entry's decompressed bytes.
func (b *ZipBundle) Open(e Entry) (io.ReadCloser, error) {
	f, ok := e.source.(*zip.File)
	if !ok {
		entry, found := b.Lookup(e.Name)
		if !found {
			return nil, io.ErrUnexpectedEOF
		}
		f = entry.source.(*zip.File)
	}
	return f.Open()
}

// Close releases the archive handle.
func (b *ZipBundle) Close() error {
	return b.rc.Close()
}
