package bundle

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
)

// NestedZipBundle serves resources from an archive stored inside the
// bundle archive. The inner archive is read into memory once; its
// entries are then served as in-memory streams.
type NestedZipBundle struct {
	outer  *zip.ReadCloser
	reader *zip.Reader
}

// OpenNestedZip opens the archive named inner inside the archive at
// outerPath.
func OpenNestedZip(outerPath, inner string) (*NestedZipBundle, error) {
	outer, err := zip.OpenReader(outerPath)
	if err != nil {
		return nil, err
	}

	entry, ok := zipLookup(outer.File, OriginArchive, inner)
	if !ok {
		outer.Close()
		return nil, fmt.Errorf("inner archive %q not found in %s", inner, outerPath)
	}

	src, err := entry.source.(*zip.File).Open()
	if err != nil {
		outer.Close()
		return nil, err
	}
	data, err := io.ReadAll(src)
	src.Close()
	if err != nil {
		outer.Close()
		return nil, err
	}

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		outer.Close()
		return nil, fmt.Errorf("inner archive %q unreadable: %w", inner, err)
	}

	return &NestedZipBundle{outer: outer, reader: reader}, nil
}

// Lookup resolves a single entry of the inner archive.
func (b *NestedZipBundle) Lookup(path string) (Entry, bool) {
	return zipLookup(b.reader.File, OriginStream, path)
}

// List returns every inner-archive file entry under dir, deeper
// subdirectories included.
func (b *NestedZipBundle) List(dir string) ([]Entry, error) {
	return zipList(b.reader.File, OriginStream, dir), nil
}

// Open returns a reader over the entry's bytes.
func (b *NestedZipBundle) Open(e Entry) (io.ReadCloser, error) {
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

// Close releases the outer archive handle.
func (b *NestedZipBundle) Close() error {
	return b.outer.Close()
}
