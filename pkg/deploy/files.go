package deploy

import (
	"bytes"
	"io"
	"math"
	"sort"

	"github.com/klauspost/compress/zstd"

	"github.com/arthur-debert/resdeploy/pkg/errors"
	"github.com/arthur-debert/resdeploy/pkg/locking"
	"github.com/arthur-debert/resdeploy/pkg/platform"
	"github.com/arthur-debert/resdeploy/pkg/resources"
)

// readWriteBlockSize bounds each read/write slice so the liveness
// beacon gets touched between chunks of a large file.
const readWriteBlockSize = 1 << 24

// namePlaceholder is the literal the library build embeds in its own
// name; the rename patch overwrites it with the configured suffix.
const namePlaceholder = "@@@@"

// deployFiles writes every resource that does not already hold a read
// lock. Bigger files go first so a full disk surfaces before work is
// wasted on small files; resources locked by a prior verify pass sort
// to the front and are skipped.
func (e *Engine) deployFiles(root string) error {
	input := e.getInputBuffer()

	sort.SliceStable(e.resources, func(i, j int) bool {
		a, b := e.resources[i], e.resources[j]
		if (a.ReadLock() != nil) != (b.ReadLock() != nil) {
			return a.ReadLock() != nil
		}
		return a.Length > b.Length
	})

	for _, r := range e.resources {
		if r.ReadLock() != nil {
			continue
		}

		path := r.FullPath(root)
		e.log.Debug().Str("path", path).Msg("reading resource")

		if err := e.readResource(r, input[:r.Length]); err != nil {
			return err
		}
		output := input[:r.Length]

		if r.IsCompressed {
			decompressed, err := e.decompress(input[:r.Length], path)
			if err != nil {
				return err
			}
			output = decompressed
		}

		e.watchdogUpdate(false)

		// Patch the library's embedded self-reference when renaming,
		// so the dynamic loader resolves inter-library references
		// under the new filenames.
		if r.IsDynamicLibrary && e.librarySuffix != "" {
			patchEmbeddedName(output, namePlaceholder, e.librarySuffix)
		}

		e.log.Debug().Str("path", path).Msg("writing resource")
		if err := e.writeResource(path, output); err != nil {
			return err
		}

		e.log.Debug().Str("path", path).Msg("taking read lock")
		if err := r.AcquireReadLock(root); err != nil {
			return errors.Wrapf(err, errors.ErrDeployIO,
				"unable to reopen deployed file for read: %s", path)
		}
	}

	return nil
}

// getInputBuffer returns the reusable source buffer, allocated once
// to the largest source length.
func (e *Engine) getInputBuffer() []byte {
	if e.inputBuffer == nil {
		e.inputBuffer = make([]byte, e.maxResourceLength)
	}
	return e.inputBuffer
}

// readResource fills buf with the resource's source bytes, touching
// the beacon between chunks.
func (e *Engine) readResource(r *resources.Resource, buf []byte) error {
	src, err := e.bundle.Open(r.Entry)
	if err != nil {
		return errors.Wrapf(err, errors.ErrDeployIO,
			"unable to open resource: %s", r.DisplayName)
	}
	defer src.Close()

	for pos := 0; pos < len(buf); {
		end := min(pos+readWriteBlockSize, len(buf))
		n, err := io.ReadFull(src, buf[pos:end])
		pos += n
		if err != nil {
			return errors.Wrapf(err, errors.ErrDeployIO,
				"unable to read resource file: %s", r.DisplayName)
		}
		e.watchdogUpdate(false)
	}
	return nil
}

// decompress expands a ZStandard-compressed source into the
// monotonically growing output buffer.
func (e *Engine) decompress(compressed []byte, path string) ([]byte, error) {
	var header zstd.Header
	if err := header.Decode(compressed); err != nil {
		return nil, errors.Wrapf(err, errors.ErrDeployIO,
			"unable to read compression header: %s", path)
	}
	if header.HasFCS && header.FrameContentSize > math.MaxInt32 {
		return nil, errors.Newf(errors.ErrResourceInvalid,
			"decompressed file size is too big: %d for %s", header.FrameContentSize, path)
	}

	if e.decoder == nil {
		dec, err := zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderMaxMemory(math.MaxInt32))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrDeployIO, "unable to create decompressor")
		}
		e.decoder = dec
	}

	out, err := e.decoder.DecodeAll(compressed, e.outputBuffer[:0])
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrDeployIO,
			"unable to decompress resource: %s", path)
	}
	if len(out) > math.MaxInt32 {
		return nil, errors.Newf(errors.ErrResourceInvalid,
			"decompressed file size is too big: %d for %s", len(out), path)
	}

	e.outputBuffer = out
	return out, nil
}

// writeResource creates the destination under an exclusive lock,
// writes in bounded chunks with a sync and a beacon touch between
// them, truncates to the final length and closes.
func (e *Engine) writeResource(path string, data []byte) error {
	locked, err := locking.OpenExclusive(path)
	if err != nil {
		return errors.Wrapf(err, errors.ErrDeployIO,
			"unable to open destination for write: %s", path)
	}
	defer locked.Close()

	f := locked.File()
	for pos := 0; pos < len(data); {
		end := min(pos+readWriteBlockSize, len(data))
		n, err := f.WriteAt(data[pos:end], int64(pos))
		pos += n
		if err != nil {
			return errors.Wrapf(err, errors.ErrDeployIO,
				"unable to write resource file: %s", path)
		}
		if pos < len(data) {
			_ = f.Sync()
		}
		e.watchdogUpdate(false)
	}

	if err := f.Truncate(int64(len(data))); err != nil {
		return errors.Wrapf(err, errors.ErrDeployIO,
			"unable to truncate resource file: %s", path)
	}
	return nil
}

// patchEmbeddedName rewrites the first occurrence of from+libext in
// data to to+libext, zero-padding up to the original length. Skipped
// on Windows and when the replacement would not fit.
//
// The zero padding only matches runtime behavior when the embedded
// reference is NUL-terminated in the binary, which the placeholder
// contract guarantees; behavior for non-NUL-terminated references is
// undefined.
func patchEmbeddedName(data []byte, from, to string) {
	if platform.IsWindows() || to == "" || len(to) > len(from) {
		return
	}

	ext := platform.DllExt()
	src := []byte(from + ext)
	dst := []byte(to + ext)

	i := bytes.Index(data, src)
	if i < 0 {
		return
	}
	for k := range src {
		if k < len(dst) {
			data[i+k] = dst[k]
		} else {
			data[i+k] = 0
		}
	}
}
