package resources

import (
	"fmt"
	"strings"

	"github.com/arthur-debert/resdeploy/pkg/bundle"
	"github.com/arthur-debert/resdeploy/pkg/errors"
	"github.com/arthur-debert/resdeploy/pkg/platform"
)

// SourcePath is a parsed, expanded resource path template. A path
// without a wildcard names a single resource; with a wildcard, the
// basename is split into prefix and suffix around the one '*'.
type SourcePath struct {
	Path        string // full normalized path (single-resource form)
	Dir         string // directory component (wildcard form)
	Prefix      string // basename part before '*'
	Suffix      string // basename part after '*'
	HasWildcard bool
}

// ParseSourcePath normalizes and splits an expanded source path.
// Paths are always '/'-separated; runs of separators collapse.
func ParseSourcePath(expanded string) (SourcePath, error) {
	// Treat the path as absolute within the bundle.
	norm := "/" + expanded
	for strings.Contains(norm, "//") {
		norm = strings.ReplaceAll(norm, "//", "/")
	}

	lastSep := strings.LastIndex(norm, "/")
	dir := norm[:lastSep]
	base := norm[lastSep+1:]

	if strings.Contains(dir, "*") {
		return SourcePath{}, errors.Newf(errors.ErrTemplateSyntax,
			"'*' is only supported in the file name component: %s", norm)
	}

	parts := strings.SplitN(base, "*", 3)
	if len(parts) > 2 {
		return SourcePath{}, errors.Newf(errors.ErrTemplateSyntax,
			"resource path must contain at most one * character: %s", norm)
	}

	if len(parts) == 1 {
		return SourcePath{Path: norm, Dir: dir, Prefix: base}, nil
	}
	return SourcePath{
		Path:        norm,
		Dir:         dir,
		Prefix:      parts[0],
		Suffix:      parts[1],
		HasWildcard: true,
	}, nil
}

// String reconstructs the user-visible form of the source path.
func (s SourcePath) String() string {
	if s.HasWildcard {
		return fmt.Sprintf("%s/%s*%s", s.Dir, s.Prefix, s.Suffix)
	}
	return s.Path
}

// Enumerate discovers the resources matching src inside b, assigning
// enumeration-order ranks. librarySuffix is passed through to resource
// construction for dynamic library renaming.
func Enumerate(b bundle.Bundle, src SourcePath, librarySuffix string) ([]*Resource, error) {
	if !src.HasWildcard {
		entry, ok := b.Lookup(src.Path)
		if !ok {
			entry, ok = lookupSingleLibrary(b, src.Path)
		}
		if !ok {
			return nil, errors.Newf(errors.ErrResourceNotFound,
				"unable to find any resources at path: %s", src.Path)
		}
		r, err := New(entry, 0, librarySuffix)
		if err != nil {
			return nil, err
		}
		return []*Resource{r}, nil
	}

	entries, err := b.List(src.Dir)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrResourceNotFound,
			"unable to list resources at path: %s", src.Dir)
	}

	var out []*Resource
	for _, entry := range entries {
		base := entry.Name[strings.LastIndex(entry.Name, "/")+1:]
		if !matchesWildcard(base, src.Prefix, src.Suffix) {
			continue
		}
		r, err := New(entry, len(out), librarySuffix)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}

	if len(out) == 0 {
		return nil, errors.Newf(errors.ErrResourceNotFound,
			"no resource files were found at the specified path: %s", src)
	}
	return out, nil
}

func matchesWildcard(base, prefix, suffix string) bool {
	return len(base) >= len(prefix)+len(suffix) &&
		strings.HasPrefix(base, prefix) &&
		strings.HasSuffix(base, suffix)
}

// lookupSingleLibrary retries a failed single-resource lookup with the
// library name variants: with and without the "lib" prefix, crossed
// with '.' or '_' separating the extension.
func lookupSingleLibrary(b bundle.Bundle, path string) (bundle.Entry, bool) {
	iPathEnd := strings.LastIndex(path, "/") + 1

	name, _ := StripTags(strings.ReplaceAll(path[iPathEnd:], ".", "_"))
	if strings.HasSuffix(name, "_zst") {
		name = name[:len(name)-4]
	}

	underscoreExt := "_" + strings.TrimPrefix(platform.DllExt(), ".")
	if !strings.HasSuffix(name, underscoreExt) {
		return bundle.Entry{}, false
	}
	name = name[:len(name)-len(underscoreExt)]
	if name == "" {
		return bundle.Entry{}, false
	}

	// Locate the base library name inside the original path so the
	// trailing part (extension, compression suffix, tags) carries over.
	i := strings.Index(path[iPathEnd:], name)
	if i < 0 {
		return bundle.Entry{}, false
	}
	i += iPathEnd

	dir := path[:iPathEnd]
	tailDotted := path[i+len(name):]
	tailUnderscored := strings.ReplaceAll(tailDotted, platform.DllExt(), underscoreExt)

	for _, libPrefix := range []string{"lib", ""} {
		for _, tail := range []string{tailUnderscored, tailDotted} {
			if entry, ok := b.Lookup(dir + libPrefix + name + tail); ok {
				return entry, true
			}
		}
	}
	return bundle.Entry{}, false
}
