// pkg/resources/enumerate_test.go
// TEST TYPE: Unit Tests
// DEPENDENCIES: Filesystem (t.TempDir)
// PURPOSE: Test source path parsing and bundle enumeration

package resources

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/resdeploy/pkg/bundle"
	"github.com/arthur-debert/resdeploy/pkg/errors"
	"github.com/arthur-debert/resdeploy/pkg/platform"
)

func TestParseSourcePath(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		wantPath     string
		wantDir      string
		wantPrefix   string
		wantSuffix   string
		wantWildcard bool
		wantErr      bool
	}{
		{
			name:     "single file",
			input:    "resources/Linux/64/dummy1.txt.zst",
			wantPath: "/resources/Linux/64/dummy1.txt.zst",
			wantDir:  "/resources/Linux/64",
		},
		{
			name:         "star",
			input:        "resources/Linux/64/*",
			wantPath:     "/resources/Linux/64/*",
			wantDir:      "/resources/Linux/64",
			wantWildcard: true,
		},
		{
			name:         "prefix and suffix around star",
			input:        "res/lib*_so_zst",
			wantPath:     "/res/lib*_so_zst",
			wantDir:      "/res",
			wantPrefix:   "lib",
			wantSuffix:   "_so_zst",
			wantWildcard: true,
		},
		{
			name:     "separator runs collapse",
			input:    "res//sub///f.txt",
			wantPath: "/res/sub/f.txt",
			wantDir:  "/res/sub",
		},
		{
			name:    "two stars",
			input:   "res/a*b*c",
			wantErr: true,
		},
		{
			name:    "star in directory component",
			input:   "res/*/f.txt",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSourcePath(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsErrorCode(err, errors.ErrTemplateSyntax))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPath, got.Path)
			assert.Equal(t, tt.wantDir, got.Dir)
			assert.Equal(t, tt.wantWildcard, got.HasWildcard)
			if tt.wantWildcard {
				assert.Equal(t, tt.wantPrefix, got.Prefix)
				assert.Equal(t, tt.wantSuffix, got.Suffix)
			}
		})
	}
}

func TestSourcePath_String(t *testing.T) {
	src, err := ParseSourcePath("res/lib*_so")
	require.NoError(t, err)
	assert.Equal(t, "/res/lib*_so", src.String())

	single, err := ParseSourcePath("res/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "/res/a.txt", single.String())
}

func testBundle(t *testing.T, files map[string]string) bundle.Bundle {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		full := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	}
	return bundle.NewDir(root)
}

func TestEnumerate_SingleFile(t *testing.T) {
	b := testBundle(t, map[string]string{"res/dummy1.txt": "hello"})

	src, err := ParseSourcePath("res/dummy1.txt")
	require.NoError(t, err)

	rs, err := Enumerate(b, src, "")
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, "dummy1.txt", rs[0].OutputName)
	assert.Equal(t, 5, rs[0].Length)
	assert.Equal(t, 0, rs[0].Order)
}

func TestEnumerate_SingleFileNotFound(t *testing.T) {
	b := testBundle(t, map[string]string{"res/other.txt": "x"})

	src, err := ParseSourcePath("res/dummy1.txt")
	require.NoError(t, err)

	_, err = Enumerate(b, src, "")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrResourceNotFound))
}

func TestEnumerate_Wildcard(t *testing.T) {
	b := testBundle(t, map[string]string{
		"res/dummy1.txt.zst": "1",
		"res/dummy2.txt.zst": "2",
		"res/dummy3.txt.zst": "3",
		"res/dummy4.txt.zst": "4",
		"res/other.bin":      "x",
	})

	src, err := ParseSourcePath("res/dummy*.txt.zst")
	require.NoError(t, err)

	rs, err := Enumerate(b, src, "")
	require.NoError(t, err)
	require.Len(t, rs, 4)
	for i, r := range rs {
		assert.Equal(t, i, r.Order, "implicit order follows discovery order")
		assert.True(t, strings.HasPrefix(r.OutputName, "dummy"))
		assert.True(t, strings.HasSuffix(r.OutputName, ".txt"))
	}
}

func TestEnumerate_WildcardEmpty(t *testing.T) {
	b := testBundle(t, map[string]string{"res/other.bin": "x"})

	src, err := ParseSourcePath("res/dummy*.txt")
	require.NoError(t, err)

	_, err = Enumerate(b, src, "")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrResourceNotFound))
}

func TestEnumerate_WildcardMatchRequiresBothEnds(t *testing.T) {
	b := testBundle(t, map[string]string{
		"res/ab":  "overlap candidate",
		"res/axb": "good",
	})

	src, err := ParseSourcePath("res/ax*b")
	require.NoError(t, err)

	rs, err := Enumerate(b, src, "")
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, "axb", rs[0].OutputName)
}

func TestEnumerate_LibraryFallbackVariants(t *testing.T) {
	ext := platform.DllExt()
	extU := "_" + strings.TrimPrefix(ext, ".")

	tests := []struct {
		name      string
		stored    string
		requested string
	}{
		{"lib prefix with underscore ext", "res/libfoo" + extU + ".zst", "res/foo" + ext + ".zst"},
		{"lib prefix with dot ext", "res/libfoo" + ext + ".zst", "res/foo" + ext + ".zst"},
		{"underscore ext only", "res/foo" + extU + ".zst", "res/foo" + ext + ".zst"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := testBundle(t, map[string]string{tt.stored: "lib bytes"})

			src, err := ParseSourcePath(tt.requested)
			require.NoError(t, err)

			rs, err := Enumerate(b, src, "")
			require.NoError(t, err, "fallback should resolve %s via %s", tt.requested, tt.stored)
			require.Len(t, rs, 1)
			assert.True(t, rs[0].IsDynamicLibrary)
		})
	}
}

func TestEnumerate_LibraryFallbackRejectsNonLibrary(t *testing.T) {
	b := testBundle(t, map[string]string{"res/libdata.txt": "x"})

	src, err := ParseSourcePath("res/data.txt")
	require.NoError(t, err)

	_, err = Enumerate(b, src, "")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrResourceNotFound))
}
