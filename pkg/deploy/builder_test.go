// pkg/deploy/builder_test.go
// TEST TYPE: Integration Tests
// DEPENDENCIES: Filesystem (t.TempDir)
// PURPOSE: Test the fluent builder surface and whole-deployment flows
// through the public API

package deploy_test

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/resdeploy/pkg/bundle"
	"github.com/arthur-debert/resdeploy/pkg/deploy"
	"github.com/arthur-debert/resdeploy/pkg/errors"
	"github.com/arthur-debert/resdeploy/pkg/janitor"
	"github.com/arthur-debert/resdeploy/pkg/platform"
)

func compress(t *testing.T, data []byte) []byte {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer enc.Close()
	return enc.EncodeAll(data, nil)
}

// fixtureBundle lays out a development bundle with the platform
// directory structure the sample resources use.
func fixtureBundle(t *testing.T, files map[string][]byte) bundle.Bundle {
	t.Helper()
	root := t.TempDir()
	base := filepath.Join(root, "resources", platform.Name(), platform.Arch())
	require.NoError(t, os.MkdirAll(base, 0755))
	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(base, name), data, 0644))
	}
	return bundle.NewDir(root)
}

func TestLoad_SingleFile(t *testing.T) {
	content := []byte("dummy one payload\n")
	b := fixtureBundle(t, map[string][]byte{
		"dummy1.txt.zst": compress(t, content),
		"dummy3.txt.zst": compress(t, []byte("unrelated")),
	})

	target := filepath.Join(t.TempDir(), "T1")

	d, err := deploy.FromBundle(b, "resources/$(OS)/$(ARCH)/dummy1.txt.zst").
		To(filepath.Join(target, "$(ARCH)")).
		ShouldLoadLibraries(false).
		Load()
	require.NoError(t, err)

	wantRoot := filepath.Join(target, platform.Arch())
	assert.Equal(t, wantRoot, d.ActualDeploymentPath())

	data, err := os.ReadFile(filepath.Join(wantRoot, "dummy1.txt"))
	require.NoError(t, err)
	assert.Equal(t, content, data)

	_, err = os.Stat(filepath.Join(wantRoot, "dummy3.txt"))
	assert.True(t, os.IsNotExist(err), "unmatched resources are not deployed")

	assert.False(t, janitor.LockFileExists(wantRoot), "the directory lock is released")
}

func TestLoad_Star(t *testing.T) {
	payloads := map[string][]byte{}
	files := map[string][]byte{}
	for _, name := range []string{"dummy1", "dummy2", "dummy3", "dummy4"} {
		payload := []byte("payload of " + name)
		payloads[name+".txt"] = payload
		files[name+".txt.zst"] = compress(t, payload)
	}
	b := fixtureBundle(t, files)

	target := filepath.Join(t.TempDir(), "T2", "$(ARCH)")

	d, err := deploy.FromBundle(b, "resources/$(OS)/$(ARCH)/*").
		To(target).
		ShouldLoadLibraries(false).
		Load()
	require.NoError(t, err)

	for name, payload := range payloads {
		data, err := os.ReadFile(filepath.Join(d.ActualDeploymentPath(), name))
		require.NoError(t, err, "expected %s deployed", name)
		assert.Equal(t, payload, data)
	}
	assert.Len(t, d.Resources(), 4)
}

func TestLoad_ActualResourcePath(t *testing.T) {
	b := fixtureBundle(t, map[string][]byte{"dummy1.txt": []byte("x")})

	d, err := deploy.FromBundle(b, "resources/$(OS)/$(ARCH)/*").
		To(filepath.Join(t.TempDir(), "out")).
		ShouldLoadLibraries(false).
		Load()
	require.NoError(t, err)

	want := "/resources/" + platform.Name() + "/" + platform.Arch() + "/*"
	assert.Equal(t, want, d.ActualResourcePath())
}

func TestLoad_SecondLoadReusesDeployment(t *testing.T) {
	b := fixtureBundle(t, map[string][]byte{"dummy1.txt": []byte("original")})
	target := filepath.Join(t.TempDir(), "reuse")

	_, err := deploy.FromBundle(b, "resources/$(OS)/$(ARCH)/dummy1.txt").
		To(target).ShouldLoadLibraries(false).Load()
	require.NoError(t, err)

	// Scribble over the deployed file: the verify fast-path trusts
	// existing files and must not rewrite them.
	deployed := filepath.Join(target, "dummy1.txt")
	require.NoError(t, os.WriteFile(deployed, []byte("scribbled"), 0644))

	_, err = deploy.FromBundle(b, "resources/$(OS)/$(ARCH)/dummy1.txt").
		To(target).ShouldLoadLibraries(false).Load()
	require.NoError(t, err)

	data, err := os.ReadFile(deployed)
	require.NoError(t, err)
	assert.Equal(t, []byte("scribbled"), data)
}

func TestLoad_AlwaysOverwriteRedeploys(t *testing.T) {
	b := fixtureBundle(t, map[string][]byte{"dummy1.txt": []byte("original")})
	target := filepath.Join(t.TempDir(), "overwrite")

	deployed := filepath.Join(target, "dummy1.txt")
	require.NoError(t, os.MkdirAll(target, 0755))
	require.NoError(t, os.WriteFile(deployed, []byte("scribbled"), 0644))

	_, err := deploy.FromBundle(b, "resources/$(OS)/$(ARCH)/dummy1.txt").
		To(target).ShouldLoadLibraries(false).
		AlwaysOverwrite(true).
		Load()
	require.NoError(t, err)

	data, err := os.ReadFile(deployed)
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), data)
}

func TestLoad_IncompatibleOptions(t *testing.T) {
	b := fixtureBundle(t, map[string][]byte{"dummy1.txt": []byte("x")})

	_, err := deploy.FromBundle(b, "resources/$(OS)/$(ARCH)/dummy1.txt").
		To(filepath.Join(t.TempDir(), "out")).
		AlwaysOverwrite(true).
		ReusePartiallyDeployed(true).
		Load()
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrConfiguration))
}

func TestLoad_MissingBundle(t *testing.T) {
	_, err := deploy.From("resources/$(OS)/$(ARCH)/dummy1.txt").
		To(filepath.Join(t.TempDir(), "out")).
		ShouldLoadLibraries(false).
		Load()
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrConfiguration))
}

func TestLoad_EmptyLibrarySuffixRejected(t *testing.T) {
	b := fixtureBundle(t, map[string][]byte{"dummy1.txt": []byte("x")})

	_, err := deploy.FromBundle(b, "resources/$(OS)/$(ARCH)/dummy1.txt").
		To(filepath.Join(t.TempDir(), "out")).
		AddLibrarySuffix("").
		Load()
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrConfiguration))
}

func TestLoad_BadTemplate(t *testing.T) {
	_, err := deploy.From("resources/$(BOGUS)/x").
		To(filepath.Join(t.TempDir(), "out")).
		Load()
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrTemplateSyntax))
}

func TestLoad_ResourceNotFound(t *testing.T) {
	b := fixtureBundle(t, map[string][]byte{"dummy1.txt": []byte("x")})

	_, err := deploy.FromBundle(b, "resources/$(OS)/$(ARCH)/absent*").
		To(filepath.Join(t.TempDir(), "out")).
		ShouldLoadLibraries(false).
		Load()
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrResourceNotFound))
}

func TestLoad_LibrarySuffixRenamesOutput(t *testing.T) {
	ext := platform.DllExt()
	b := fixtureBundle(t, map[string][]byte{
		"libdummy" + ext + ".zst": compress(t, []byte("fake library bytes")),
	})

	d, err := deploy.FromBundle(b, "resources/$(OS)/$(ARCH)/*").
		To(filepath.Join(t.TempDir(), "renamed")).
		ShouldLoadLibraries(false).
		AddLibrarySuffix("-64").
		Load()
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(d.ActualDeploymentPath(), "libdummy-64"+ext))
	assert.NoError(t, err)
}

// Goroutine-level peers contend exactly like processes do: the
// advisory locks bind to each open file description. Every peer must
// end up with the same complete deployment.
func TestLoad_ConcurrentPeers(t *testing.T) {
	content := bytes.Repeat([]byte("data block "), 1024)
	files := map[string][]byte{}
	for _, name := range []string{"a", "b", "c", "d"} {
		files[name+".txt.zst"] = compress(t, content)
	}

	target := filepath.Join(t.TempDir(), "peers", "$(ARCH)")

	const peers = 8
	var wg sync.WaitGroup
	results := make([]error, peers)
	paths := make([]string, peers)

	for i := 0; i < peers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b := fixtureBundle(t, files)
			d, err := deploy.FromBundle(b, "resources/$(OS)/$(ARCH)/*").
				To(target).
				ShouldLoadLibraries(false).
				Load()
			results[i] = err
			if err == nil {
				paths[i] = d.ActualDeploymentPath()
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < peers; i++ {
		require.NoError(t, results[i], "peer %d", i)
		assert.Equal(t, paths[0], paths[i])
	}

	for _, name := range []string{"a.txt", "b.txt", "c.txt", "d.txt"} {
		data, err := os.ReadFile(filepath.Join(paths[0], name))
		require.NoError(t, err)
		assert.Equal(t, content, data)
	}
}
