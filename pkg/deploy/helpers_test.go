// pkg/deploy/helpers_test.go
// TEST TYPE: Test Helpers
// DEPENDENCIES: Filesystem (t.TempDir)
// PURPOSE: Shared fixtures for the deploy package tests

package deploy

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/resdeploy/pkg/locking"
)

func writeTestFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
}

// tryExclusive probes whether path can be opened under an exclusive
// lock right now.
func tryExclusive(path string) bool {
	locked, err := locking.OpenExclusive(path)
	if err != nil {
		return false
	}
	_ = locked.Close()
	return true
}

// zstdCompress produces a ZStandard frame carrying the frame content
// size, the way the resource build pipeline compresses bundles.
func zstdCompress(t *testing.T, data []byte) []byte {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer enc.Close()
	return enc.EncodeAll(data, nil)
}

// instantSleep makes the retry loops run without wall-clock delay.
func instantSleep(t *testing.T) {
	t.Helper()
	prev := sleep
	sleep = func(d time.Duration) {}
	t.Cleanup(func() { sleep = prev })
}
