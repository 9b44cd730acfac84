package deploy

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"

	"github.com/arthur-debert/resdeploy/pkg/janitor"
	"github.com/arthur-debert/resdeploy/pkg/platform"
	"github.com/arthur-debert/resdeploy/pkg/template"
)

// RandomDirRegex matches the basenames of one-shot random fallback
// subdirectories, for the exit sweep.
const RandomDirRegex = "^[0-9a-fA-F]{4,8}$"

// candidateRoots builds the ordered list of deployment roots to try
// for the expanded deployment path. Absolute paths stand alone (plus
// an optional random fallback); relative paths are joined onto the
// platform data roots, then the temp directory, then a random temp
// subdirectory. Fallback temp paths are registered for the exit sweep.
func candidateRoots(expanded string, addRandomFallback bool) []string {
	tempDir := os.TempDir()

	if filepath.IsAbs(expanded) {
		roots := []string{expanded}
		if addRandomFallback {
			roots = append(roots, filepath.Join(expanded, template.RandomDirString()))
			janitor.AddCleanupPath(expanded, false, RandomDirRegex)
		}
		return roots
	}

	var roots []string
	for _, dataRoot := range platformDataRoots() {
		if dataRoot == "" || !filepath.IsAbs(dataRoot) {
			continue
		}
		if _, err := os.Stat(dataRoot); err != nil {
			continue
		}
		roots = append(roots, filepath.Join(dataRoot, expanded))
	}

	// Temp dir and a random subdirectory of it are always candidates.
	fallback := filepath.Join(tempDir, expanded)
	roots = append(roots, fallback, filepath.Join(fallback, template.RandomDirString()))
	janitor.AddCleanupPath(fallback, false, RandomDirRegex)

	return roots
}

// platformDataRoots returns the per-user/per-machine data roots tried
// before the temp directory, most durable first. On unix platforms
// xdg supplies the conventional data home (~/.local/share on Linux,
// ~/Library/Application Support on macOS, both honoring
// XDG_DATA_HOME); Windows uses the machine then roaming app data.
func platformDataRoots() []string {
	if platform.IsWindows() {
		return []string{os.Getenv("ProgramData"), os.Getenv("AppData")}
	}
	return []string{xdg.DataHome}
}
