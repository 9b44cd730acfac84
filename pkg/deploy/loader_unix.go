//go:build !windows

package deploy

import "github.com/ebitengine/purego"

// RTLD_GLOBAL exposes each library's symbols to the ones loaded after
// it, which is what makes the fixed-point retry converge for
// inter-dependent libraries.
func dlopenLibrary(path string) error {
	_, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	return err
}
