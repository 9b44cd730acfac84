//go:build windows

package deploy

import "golang.org/x/sys/windows"

func dlopenLibrary(path string) error {
	_, err := windows.LoadLibraryEx(path, 0,
		windows.LOAD_WITH_ALTERED_SEARCH_PATH)
	return err
}
