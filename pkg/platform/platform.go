// Package platform reports the facts about the running platform that
// resource path templates depend on: the OS family name, the pointer
// width, the dynamic library extension and the module version.
package platform

import (
	"runtime"
	"runtime/debug"
	"strings"
	"unsafe"
)

// Family names as they appear in resource path templates.
const (
	Windows = "Windows"
	Linux   = "Linux"
	OSX     = "OSX"
)

// Name returns the template-visible OS family name.
// Platforms outside the three supported families map to the closest
// unix family so templates still expand to something usable.
func Name() string {
	switch runtime.GOOS {
	case "windows":
		return Windows
	case "darwin":
		return OSX
	default:
		return Linux
	}
}

// Is64 reports whether the platform pointer width is 64 bits.
func Is64() bool {
	return unsafe.Sizeof(uintptr(0)) == 8
}

// Arch returns "64" or "32" depending on the pointer width.
func Arch() string {
	if Is64() {
		return "64"
	}
	return "32"
}

// IsWindows reports whether the current OS family is Windows.
func IsWindows() bool { return Name() == Windows }

// IsLinux reports whether the current OS family is Linux.
func IsLinux() bool { return Name() == Linux }

// IsOSX reports whether the current OS family is OSX.
func IsOSX() bool { return Name() == OSX }

// DllExt returns the dynamic library extension with the leading dot:
// ".dll", ".so" or ".dylib".
func DllExt() string {
	switch Name() {
	case Windows:
		return ".dll"
	case OSX:
		return ".dylib"
	default:
		return ".so"
	}
}

// IsDllExt reports whether s equals the platform library extension.
func IsDllExt(s string) bool {
	return s == DllExt()
}

// Version returns the module version for $(VERSION) substitution.
// Binaries built outside module mode (or tests) report "0".
func Version() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "0"
	}
	v := info.Main.Version
	if v == "" || v == "(devel)" {
		return "0"
	}
	return strings.TrimPrefix(v, "v")
}
