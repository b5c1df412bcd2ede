package buildtool

import "runtime"

// sharedLibExt returns the platform's shared-library suffix, used to
// guess the default C-family build output name.
func sharedLibExt() string {
	switch runtime.GOOS {
	case "darwin":
		return ".dylib"
	case "windows":
		return ".dll"
	default:
		return ".so"
	}
}
