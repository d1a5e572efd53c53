package build

import "fmt"

const (
	// AppMajor defines the major version of this binary.
	AppMajor uint = 0

	// AppMinor defines the minor version of this binary.
	AppMinor uint = 3

	// AppPatch defines the application patch for this binary.
	AppPatch uint = 1
)

// Commit stores the current commit hash of this build, this should be set
// using the -ldflags during compilation.
var Commit string

// Version returns the application version as a properly formed string.
func Version() string {
	return fmt.Sprintf("%d.%d.%d", AppMajor, AppMinor, AppPatch)
}
