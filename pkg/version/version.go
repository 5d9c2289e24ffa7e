package version

import (
	"fmt"
	"runtime"
)

// Version represents the current version of minidbg.
type Version struct {
	Major    string
	Minor    string
	Patch    string
	Metadata string
	Build    string
}

// DebuggerVersion is the current version of minidbg.
var DebuggerVersion = Version{
	Major: "0", Minor: "3", Patch: "1", Metadata: "",
	Build: "$Id$",
}

func (v Version) String() string {
	ver := fmt.Sprintf("%s.%s.%s", v.Major, v.Minor, v.Patch)
	if v.Metadata != "" {
		ver += "-" + v.Metadata
	}
	return ver
}

// BuildInfo returns the Go runtime this binary was built with.
func BuildInfo() string {
	return runtime.Version()
}
