// Package version carries build metadata for the checkbot binary.
package version

import (
	"fmt"
	"runtime/debug"

	"github.com/google/uuid"
)

// Set with -ldflags "-X checkbot/internal/version.Version=...".
var (
	Version   = "unknown"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// instanceID identifies this process in logs and traces.
var instanceID = uuid.NewString()

// Info is what checkbot prints for -version and attaches to logs and traces.
type Info struct {
	Version    string
	GitCommit  string
	BuildDate  string
	InstanceID string
}

// GetInfo returns the build metadata. Without ldflags the commit falls back
// to the VCS revision stamped by the go toolchain, if any.
func GetInfo() Info {
	commit := GitCommit
	if commit == "unknown" {
		if rev := vcsRevision(); rev != "" {
			commit = rev
		}
	}
	return Info{
		Version:    Version,
		GitCommit:  commit,
		BuildDate:  BuildDate,
		InstanceID: instanceID,
	}
}

func vcsRevision() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 7 {
			return s.Value[:7]
		}
	}
	return ""
}

func (i Info) String() string {
	return fmt.Sprintf("checkbot %s (commit %s, built %s)", i.Version, i.GitCommit, i.BuildDate)
}
