// Package version identifies the build. Release builds set Version and
// Commit via ldflags:
//
//	-X github.com/jmraffin/flowdeck/internal/version.Version=v1.2.0
//	-X github.com/jmraffin/flowdeck/internal/version.Commit=abc1234
//
// Without ldflags both fall back to the VCS stamps Go embeds in the binary,
// then to a dev stamp.
package version

import (
	"fmt"
	"runtime/debug"
	"time"
)

var (
	Version = ""
	Commit  = ""
)

func init() {
	if Version == "" || Commit == "" {
		fromBuildInfo()
	}
	if Version == "" {
		Version = "dev-" + time.Now().Format("20060102-150405")
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

// fromBuildInfo fills Version and Commit from the VCS stamps in the
// binary's build info, when present.
func fromBuildInfo() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	vcs := make(map[string]string, 3)
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision", "vcs.modified", "vcs.time":
			vcs[s.Key] = s.Value
		}
	}

	if Commit == "" {
		if rev := vcs["vcs.revision"]; rev != "" {
			if len(rev) > 7 {
				rev = rev[:7]
			}
			if vcs["vcs.modified"] == "true" {
				rev += "-dirty"
			}
			Commit = rev
		}
	}

	// Build info carries no tags, so an unset version becomes a dev stamp
	// dated by the commit.
	if Version == "" {
		if t, err := time.Parse(time.RFC3339, vcs["vcs.time"]); err == nil {
			Version = "dev-" + t.Format("20060102")
		}
	}
}

// Full reports version and commit in one string.
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}
