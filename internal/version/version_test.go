package version

import (
	"strings"
	"testing"
)

func TestInitFallbacks(t *testing.T) {
	// init always leaves both identifiers usable, whatever the build
	// carries
	if Version == "" {
		t.Error("Version is empty after init")
	}
	if Commit == "" {
		t.Error("Commit is empty after init")
	}
}

func TestFull(t *testing.T) {
	got := Full()
	if !strings.Contains(got, Version) {
		t.Errorf("Full() = %q, missing version %q", got, Version)
	}
	if !strings.Contains(got, Commit) {
		t.Errorf("Full() = %q, missing commit %q", got, Commit)
	}
}
