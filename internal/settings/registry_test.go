package settings

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jmraffin/flowdeck/internal/controller"
)

// useTempConfig points the registry at a throwaway directory for the test.
func useTempConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return dir
}

func TestGetConfigPath(t *testing.T) {
	dir := useTempConfig(t)

	path, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}
	want := filepath.Join(dir, "flowdeck", "config.yaml")
	if path != want {
		t.Errorf("GetConfigPath() = %q, want %q", path, want)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	useTempConfig(t)

	s, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.Version != 1 {
		t.Errorf("Version = %d, want 1", s.Version)
	}
	if s.Theme != ThemeLight {
		t.Errorf("Theme = %q, want light", s.Theme)
	}
	if len(s.Tags) != controller.DefaultMaxDevices {
		t.Errorf("len(Tags) = %d, want %d", len(s.Tags), controller.DefaultMaxDevices)
	}
	if s.Tags[0] != "MFC00001" {
		t.Errorf("Tags[0] = %q", s.Tags[0])
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	useTempConfig(t)

	s := NewSettings()
	s.Theme = ThemeDark
	s.SetTag(0, "ARGON")
	if err := s.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Theme != ThemeDark {
		t.Errorf("Theme = %q, want dark", loaded.Theme)
	}
	if loaded.Tags[0] != "ARGON___" {
		t.Errorf("Tags[0] = %q, want ARGON___", loaded.Tags[0])
	}
	if loaded.Tags[1] != "MFC00002" {
		t.Errorf("Tags[1] = %q", loaded.Tags[1])
	}
}

func TestSaveWritesHeaderAndTightPermissions(t *testing.T) {
	useTempConfig(t)

	s := NewSettings()
	if err := s.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	path, _ := GetConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.HasPrefix(string(data), "# Flowdeck Configuration File") {
		t.Error("saved file missing header comment")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("file mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestLoadRepairsHandEditedTags(t *testing.T) {
	dir := useTempConfig(t)

	configDir := filepath.Join(dir, "flowdeck")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		t.Fatal(err)
	}
	content := `version: 1
theme: dark
tags:
  - argon-line-long-name
  - ""
  - OK
`
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	s, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.Tags[0] != "argon-li" {
		t.Errorf("Tags[0] = %q, want the truncated canonical form", s.Tags[0])
	}
	if s.Tags[1] != "MFC00002" {
		t.Errorf("empty tag should fall back to factory: %q", s.Tags[1])
	}
	if s.Tags[2] != "OK______" {
		t.Errorf("Tags[2] = %q", s.Tags[2])
	}
}

func TestLoadRejectsUnknownVersion(t *testing.T) {
	dir := useTempConfig(t)

	configDir := filepath.Join(dir, "flowdeck")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte("version: 7\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(); err == nil {
		t.Error("Load() should reject an unsupported version")
	}
}

func TestLoadInvalidThemeFallsBack(t *testing.T) {
	dir := useTempConfig(t)

	configDir := filepath.Join(dir, "flowdeck")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte("version: 1\ntheme: solarized\n"), 0600); err != nil {
		t.Fatal(err)
	}

	s, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.Theme != ThemeLight {
		t.Errorf("Theme = %q, want the light fallback", s.Theme)
	}
}

func TestNormalizeTagsResizes(t *testing.T) {
	s := &Settings{Version: 1, Theme: ThemeLight, Tags: []string{"A", "B", "C", "D"}}
	s.NormalizeTags(2)
	if len(s.Tags) != 2 || s.Tags[0] != "A_______" {
		t.Errorf("Tags = %v", s.Tags)
	}

	s.NormalizeTags(4)
	if len(s.Tags) != 4 || s.Tags[3] != "MFC00004" {
		t.Errorf("Tags = %v", s.Tags)
	}
}

func TestSetTagBounds(t *testing.T) {
	s := NewSettings()
	s.SetTag(-1, "X")
	s.SetTag(len(s.Tags), "X")
	s.SetTag(2, "he")
	if s.Tags[2] != "he______" {
		t.Errorf("Tags[2] = %q", s.Tags[2])
	}
}
