package settings

import (
	"github.com/jmraffin/flowdeck/internal/controller"
)

// Theme names accepted by the console and the controller's set_theme call.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// ValidTheme reports whether theme is a known theme name.
func ValidTheme(theme string) bool {
	return theme == ThemeLight || theme == ThemeDark
}

// Settings is the persisted console configuration.
type Settings struct {
	// Version is the config file format version (currently 1).
	Version int `yaml:"version"`

	// Theme is the console color theme ("light" or "dark").
	Theme string `yaml:"theme"`

	// Tags holds the saved channel tags, one per channel, in canonical
	// 8-character form.
	Tags []string `yaml:"tags"`
}

// NewSettings returns the default configuration: light theme and factory
// tags for the default channel count.
func NewSettings() *Settings {
	return &Settings{
		Version: 1,
		Theme:   ThemeLight,
		Tags:    DefaultTags(controller.DefaultMaxDevices),
	}
}

// DefaultTags returns the factory tags ("MFC00001"...) for n channels.
func DefaultTags(n int) []string {
	tags := make([]string, n)
	for i := range tags {
		tags[i] = controller.DefaultTag(i)
	}
	return tags
}

// NormalizeTags forces the tag list to exactly n canonical entries.
// Missing entries get factory tags, surplus entries are dropped. A tag
// list of the wrong length loaded from disk (channel count changed between
// sessions) is repaired rather than rejected.
func (s *Settings) NormalizeTags(n int) {
	if len(s.Tags) > n {
		s.Tags = s.Tags[:n]
	}
	for i := range s.Tags {
		if s.Tags[i] == "" {
			s.Tags[i] = controller.DefaultTag(i)
		} else {
			s.Tags[i] = controller.NormalizeTag(s.Tags[i])
		}
	}
	for len(s.Tags) < n {
		s.Tags = append(s.Tags, controller.DefaultTag(len(s.Tags)))
	}
}

// SetTag stores the canonical form of tag for channel index. Out-of-range
// indices are ignored.
func (s *Settings) SetTag(index int, tag string) {
	if index < 0 || index >= len(s.Tags) {
		return
	}
	s.Tags[index] = controller.NormalizeTag(tag)
}
