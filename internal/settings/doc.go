// Package settings persists the console's local preferences.
//
// Two things survive between sessions: the UI theme (light or dark) and
// the operator-assigned channel tags. Both live in a single YAML file in
// the platform configuration directory:
//
//   - Linux: $XDG_CONFIG_HOME/flowdeck or $HOME/.config/flowdeck
//   - macOS: $HOME/.config/flowdeck
//   - Windows: %LOCALAPPDATA%\flowdeck
//
// Tags are stored in their canonical 8-character form (cut or padded with
// underscores), the same normalization the controller applies, so a saved
// tag round-trips without drifting from the controller's copy.
//
// Writes are atomic (temp file plus rename) to prevent corruption on
// crash. Serial ports, measurements and device state are never persisted:
// the controller is the source of truth for all of those.
package settings
