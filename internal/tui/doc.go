// Package tui implements the operator console screens.
//
// The console is a Bubble Tea program with two screens: a connect screen
// that lists the controller's serial ports, and the channel grid showing
// all channels at once. The grid is a pure projection of the latest
// snapshot: rendering never mutates state and never issues controller
// calls. Operator intents go through the console dispatcher; fresh
// snapshots arrive through the poller's update channel and are folded into
// the model as messages.
//
// Two themes (light and dark) are supported, switchable at runtime and
// persisted through the settings package.
package tui
