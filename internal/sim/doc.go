// Package sim implements a simulated controller service.
//
// The simulator exposes the same HTTP API a real controller service does,
// backed by an in-memory rack of simulated mass-flow channels instead of a
// serial bus. It exists for development and for exercising the console
// without instruments: `flowdeck sim` starts it, and the console connects
// to it like to any controller.
//
// The Manager holds the rack state and reproduces the instrument-facing
// behavior: activation loads the channel's gas table and parks the valve in
// regulation with a zero setpoint, setpoints clamp to the gas's full scale,
// deactivation and disconnection clear live readings. Step advances the
// physics: measured flow converges on the setpoint (linearly when a ramp is
// configured) and the totalizer integrates it.
//
// The Server wraps a Manager in the HTTP API, pushes snapshots to
// WebSocket subscribers on /ws, and optionally announces itself over mDNS
// so `flowdeck scan` can find it.
package sim
