// Package discovery provides mDNS-based discovery of flow controller
// services on the local network.
//
// A controller service announces itself as a "_flowdeck._tcp" service so
// consoles can find it without knowing its address. The same package
// carries both halves: Scanner browses for announcements, Announce
// registers one (used by the embedded simulator).
//
// # Discovery Process
//
// The discovery process works as follows:
//  1. Broadcasts mDNS queries on the local network
//  2. Listens for "_flowdeck._tcp" service advertisements
//  3. Collects service information (instance name, IP, port, TXT metadata)
//  4. Returns the list of discovered services after the timeout period
//
// # Usage Example
//
//	// Discover controller services with the default 5-second timeout
//	controllers, err := discovery.NewScanner().Scan()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, c := range controllers {
//	    fmt.Printf("Found: %s at %s\n", c.Name, c.BaseURL())
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Services must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
//
// # Thread Safety
//
// This package is safe for concurrent use. Multiple discovery sessions can
// run simultaneously without interference.
package discovery
