package discovery

import (
	"fmt"
	"time"
)

// Controller represents a discovered flow controller service on the network.
type Controller struct {
	// Name is the mDNS instance name (e.g., "flowdeck-sim")
	Name string

	// Hostname is the mDNS hostname (e.g., "bench-pc.local.")
	Hostname string

	// IP is the IPv4 address (e.g., "192.168.1.40")
	IP string

	// Port is the HTTP API port
	Port int

	// Metadata contains additional mDNS TXT record data
	// Common fields: "version=1.2.0", "channels=12"
	Metadata map[string]string

	// DiscoveredAt is when the service was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the service.
func (c *Controller) String() string {
	return fmt.Sprintf("Controller %s (%s) at %s:%d", c.Name, c.Hostname, c.IP, c.Port)
}

// BaseURL returns the HTTP base URL for the service.
func (c *Controller) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.IP, c.Port)
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found.
func (c *Controller) GetMetadata(key string) string {
	if c.Metadata == nil {
		return ""
	}
	return c.Metadata[key]
}
