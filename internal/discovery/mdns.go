package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceType is the mDNS service type controller services advertise as
	ServiceType = "_flowdeck._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for service discovery
	DefaultScanTimeout = 5 * time.Second
)

// Scanner handles mDNS controller-service discovery
type Scanner struct {
	// Timeout is the maximum time to wait for discovery
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// Scan discovers all controller services on the local network.
// Returns a list of discovered services or an error.
func (s *Scanner) Scan() ([]*Controller, error) {
	return s.ScanWithContext(context.Background())
}

// ScanWithContext discovers services with a custom context
func (s *Scanner) ScanWithContext(ctx context.Context) ([]*Controller, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	// Collect entries while Browse runs. The resolver closes the entries
	// channel once the context ends, which completes the collector.
	result := collectControllers(entries)

	err = resolver.Browse(ctx, ServiceType, ServiceDomain, entries)
	if err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()

	return <-result, nil
}

// collectControllers drains the entries channel and delivers the parsed list
// once the channel closes. The list is handed over on the result channel, so
// the caller never reads it while the collector still appends.
func collectControllers(entries <-chan *zeroconf.ServiceEntry) <-chan []*Controller {
	result := make(chan []*Controller, 1)
	go func() {
		controllers := make([]*Controller, 0)
		for entry := range entries {
			if c := parseServiceEntry(entry); c != nil {
				controllers = append(controllers, c)
			}
		}
		result <- controllers
	}()
	return result
}

// WaitForController waits for a specific service by instance name.
// Returns the service or an error if not found within timeout.
func (s *Scanner) WaitForController(name string) (*Controller, error) {
	return s.WaitForControllerWithContext(context.Background(), name)
}

// WaitForControllerWithContext waits for a specific service with a custom context
func (s *Scanner) WaitForControllerWithContext(ctx context.Context, name string) (*Controller, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(chan *Controller, 1)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		for entry := range entries {
			c := parseServiceEntry(entry)
			if c != nil && c.Name == name {
				found <- c
				cancel()
				return
			}
		}
	}()

	err = resolver.Browse(ctx, ServiceType, ServiceDomain, entries)
	if err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	select {
	case c := <-found:
		return c, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("controller service %q not found within timeout", name)
	}
}

// parseServiceEntry converts a zeroconf service entry to a Controller.
// Returns nil if the entry carries no usable address.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Controller {
	// Get IP address (prefer IPv4)
	var ip string
	for _, addr := range entry.AddrIPv4 {
		ip = addr.String()
		break
	}

	// Fallback to IPv6 if no IPv4
	if ip == "" && len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}

	if ip == "" {
		return nil
	}

	// Parse TXT records into metadata
	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		// TXT records are in "key=value" format
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			// Key without value
			metadata[parts[0]] = ""
		}
	}

	return &Controller{
		Name:         entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         entry.Port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

// Scan is a convenience function to scan for services with a custom timeout
func Scan(timeout time.Duration) ([]*Controller, error) {
	scanner := NewScanner()
	scanner.Timeout = timeout
	return scanner.Scan()
}

// Announce registers a controller service under the given instance name so
// consoles on the network can discover it. The returned shutdown function
// withdraws the announcement.
func Announce(name string, port int, txt map[string]string) (func(), error) {
	records := make([]string, 0, len(txt))
	for k, v := range txt {
		records = append(records, k+"="+v)
	}

	server, err := zeroconf.Register(name, ServiceType, ServiceDomain, port, records, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}

	return server.Shutdown, nil
}
