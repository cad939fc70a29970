// Package inventory defines the desired-state descriptors read from the
// inventory system (NetBox) and the Source interface that produces them.
package inventory

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
)

// Ref is a link to an inventory object, used for operator diagnostics.
type Ref struct {
	Display string
	URL     string
}

// AssignedObject is the object an IP address is assigned to, usually an
// interface of a device or of a virtual machine.
type AssignedObject struct {
	Type           string
	Display        string
	URL            string
	Device         *Ref
	VirtualMachine *Ref
}

// IPAddress is an inventory IP address with its DNS name.
type IPAddress struct {
	ID       int
	Address  netip.Addr
	DNSName  string
	Assigned *AssignedObject
}

// Owner describes what the address is assigned to, for log messages.
func (ip IPAddress) Owner() string {
	a := ip.Assigned
	switch {
	case a == nil:
		return "no assigned object"
	case a.Device != nil:
		return fmt.Sprintf("device %s @ %s", a.Device.Display, a.Device.URL)
	case a.VirtualMachine != nil:
		return fmt.Sprintf("virtual machine %s @ %s", a.VirtualMachine.Display, a.VirtualMachine.URL)
	default:
		return fmt.Sprintf("unknown assigned object @ %s", a.URL)
	}
}

// Service is an inventory service entry: a named service bound to ports on
// one or more IP addresses.
type Service struct {
	ID          int
	Name        string
	Display     string
	URL         string
	Ports       []int
	IPAddresses []IPAddress
}

// Source provides the desired state for a reconciliation run.
type Source interface {
	// Name identifies the source in logs and health checks.
	Name() string

	// IPAddresses returns every IP address known to the inventory.
	IPAddresses(ctx context.Context) ([]IPAddress, error)

	// Services returns the service entries with the given name.
	Services(ctx context.Context, name string) ([]Service, error)

	// Ping checks that the inventory is reachable.
	Ping(ctx context.Context) error
}

// ParseAddress parses an inventory address, which is either a CIDR
// ("10.0.0.1/24") or a bare address, and returns the host address.
func ParseAddress(s string) (netip.Addr, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		prefix, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Addr{}, fmt.Errorf("parsing address %q: %w", s, err)
		}
		return prefix.Addr(), nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("parsing address %q: %w", s, err)
	}
	return addr, nil
}
