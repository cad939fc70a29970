package netbox

import (
	"context"
	"log/slog"

	"github.com/alexbarcelo/netbox-dns-handler/internal/inventory"
)

// Source adapts a Client to inventory.Source.
type Source struct {
	client *Client
	logger *slog.Logger
}

// NewSource creates a Source backed by client.
func NewSource(client *Client, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{client: client, logger: logger}
}

// Name returns the source name.
func (s *Source) Name() string {
	return "netbox"
}

// Ping checks that NetBox is reachable.
func (s *Source) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

// IPAddresses returns every IP address in NetBox. Entries whose address
// cannot be parsed are logged and left out.
func (s *Source) IPAddresses(ctx context.Context) ([]inventory.IPAddress, error) {
	raw, err := s.client.listIPAddresses(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]inventory.IPAddress, 0, len(raw))
	for _, r := range raw {
		ip, ok := s.convertIP(r)
		if !ok {
			continue
		}
		out = append(out, ip)
	}

	s.logger.Debug("fetched ip addresses",
		slog.Int("count", len(out)),
		slog.Int("ignored", len(raw)-len(out)),
	)
	return out, nil
}

// Services returns the services named name. Nested addresses only carry
// their id and address, so their DNS names are fetched separately.
func (s *Source) Services(ctx context.Context, name string) ([]inventory.Service, error) {
	raw, err := s.client.listServices(ctx, name)
	if err != nil {
		return nil, err
	}

	cache := make(map[int]apiIPAddress)
	out := make([]inventory.Service, 0, len(raw))
	for _, r := range raw {
		svc := inventory.Service{
			ID:      r.ID,
			Name:    r.Name,
			Display: r.Display,
			URL:     r.URL,
			Ports:   r.Ports,
		}

		for _, nested := range r.IPAddresses {
			full := nested
			if full.DNSName == "" && nested.ID != 0 {
				cached, ok := cache[nested.ID]
				if !ok {
					fetched, err := s.client.getIPAddress(ctx, nested.ID)
					if err != nil {
						return nil, err
					}
					cached = *fetched
					cache[nested.ID] = cached
				}
				full = cached
			}

			ip, ok := s.convertIP(full)
			if !ok {
				continue
			}
			svc.IPAddresses = append(svc.IPAddresses, ip)
		}

		out = append(out, svc)
	}
	return out, nil
}

func (s *Source) convertIP(r apiIPAddress) (inventory.IPAddress, bool) {
	addr, err := inventory.ParseAddress(r.Address)
	if err != nil {
		s.logger.Warn("ignoring ip address with unparseable address",
			slog.Int("id", r.ID),
			slog.String("address", r.Address),
			slog.String("error", err.Error()),
		)
		return inventory.IPAddress{}, false
	}

	ip := inventory.IPAddress{
		ID:      r.ID,
		Address: addr,
		DNSName: r.DNSName,
	}

	if a := r.AssignedObject; a != nil {
		ip.Assigned = &inventory.AssignedObject{
			Type:    r.AssignedObjectType,
			Display: a.Display,
			URL:     a.URL,
		}
		if a.Device != nil {
			ip.Assigned.Device = &inventory.Ref{Display: a.Device.Display, URL: a.Device.URL}
		}
		if a.VirtualMachine != nil {
			ip.Assigned.VirtualMachine = &inventory.Ref{Display: a.VirtualMachine.Display, URL: a.VirtualMachine.URL}
		}
	}
	return ip, true
}

var _ inventory.Source = (*Source)(nil)
