// Package file implements an inventory.Source backed by a YAML or TOML
// document. The file is re-read on every call so edits apply on the next
// reconciliation.
//
// Example (YAML):
//
//	ip_addresses:
//	  - address: 10.0.0.1/24
//	    dns_name: host1.example.org
//	    device: srv1
//	services:
//	  - name: ldap
//	    ports: [389]
//	    addresses:
//	      - address: 10.0.0.7/24
//	        dns_name: ldap1.example.org
package file

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/alexbarcelo/netbox-dns-handler/internal/inventory"
)

// document is the on-disk layout.
type document struct {
	IPAddresses []fileIPAddress `yaml:"ip_addresses" toml:"ip_addresses"`
	Services    []fileService   `yaml:"services" toml:"services"`
}

type fileIPAddress struct {
	Address        string `yaml:"address" toml:"address"`
	DNSName        string `yaml:"dns_name" toml:"dns_name"`
	Device         string `yaml:"device,omitempty" toml:"device"`
	VirtualMachine string `yaml:"virtual_machine,omitempty" toml:"virtual_machine"`
}

type fileService struct {
	Name      string          `yaml:"name" toml:"name"`
	Ports     []int           `yaml:"ports" toml:"ports"`
	Addresses []fileIPAddress `yaml:"addresses" toml:"addresses"`
}

// Source reads inventory from a file.
type Source struct {
	path   string
	logger *slog.Logger
}

// New creates a Source for path. The format is chosen by extension:
// .toml is TOML, anything else is YAML.
func New(path string, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{path: path, logger: logger}
}

// Name returns the source name.
func (s *Source) Name() string {
	return "file"
}

// Ping checks that the file exists and parses.
func (s *Source) Ping(ctx context.Context) error {
	_, err := s.load()
	return err
}

// IPAddresses returns the addresses in the file.
func (s *Source) IPAddresses(ctx context.Context) ([]inventory.IPAddress, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	out := make([]inventory.IPAddress, 0, len(doc.IPAddresses))
	for i, raw := range doc.IPAddresses {
		ip, err := convertIP(i+1, raw)
		if err != nil {
			return nil, fmt.Errorf("%s: ip_addresses[%d]: %w", s.path, i, err)
		}
		out = append(out, ip)
	}
	return out, nil
}

// Services returns the services named name.
func (s *Source) Services(ctx context.Context, name string) ([]inventory.Service, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	var out []inventory.Service
	for i, raw := range doc.Services {
		if raw.Name != name {
			continue
		}
		svc := inventory.Service{
			ID:      i + 1,
			Name:    raw.Name,
			Display: fmt.Sprintf("%s %v", raw.Name, raw.Ports),
			URL:     fmt.Sprintf("%s#services[%d]", s.path, i),
			Ports:   raw.Ports,
		}
		for j, a := range raw.Addresses {
			ip, err := convertIP(0, a)
			if err != nil {
				return nil, fmt.Errorf("%s: services[%d].addresses[%d]: %w", s.path, i, j, err)
			}
			svc.IPAddresses = append(svc.IPAddresses, ip)
		}
		out = append(out, svc)
	}
	return out, nil
}

func (s *Source) load() (*document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading inventory file: %w", err)
	}

	var doc document
	switch strings.ToLower(filepath.Ext(s.path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing TOML inventory %s: %w", s.path, err)
		}
	default:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing YAML inventory %s: %w", s.path, err)
		}
	}

	s.logger.Debug("loaded inventory file",
		slog.String("path", s.path),
		slog.Int("ip_addresses", len(doc.IPAddresses)),
		slog.Int("services", len(doc.Services)),
	)
	return &doc, nil
}

func convertIP(id int, raw fileIPAddress) (inventory.IPAddress, error) {
	addr, err := inventory.ParseAddress(raw.Address)
	if err != nil {
		return inventory.IPAddress{}, err
	}

	ip := inventory.IPAddress{ID: id, Address: addr, DNSName: raw.DNSName}
	switch {
	case raw.Device != "":
		ip.Assigned = &inventory.AssignedObject{Device: &inventory.Ref{Display: raw.Device}}
	case raw.VirtualMachine != "":
		ip.Assigned = &inventory.AssignedObject{VirtualMachine: &inventory.Ref{Display: raw.VirtualMachine}}
	}
	return ip, nil
}

var _ inventory.Source = (*Source)(nil)
