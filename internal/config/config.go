// Package config handles loading and validation of netbox-dns-handler
// configuration from environment variables and an optional config file.
package config

import (
	"fmt"
	"time"

	"github.com/alexbarcelo/netbox-dns-handler/internal/matcher"
	"github.com/alexbarcelo/netbox-dns-handler/internal/reconciler"
)

// Inventory kinds.
const (
	InventoryNetBox = "netbox"
	InventoryFile   = "file"
)

// Config holds the complete application configuration.
// Settings use the NBDNS_ prefix when read from the environment.
type Config struct {
	// Logging configuration
	LogLevel  string // debug, info, warn, error
	LogFormat string // json, text

	// Behavior
	DryRun            bool          // Run every pass and roll it back
	ReconcileInterval time.Duration // How often serve reconciles
	HealthPort        int           // Port for health/metrics endpoints

	// RootDomain is the domain every managed name lives under.
	RootDomain string

	// DatabaseURL selects the PowerDNS database ("sqlite:..." or "mysql:...").
	DatabaseURL   string
	DatabaseDebug bool

	Records   RecordsConfig
	Prune     PruneConfig
	Services  ServicesConfig
	Inventory InventoryConfig
	Verify    VerifyConfig
}

// RecordsConfig holds values written on new records.
type RecordsConfig struct {
	TTL       int
	Priority  int
	SRVWeight int
}

// PruneConfig controls deletion of address records absent from the inventory.
type PruneConfig struct {
	Enabled bool
	Include []string // Names the prune may delete; empty means all
	Exclude []string // Names the prune never deletes
	Regex   bool     // Patterns are regular expressions instead of globs
}

// ServicesConfig holds the service passes.
type ServicesConfig struct {
	// ZoneSource is "record-name" or "content".
	ZoneSource string
	Mappings   []ServiceMapping
}

// ServiceMapping maps an inventory service name to the SRV record name
// its instances are published under.
type ServiceMapping struct {
	Name   string `yaml:"name" toml:"name"`
	Record string `yaml:"record" toml:"record"`
}

// InventoryConfig selects and configures the inventory source.
type InventoryConfig struct {
	Kind   string // netbox, file
	File   string // Path for the file inventory
	NetBox NetBoxConfig
}

// NetBoxConfig holds NetBox API settings.
type NetBoxConfig struct {
	URL           string
	Token         string
	TLSSkipVerify bool
	Timeout       time.Duration
	PageSize      int
}

// VerifyConfig holds settings for the verify command.
type VerifyConfig struct {
	Server  string // host:port of the authoritative server
	TCP     bool
	Timeout time.Duration
}

// ReconcilerConfig builds the reconciler configuration.
func (c *Config) ReconcilerConfig() (reconciler.Config, error) {
	rc := reconciler.Config{
		DryRun:            c.DryRun,
		TTL:               c.Records.TTL,
		Priority:          c.Records.Priority,
		SRVWeight:         c.Records.SRVWeight,
		ServiceZoneSource: reconciler.ZoneSource(c.Services.ZoneSource),
		Prune:             c.Prune.Enabled,
	}

	scope, err := c.PruneScope()
	if err != nil {
		return reconciler.Config{}, err
	}
	rc.PruneScope = scope
	return rc, nil
}

// PruneScope builds the prune scope matcher. Returns nil when no pattern is
// configured.
func (c *Config) PruneScope() (*matcher.DomainMatcher, error) {
	if len(c.Prune.Include) == 0 && len(c.Prune.Exclude) == 0 {
		return nil, nil
	}

	includes := c.Prune.Include
	if len(includes) == 0 {
		includes = []string{"*"}
		if c.Prune.Regex {
			includes = []string{".*"}
		}
	}

	m, err := matcher.NewDomainMatcher(matcher.DomainMatcherConfig{
		Includes: includes,
		Excludes: c.Prune.Exclude,
		UseRegex: c.Prune.Regex,
	})
	if err != nil {
		return nil, fmt.Errorf("prune scope: %w", err)
	}
	return m, nil
}

// ServiceMappings converts the configured mappings for the runner.
func (c *Config) ServiceMappings() []reconciler.ServiceMapping {
	out := make([]reconciler.ServiceMapping, 0, len(c.Services.Mappings))
	for _, m := range c.Services.Mappings {
		out = append(out, reconciler.ServiceMapping{Service: m.Name, Record: m.Record})
	}
	return out
}
