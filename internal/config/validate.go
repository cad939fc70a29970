package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/alexbarcelo/netbox-dns-handler/internal/reconciler"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration error: %s", e.Errors[0])
	}
	return fmt.Sprintf("configuration errors:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// databaseSchemes are the URL prefixes the record store can open.
var databaseSchemes = []string{"sqlite:", "sqlite3:", "mysql:"}

// validateConfig performs field and cross-field validation on the complete
// configuration. Returns a list of validation errors.
func validateConfig(cfg *Config) []string {
	var errs []string

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log level: invalid value %q (must be debug, info, warn, or error)", cfg.LogLevel))
	}

	switch cfg.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Sprintf("log format: invalid value %q (must be json or text)", cfg.LogFormat))
	}

	if cfg.RootDomain == "" {
		errs = append(errs, "root domain is required ("+EnvPrefix+"ROOT_DOMAIN)")
	} else if _, ok := dns.IsDomainName(cfg.RootDomain); !ok {
		errs = append(errs, fmt.Sprintf("root domain: %q is not a valid domain name", cfg.RootDomain))
	}

	errs = append(errs, validateDatabaseURL(cfg.DatabaseURL)...)

	if cfg.ReconcileInterval < time.Second {
		errs = append(errs, "reconcile interval: must be at least 1s")
	}
	if cfg.HealthPort < 1 || cfg.HealthPort > 65535 {
		errs = append(errs, fmt.Sprintf("health port: must be between 1 and 65535, got %d", cfg.HealthPort))
	}

	if cfg.Records.TTL < 1 {
		errs = append(errs, "ttl: must be at least 1")
	}
	if cfg.Records.Priority < 0 {
		errs = append(errs, "priority: must not be negative")
	}
	if cfg.Records.SRVWeight < 0 || cfg.Records.SRVWeight > 65535 {
		errs = append(errs, fmt.Sprintf("srv weight: must be between 0 and 65535, got %d", cfg.Records.SRVWeight))
	}

	if _, err := cfg.PruneScope(); err != nil {
		errs = append(errs, err.Error())
	}

	errs = append(errs, validateServices(cfg.Services)...)

	if cfg.Verify.Timeout <= 0 {
		errs = append(errs, "verify timeout: must be positive")
	}
	if cfg.Verify.Server != "" {
		if _, _, err := net.SplitHostPort(cfg.Verify.Server); err != nil {
			errs = append(errs, fmt.Sprintf("verify server: %q must be host:port", cfg.Verify.Server))
		}
	}

	return errs
}

// ValidateInventory checks the inventory settings. Only commands that read
// the inventory need them, so Load leaves them out.
func (c *Config) ValidateInventory() error {
	if errs := validateInventory(c.Inventory); len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

func validateDatabaseURL(url string) []string {
	if url == "" {
		return []string{"database url is required (" + EnvPrefix + "DATABASE_URL)"}
	}
	for _, scheme := range databaseSchemes {
		if strings.HasPrefix(url, scheme) {
			return nil
		}
	}
	// The URL may carry credentials: only the scheme is reported.
	scheme, _, _ := strings.Cut(url, ":")
	return []string{fmt.Sprintf("database url: unsupported scheme %q (must be sqlite or mysql)", scheme)}
}

func validateServices(svc ServicesConfig) []string {
	var errs []string

	switch reconciler.ZoneSource(svc.ZoneSource) {
	case reconciler.ZoneFromRecordName, reconciler.ZoneFromContent:
	default:
		errs = append(errs, fmt.Sprintf("service zone source: invalid value %q (must be %s or %s)",
			svc.ZoneSource, reconciler.ZoneFromRecordName, reconciler.ZoneFromContent))
	}

	seen := make(map[string]bool)
	for _, m := range svc.Mappings {
		if m.Name == "" {
			errs = append(errs, "service mapping: name is required")
			continue
		}
		if seen[m.Name] {
			errs = append(errs, fmt.Sprintf("duplicate service mapping: %q", m.Name))
		}
		seen[m.Name] = true

		if m.Record == "" {
			errs = append(errs, fmt.Sprintf("service mapping %s: record is required", m.Name))
		} else if _, ok := dns.IsDomainName(m.Record); !ok {
			errs = append(errs, fmt.Sprintf("service mapping %s: %q is not a valid domain name", m.Name, m.Record))
		}
	}

	return errs
}

func validateInventory(inv InventoryConfig) []string {
	var errs []string

	switch inv.Kind {
	case InventoryNetBox:
		if inv.NetBox.URL == "" {
			errs = append(errs, "netbox url is required ("+EnvPrefix+"NETBOX_URL)")
		} else if !strings.HasPrefix(inv.NetBox.URL, "http://") && !strings.HasPrefix(inv.NetBox.URL, "https://") {
			errs = append(errs, fmt.Sprintf("netbox url: %q must start with http:// or https://", inv.NetBox.URL))
		}
		if inv.NetBox.Token == "" {
			errs = append(errs, "netbox token is required ("+EnvPrefix+"NETBOX_TOKEN or "+EnvPrefix+"NETBOX_TOKEN_FILE)")
		}
		if inv.NetBox.Timeout <= 0 {
			errs = append(errs, "netbox timeout: must be positive")
		}
		if inv.NetBox.PageSize < 1 || inv.NetBox.PageSize > 1000 {
			errs = append(errs, fmt.Sprintf("netbox page size: must be between 1 and 1000, got %d", inv.NetBox.PageSize))
		}
	case InventoryFile:
		if inv.File == "" {
			errs = append(errs, "inventory file is required ("+EnvPrefix+"INVENTORY_FILE)")
		}
	default:
		errs = append(errs, fmt.Sprintf("inventory: invalid kind %q (must be %s or %s)", inv.Kind, InventoryNetBox, InventoryFile))
	}

	return errs
}
