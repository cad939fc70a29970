package config

import (
	"errors"
	"strings"
	"testing"
)

// validConfig returns a configuration that passes validation.
func validConfig() *Config {
	cfg := Default()
	cfg.RootDomain = "example.org"
	cfg.DatabaseURL = "sqlite::memory:"
	cfg.Inventory.NetBox.URL = "https://netbox.example.org"
	cfg.Inventory.NetBox.Token = "token"
	return cfg
}

func TestValidationError(t *testing.T) {
	single := &ValidationError{Errors: []string{"root domain is required"}}
	if got := single.Error(); got != "configuration error: root domain is required" {
		t.Errorf("Error() = %q", got)
	}

	multi := &ValidationError{Errors: []string{"a", "b"}}
	if got := multi.Error(); got != "configuration errors:\n  - a\n  - b" {
		t.Errorf("Error() = %q", got)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, "log level"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "log format"},
		{"missing root", func(c *Config) { c.RootDomain = "" }, "root domain is required"},
		{"invalid root", func(c *Config) { c.RootDomain = "bad..name" }, "not a valid domain name"},
		{"missing database", func(c *Config) { c.DatabaseURL = "" }, "database url is required"},
		{"unsupported database", func(c *Config) { c.DatabaseURL = "postgres://u:secret@db/pdns" }, `unsupported scheme "postgres"`},
		{"mysql database", func(c *Config) { c.DatabaseURL = "mysql:pdns:pw@tcp(db:3306)/pdns" }, ""},
		{"short interval", func(c *Config) { c.ReconcileInterval = 0 }, "reconcile interval"},
		{"bad port", func(c *Config) { c.HealthPort = 70000 }, "health port"},
		{"zero ttl", func(c *Config) { c.Records.TTL = 0 }, "ttl"},
		{"negative priority", func(c *Config) { c.Records.Priority = -1 }, "priority"},
		{"weight out of range", func(c *Config) { c.Records.SRVWeight = 65536 }, "srv weight"},
		{"bad zone source", func(c *Config) { c.Services.ZoneSource = "target" }, "service zone source"},
		{"mapping without record", func(c *Config) {
			c.Services.Mappings = []ServiceMapping{{Name: "ldap"}}
		}, "record is required"},
		{"mapping with invalid record", func(c *Config) {
			c.Services.Mappings = []ServiceMapping{{Name: "ldap", Record: "_ldap.._tcp"}}
		}, "not a valid domain name"},
		{"duplicate mapping", func(c *Config) {
			c.Services.Mappings = []ServiceMapping{
				{Name: "ldap", Record: "_ldap._tcp.example.org"},
				{Name: "ldap", Record: "_ldap._udp.example.org"},
			}
		}, "duplicate service mapping"},
		{"bad prune regex", func(c *Config) {
			c.Prune.Regex = true
			c.Prune.Exclude = []string{"("}
		}, "prune scope"},
		{"bad verify server", func(c *Config) { c.Verify.Server = "192.0.2.53" }, "verify server"},
		{"inventory not checked by Load", func(c *Config) { c.Inventory.NetBox.URL = "" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			errs := validateConfig(cfg)
			if tt.wantErr == "" {
				if len(errs) > 0 {
					t.Errorf("unexpected errors: %v", errs)
				}
				return
			}
			if len(errs) != 1 {
				t.Fatalf("expected 1 error, got %v", errs)
			}
			if !strings.Contains(errs[0], tt.wantErr) {
				t.Errorf("error %q should contain %q", errs[0], tt.wantErr)
			}
		})
	}
}

func TestValidateConfig_RedactsDatabaseURL(t *testing.T) {
	cfg := validConfig()
	cfg.DatabaseURL = "postgres://admin:hunter2@db/pdns"

	for _, e := range validateConfig(cfg) {
		if strings.Contains(e, "hunter2") {
			t.Errorf("error leaks credentials: %q", e)
		}
	}
}

func TestValidateInventory(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid netbox", func(*Config) {}, ""},
		{"missing url", func(c *Config) { c.Inventory.NetBox.URL = "" }, "netbox url is required"},
		{"url without scheme", func(c *Config) { c.Inventory.NetBox.URL = "netbox.example.org" }, "http://"},
		{"missing token", func(c *Config) { c.Inventory.NetBox.Token = "" }, "netbox token is required"},
		{"page size", func(c *Config) { c.Inventory.NetBox.PageSize = 0 }, "page size"},
		{"file without path", func(c *Config) { c.Inventory.Kind = InventoryFile }, "inventory file is required"},
		{"file with path", func(c *Config) {
			c.Inventory.Kind = InventoryFile
			c.Inventory.File = "inventory.yaml"
		}, ""},
		{"unknown kind", func(c *Config) { c.Inventory.Kind = "phpipam" }, "invalid kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateInventory()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestReconcilerConfig(t *testing.T) {
	cfg := validConfig()
	cfg.DryRun = true
	cfg.Records.TTL = 60
	cfg.Services.ZoneSource = "record-name"
	cfg.Prune.Exclude = []string{"static-*.example.org"}

	rc, err := cfg.ReconcilerConfig()
	if err != nil {
		t.Fatalf("ReconcilerConfig: %v", err)
	}
	if !rc.DryRun || rc.TTL != 60 || string(rc.ServiceZoneSource) != "record-name" || !rc.Prune {
		t.Errorf("unexpected reconciler config: %+v", rc)
	}
	if rc.PruneScope == nil {
		t.Fatal("expected a prune scope")
	}
	if rc.PruneScope.Matches("static-web.example.org") {
		t.Error("excluded name should be out of scope")
	}
	if !rc.PruneScope.Matches("host1.example.org") {
		t.Error("other names should be in scope")
	}
}

func TestPruneScope(t *testing.T) {
	cfg := validConfig()
	if m, err := cfg.PruneScope(); err != nil || m != nil {
		t.Errorf("expected nil scope without patterns, got %v, %v", m, err)
	}

	cfg.Prune.Regex = true
	cfg.Prune.Include = []string{`^.*\.dev\.example\.org$`}
	m, err := cfg.PruneScope()
	if err != nil {
		t.Fatalf("PruneScope: %v", err)
	}
	if !m.Matches("a.dev.example.org") || m.Matches("a.example.org") {
		t.Errorf("unexpected matching for %s", m)
	}
}

func TestServiceMappings(t *testing.T) {
	cfg := validConfig()
	cfg.Services.Mappings = []ServiceMapping{{Name: "ldap", Record: "_ldap._tcp.example.org"}}

	got := cfg.ServiceMappings()
	if len(got) != 1 || got[0].Service != "ldap" || got[0].Record != "_ldap._tcp.example.org" {
		t.Errorf("ServiceMappings() = %+v", got)
	}
}
