package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// FileConfig represents the configuration file structure, in YAML or TOML.
// Pointers distinguish unset values from zero values.
type FileConfig struct {
	Logging    *FileLoggingConfig    `yaml:"logging,omitempty" toml:"logging"`
	Reconciler *FileReconcilerConfig `yaml:"reconciler,omitempty" toml:"reconciler"`
	Database   *FileDatabaseConfig   `yaml:"database,omitempty" toml:"database"`
	Records    *FileRecordsConfig    `yaml:"records,omitempty" toml:"records"`
	Prune      *FilePruneConfig      `yaml:"prune,omitempty" toml:"prune"`
	Services   *FileServicesConfig   `yaml:"services,omitempty" toml:"services"`
	Inventory  *FileInventoryConfig  `yaml:"inventory,omitempty" toml:"inventory"`
	Server     *FileServerConfig     `yaml:"server,omitempty" toml:"server"`
	Verify     *FileVerifyConfig     `yaml:"verify,omitempty" toml:"verify"`
}

// FileLoggingConfig holds logging settings.
type FileLoggingConfig struct {
	Level  string `yaml:"level,omitempty" toml:"level"`
	Format string `yaml:"format,omitempty" toml:"format"`
}

// FileReconcilerConfig holds reconciliation settings.
type FileReconcilerConfig struct {
	RootDomain string `yaml:"root_domain,omitempty" toml:"root_domain"`
	Interval   string `yaml:"interval,omitempty" toml:"interval"` // Go duration format (e.g., "60s", "5m")
	DryRun     *bool  `yaml:"dry_run,omitempty" toml:"dry_run"`
}

// FileDatabaseConfig holds the PowerDNS database settings.
type FileDatabaseConfig struct {
	URL   string `yaml:"url,omitempty" toml:"url"`
	Debug *bool  `yaml:"debug,omitempty" toml:"debug"`
}

// FileRecordsConfig holds values written on new records.
type FileRecordsConfig struct {
	TTL       *int `yaml:"ttl,omitempty" toml:"ttl"`
	Priority  *int `yaml:"priority,omitempty" toml:"priority"`
	SRVWeight *int `yaml:"srv_weight,omitempty" toml:"srv_weight"`
}

// FilePruneConfig holds prune settings.
type FilePruneConfig struct {
	Enabled *bool    `yaml:"enabled,omitempty" toml:"enabled"`
	Include []string `yaml:"include,omitempty" toml:"include"`
	Exclude []string `yaml:"exclude,omitempty" toml:"exclude"`
	Regex   *bool    `yaml:"regex,omitempty" toml:"regex"`
}

// FileServicesConfig holds the service passes.
type FileServicesConfig struct {
	ZoneSource string           `yaml:"zone_source,omitempty" toml:"zone_source"`
	Mappings   []ServiceMapping `yaml:"mappings,omitempty" toml:"mappings"`
}

// FileInventoryConfig holds inventory settings.
type FileInventoryConfig struct {
	Kind   string            `yaml:"kind,omitempty" toml:"kind"`
	File   string            `yaml:"file,omitempty" toml:"file"`
	NetBox *FileNetBoxConfig `yaml:"netbox,omitempty" toml:"netbox"`
}

// FileNetBoxConfig holds NetBox API settings.
type FileNetBoxConfig struct {
	URL           string `yaml:"url,omitempty" toml:"url"`
	Token         string `yaml:"token,omitempty" toml:"token"`
	TLSSkipVerify *bool  `yaml:"tls_skip_verify,omitempty" toml:"tls_skip_verify"`
	Timeout       string `yaml:"timeout,omitempty" toml:"timeout"`
	PageSize      *int   `yaml:"page_size,omitempty" toml:"page_size"`
}

// FileServerConfig holds health/metrics server settings.
type FileServerConfig struct {
	Port *int `yaml:"port,omitempty" toml:"port"`
}

// FileVerifyConfig holds settings for the verify command.
type FileVerifyConfig struct {
	Server  string `yaml:"server,omitempty" toml:"server"`
	TCP     *bool  `yaml:"tcp,omitempty" toml:"tcp"`
	Timeout string `yaml:"timeout,omitempty" toml:"timeout"`
}

// envVarPattern matches ${VAR} or ${VAR:-default} syntax.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// InterpolateEnvVars replaces ${VAR} patterns with environment variable values.
// Supports ${VAR:-default} syntax for default values.
func InterpolateEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultValue := ""
		if len(groups) >= 3 {
			defaultValue = groups[2]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

func interpolateAll(values []string) {
	for i := range values {
		values[i] = InterpolateEnvVars(values[i])
	}
}

// interpolateEnvVars interpolates environment variables in all string
// fields of the config structure.
func (c *FileConfig) interpolateEnvVars() {
	if c.Logging != nil {
		c.Logging.Level = InterpolateEnvVars(c.Logging.Level)
		c.Logging.Format = InterpolateEnvVars(c.Logging.Format)
	}

	if c.Reconciler != nil {
		c.Reconciler.RootDomain = InterpolateEnvVars(c.Reconciler.RootDomain)
		c.Reconciler.Interval = InterpolateEnvVars(c.Reconciler.Interval)
	}

	if c.Database != nil {
		c.Database.URL = InterpolateEnvVars(c.Database.URL)
	}

	if c.Prune != nil {
		interpolateAll(c.Prune.Include)
		interpolateAll(c.Prune.Exclude)
	}

	if c.Services != nil {
		c.Services.ZoneSource = InterpolateEnvVars(c.Services.ZoneSource)
		for i := range c.Services.Mappings {
			m := &c.Services.Mappings[i]
			m.Name = InterpolateEnvVars(m.Name)
			m.Record = InterpolateEnvVars(m.Record)
		}
	}

	if c.Inventory != nil {
		c.Inventory.Kind = InterpolateEnvVars(c.Inventory.Kind)
		c.Inventory.File = InterpolateEnvVars(c.Inventory.File)
		if nb := c.Inventory.NetBox; nb != nil {
			nb.URL = InterpolateEnvVars(nb.URL)
			nb.Token = InterpolateEnvVars(nb.Token)
			nb.Timeout = InterpolateEnvVars(nb.Timeout)
		}
	}

	if c.Verify != nil {
		c.Verify.Server = InterpolateEnvVars(c.Verify.Server)
		c.Verify.Timeout = InterpolateEnvVars(c.Verify.Timeout)
	}
}

// LoadFile reads and parses a configuration file. Files ending in .toml are
// parsed as TOML, everything else as YAML. Environment variables in ${VAR}
// format are interpolated.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg FileConfig
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing TOML config: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
	}

	cfg.interpolateEnvVars()

	return &cfg, nil
}

// apply copies the values set in the file onto cfg.
// Returns a list of validation errors (may be empty).
func (c *FileConfig) apply(cfg *Config) []string {
	var errs []string

	if c.Logging != nil {
		if c.Logging.Level != "" {
			cfg.LogLevel = strings.ToLower(c.Logging.Level)
		}
		if c.Logging.Format != "" {
			cfg.LogFormat = strings.ToLower(c.Logging.Format)
		}
	}

	if r := c.Reconciler; r != nil {
		if r.RootDomain != "" {
			cfg.RootDomain = r.RootDomain
		}
		if r.DryRun != nil {
			cfg.DryRun = *r.DryRun
		}
		errs = parseFileDuration(errs, "reconciler.interval", r.Interval, &cfg.ReconcileInterval)
	}

	if d := c.Database; d != nil {
		if d.URL != "" {
			cfg.DatabaseURL = d.URL
		}
		setBool(&cfg.DatabaseDebug, d.Debug)
	}

	if r := c.Records; r != nil {
		setInt(&cfg.Records.TTL, r.TTL)
		setInt(&cfg.Records.Priority, r.Priority)
		setInt(&cfg.Records.SRVWeight, r.SRVWeight)
	}

	if p := c.Prune; p != nil {
		setBool(&cfg.Prune.Enabled, p.Enabled)
		setBool(&cfg.Prune.Regex, p.Regex)
		if len(p.Include) > 0 {
			cfg.Prune.Include = p.Include
		}
		if len(p.Exclude) > 0 {
			cfg.Prune.Exclude = p.Exclude
		}
	}

	if s := c.Services; s != nil {
		if s.ZoneSource != "" {
			cfg.Services.ZoneSource = strings.ToLower(s.ZoneSource)
		}
		if len(s.Mappings) > 0 {
			cfg.Services.Mappings = s.Mappings
		}
	}

	if inv := c.Inventory; inv != nil {
		if inv.Kind != "" {
			cfg.Inventory.Kind = strings.ToLower(inv.Kind)
		}
		if inv.File != "" {
			cfg.Inventory.File = inv.File
		}
		if nb := inv.NetBox; nb != nil {
			if nb.URL != "" {
				cfg.Inventory.NetBox.URL = nb.URL
			}
			if nb.Token != "" {
				cfg.Inventory.NetBox.Token = nb.Token
			}
			setBool(&cfg.Inventory.NetBox.TLSSkipVerify, nb.TLSSkipVerify)
			setInt(&cfg.Inventory.NetBox.PageSize, nb.PageSize)
			errs = parseFileDuration(errs, "inventory.netbox.timeout", nb.Timeout, &cfg.Inventory.NetBox.Timeout)
		}
	}

	if c.Server != nil {
		setInt(&cfg.HealthPort, c.Server.Port)
	}

	if v := c.Verify; v != nil {
		if v.Server != "" {
			cfg.Verify.Server = v.Server
		}
		setBool(&cfg.Verify.TCP, v.TCP)
		errs = parseFileDuration(errs, "verify.timeout", v.Timeout, &cfg.Verify.Timeout)
	}

	return errs
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func parseFileDuration(errs []string, key, value string, dst *time.Duration) []string {
	if value == "" {
		return errs
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return append(errs, fmt.Sprintf("config file %s: invalid duration %q (use format like 60s, 5m)", key, value))
	}
	*dst = d
	return errs
}
