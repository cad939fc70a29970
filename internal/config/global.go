package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alexbarcelo/netbox-dns-handler/internal/reconciler"
)

// Configuration defaults.
const (
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "json"
	DefaultDryRun            = false
	DefaultReconcileInterval = 5 * time.Minute
	DefaultHealthPort        = 8080
	DefaultPrune             = true
	DefaultInventory         = InventoryNetBox
	DefaultNetBoxTimeout     = 30 * time.Second
	DefaultNetBoxPageSize    = 200
	DefaultVerifyTimeout     = 5 * time.Second
)

// EnvPrefix is the prefix of every environment variable.
const EnvPrefix = "NBDNS_"

// Default returns a Config with every default applied.
func Default() *Config {
	return &Config{
		LogLevel:          DefaultLogLevel,
		LogFormat:         DefaultLogFormat,
		DryRun:            DefaultDryRun,
		ReconcileInterval: DefaultReconcileInterval,
		HealthPort:        DefaultHealthPort,
		Records: RecordsConfig{
			TTL:       reconciler.DefaultTTL,
			Priority:  reconciler.DefaultPriority,
			SRVWeight: reconciler.DefaultSRVWeight,
		},
		Prune: PruneConfig{Enabled: DefaultPrune},
		Services: ServicesConfig{
			ZoneSource: string(reconciler.ZoneFromContent),
		},
		Inventory: InventoryConfig{
			Kind: DefaultInventory,
			NetBox: NetBoxConfig{
				Timeout:  DefaultNetBoxTimeout,
				PageSize: DefaultNetBoxPageSize,
			},
		},
		Verify: VerifyConfig{Timeout: DefaultVerifyTimeout},
	}
}

// applyEnv overrides cfg with NBDNS_* environment variables that are set.
// Environment variables always take precedence over file config.
// Returns a list of validation errors (may be empty).
func applyEnv(cfg *Config) []string {
	var errs []string

	if v := getEnv(EnvPrefix + "LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := getEnv(EnvPrefix + "LOG_FORMAT"); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}
	if v := getEnv(EnvPrefix + "DRY_RUN"); v != "" {
		cfg.DryRun = parseBool(v, cfg.DryRun)
	}
	if v := getEnv(EnvPrefix + "RECONCILE_INTERVAL"); v != "" {
		interval, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%sRECONCILE_INTERVAL: invalid duration %q (use format like 60s, 5m)", EnvPrefix, v))
		} else {
			cfg.ReconcileInterval = interval
		}
	}
	errs = appendIntEnv(errs, "HEALTH_PORT", &cfg.HealthPort)

	if v := getEnv(EnvPrefix + "ROOT_DOMAIN"); v != "" {
		cfg.RootDomain = v
	}
	if v := getEnvWithFileFallback(EnvPrefix, "DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := getEnv(EnvPrefix + "DATABASE_DEBUG"); v != "" {
		cfg.DatabaseDebug = parseBool(v, cfg.DatabaseDebug)
	}

	errs = appendIntEnv(errs, "TTL", &cfg.Records.TTL)
	errs = appendIntEnv(errs, "PRIORITY", &cfg.Records.Priority)
	errs = appendIntEnv(errs, "SRV_WEIGHT", &cfg.Records.SRVWeight)

	if v := getEnv(EnvPrefix + "PRUNE"); v != "" {
		cfg.Prune.Enabled = parseBool(v, cfg.Prune.Enabled)
	}
	if v := getEnv(EnvPrefix + "PRUNE_INCLUDE"); v != "" {
		cfg.Prune.Include = splitList(v)
	}
	if v := getEnv(EnvPrefix + "PRUNE_EXCLUDE"); v != "" {
		cfg.Prune.Exclude = splitList(v)
	}
	if v := getEnv(EnvPrefix + "PRUNE_REGEX"); v != "" {
		cfg.Prune.Regex = parseBool(v, cfg.Prune.Regex)
	}

	if v := getEnv(EnvPrefix + "SERVICE_ZONE_SOURCE"); v != "" {
		cfg.Services.ZoneSource = strings.ToLower(v)
	}
	if v := getEnv(EnvPrefix + "SERVICES"); v != "" {
		mappings, mErrs := parseServiceMappings(v)
		errs = append(errs, mErrs...)
		if len(mErrs) == 0 {
			cfg.Services.Mappings = mappings
		}
	}

	if v := getEnv(EnvPrefix + "INVENTORY"); v != "" {
		cfg.Inventory.Kind = strings.ToLower(v)
	}
	if v := getEnv(EnvPrefix + "INVENTORY_FILE"); v != "" {
		cfg.Inventory.File = v
	}
	if v := getEnv(EnvPrefix + "NETBOX_URL"); v != "" {
		cfg.Inventory.NetBox.URL = v
	}
	if v := getEnvWithFileFallback(EnvPrefix, "NETBOX_TOKEN"); v != "" {
		cfg.Inventory.NetBox.Token = v
	}
	if v := getEnv(EnvPrefix + "NETBOX_TLS_SKIP_VERIFY"); v != "" {
		cfg.Inventory.NetBox.TLSSkipVerify = parseBool(v, cfg.Inventory.NetBox.TLSSkipVerify)
	}
	errs = appendDurationEnv(errs, "NETBOX_TIMEOUT", &cfg.Inventory.NetBox.Timeout)
	errs = appendIntEnv(errs, "NETBOX_PAGE_SIZE", &cfg.Inventory.NetBox.PageSize)

	if v := getEnv(EnvPrefix + "VERIFY_SERVER"); v != "" {
		cfg.Verify.Server = v
	}
	if v := getEnv(EnvPrefix + "VERIFY_TCP"); v != "" {
		cfg.Verify.TCP = parseBool(v, cfg.Verify.TCP)
	}
	errs = appendDurationEnv(errs, "VERIFY_TIMEOUT", &cfg.Verify.Timeout)

	return errs
}

// appendIntEnv parses the integer variable key into dst when it is set.
func appendIntEnv(errs []string, key string, dst *int) []string {
	v := getEnv(EnvPrefix + key)
	if v == "" {
		return errs
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return append(errs, fmt.Sprintf("%s%s: invalid integer %q", EnvPrefix, key, v))
	}
	*dst = n
	return errs
}

// appendDurationEnv parses the duration variable key into dst when it is set.
func appendDurationEnv(errs []string, key string, dst *time.Duration) []string {
	v := getEnv(EnvPrefix + key)
	if v == "" {
		return errs
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return append(errs, fmt.Sprintf("%s%s: invalid duration %q", EnvPrefix, key, v))
	}
	*dst = d
	return errs
}

// splitList splits a comma-separated list, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseServiceMappings parses "name=record,name=record".
func parseServiceMappings(s string) ([]ServiceMapping, []string) {
	var (
		out  []ServiceMapping
		errs []string
	)
	for _, item := range splitList(s) {
		name, record, ok := strings.Cut(item, "=")
		name, record = strings.TrimSpace(name), strings.TrimSpace(record)
		if !ok || name == "" || record == "" {
			errs = append(errs, fmt.Sprintf("%sSERVICES: invalid mapping %q (use name=record)", EnvPrefix, item))
			continue
		}
		out = append(out, ServiceMapping{Name: name, Record: record})
	}
	return out, errs
}
