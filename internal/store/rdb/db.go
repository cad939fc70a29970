// Package rdb implements store.DB on a PowerDNS generic SQL schema with gorm.
package rdb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/alexbarcelo/netbox-dns-handler/internal/store"
	"github.com/alexbarcelo/netbox-dns-handler/internal/zone"
)

// DefaultSQLitePath is used when a sqlite: URL carries no path.
const DefaultSQLitePath = "./powerdns.sqlite3"

// OpenFromURL opens a GORM DB based on a simple db-url string.
// Supported:
//   - sqlite:<dsn>   e.g., sqlite:/var/lib/powerdns/pdns.sqlite3
//   - sqlite3:<dsn>  alias of sqlite
//   - mysql:<dsn>    go-sql-driver DSN, e.g., mysql:pdns:secret@tcp(db:3306)/pdns
func OpenFromURL(dbURL string, debug bool) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
	if debug {
		cfg.Logger = gormlogger.Default.LogMode(gormlogger.Info)
	}

	switch {
	case strings.HasPrefix(dbURL, "sqlite:"):
		return gorm.Open(sqlite.Open(sqliteDSN(strings.TrimPrefix(dbURL, "sqlite:"))), cfg)
	case strings.HasPrefix(dbURL, "sqlite3:"):
		return gorm.Open(sqlite.Open(sqliteDSN(strings.TrimPrefix(dbURL, "sqlite3:"))), cfg)
	case strings.HasPrefix(dbURL, "mysql:"):
		dsn := strings.TrimPrefix(strings.TrimPrefix(dbURL, "mysql:"), "//")
		if dsn == "" {
			return nil, fmt.Errorf("mysql url requires a DSN")
		}
		return gorm.Open(mysql.Open(dsn), cfg)
	default:
		return nil, fmt.Errorf("unsupported db scheme: %s", redactURL(dbURL))
	}
}

func sqliteDSN(dsn string) string {
	if dsn == "" {
		return DefaultSQLitePath
	}
	return dsn
}

// redactURL keeps only the scheme so credentials never reach logs.
func redactURL(dbURL string) string {
	if i := strings.Index(dbURL, ":"); i >= 0 {
		return dbURL[:i] + ":<redacted>"
	}
	return "<redacted>"
}

// CreateZone returns the zone called name, creating it as a NATIVE zone
// when it does not exist.
func (s *Store) CreateZone(ctx context.Context, name string) (zone.Zone, bool, error) {
	db := s.db.WithContext(ctx)

	var row DomainRow
	err := db.Where("name = ?", name).First(&row).Error
	switch {
	case err == nil:
		return zone.Zone{ID: row.ID, Name: row.Name}, false, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return zone.Zone{}, false, store.WrapError("find zone", err)
	}

	row = DomainRow{Name: name, Type: "NATIVE"}
	if err := db.Create(&row).Error; err != nil {
		return zone.Zone{}, false, store.WrapError("create zone", err)
	}
	return zone.Zone{ID: row.ID, Name: row.Name}, true, nil
}

// AutoMigrate creates the zone and record tables that do not exist yet.
// Existing tables are never altered: a PowerDNS schema carries columns,
// indexes and foreign keys the models do not describe.
func AutoMigrate(db *gorm.DB) error {
	m := db.Migrator()
	for _, model := range []any{&DomainRow{}, &RecordRow{}} {
		if m.HasTable(model) {
			continue
		}
		if err := m.CreateTable(model); err != nil {
			return fmt.Errorf("creating table for %T: %w", model, err)
		}
	}
	return nil
}
