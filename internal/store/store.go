// Package store defines the persistence contract used by the reconcilers.
//
// The contract mirrors the PowerDNS generic SQL layout: a zone table and a
// records table keyed by (name, type, content). Implementations live in
// the rdb (gorm) and memory subpackages.
package store

import (
	"context"
	"strings"

	"github.com/alexbarcelo/netbox-dns-handler/internal/zone"
)

// RecordType is the DNS record type of a stored row.
type RecordType string

const (
	RecordTypeA    RecordType = "A"
	RecordTypeAAAA RecordType = "AAAA"
	RecordTypeSRV  RecordType = "SRV"
)

// Record is a row of the records table.
type Record struct {
	ID       int64
	ZoneID   int64
	Name     string
	Type     RecordType
	Content  string
	TTL      int
	Priority int
}

// Store is the set of operations the reconcilers need from persistence.
type Store interface {
	// ListZones returns every row of the zone table.
	ListZones(ctx context.Context) ([]zone.Zone, error)

	// FindAddressRecord returns the lowest-id record with the given name and
	// type. Content is not part of the key. Returns ErrNotFound if none.
	FindAddressRecord(ctx context.Context, name string, rtype RecordType) (*Record, error)

	// FindServiceRecord returns the lowest-id SRV record named name whose
	// content ends with target on a field boundary (see ContentHasTarget).
	// A plain suffix match is not enough: "1 389 xldap1.example.org" is not
	// a record for target "ldap1.example.org". Returns ErrNotFound if none.
	FindServiceRecord(ctx context.Context, name, target string) (*Record, error)

	// ListAddressRecords returns all A and AAAA records.
	ListAddressRecords(ctx context.Context) ([]Record, error)

	// Insert stores a new record and sets its ID.
	Insert(ctx context.Context, rec *Record) error

	// UpdateContent replaces the content of the record with the given id.
	UpdateContent(ctx context.Context, id int64, content string) error

	// DeleteByIDs removes the records with the given ids.
	DeleteByIDs(ctx context.Context, ids ...int64) error

	// Ping checks connectivity to the backing database.
	Ping(ctx context.Context) error
}

// Tx is a Store whose writes become durable on Commit. Writes are visible
// to reads made through the same Tx before Commit.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// DB is a Store that can open transactions.
type DB interface {
	Store
	Begin(ctx context.Context) (Tx, error)
	Close() error
}

// ContentHasTarget reports whether SRV content ends with target on a field
// boundary, so "1 80 b.example.org" does not match "example.org".
func ContentHasTarget(content, target string) bool {
	if target == "" || !strings.HasSuffix(content, target) {
		return false
	}
	rest := strings.TrimSuffix(content, target)
	return rest == "" || strings.HasSuffix(rest, " ")
}

// IsAddressType reports whether t is A or AAAA.
func IsAddressType(t RecordType) bool {
	return t == RecordTypeA || t == RecordTypeAAAA
}
