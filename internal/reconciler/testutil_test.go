package reconciler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/netip"
	"testing"

	"github.com/alexbarcelo/netbox-dns-handler/internal/inventory"
	"github.com/alexbarcelo/netbox-dns-handler/internal/store"
	"github.com/alexbarcelo/netbox-dns-handler/internal/store/memory"
	"github.com/alexbarcelo/netbox-dns-handler/internal/zone"
)

const testRoot = "example.org"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestDB returns a memory store with the zones
// example.org (1), dev.example.org (2) and a.dev.example.org (3).
func newTestDB() *memory.Store {
	db := memory.New()
	db.AddZone(zone.Zone{ID: 1, Name: "example.org"})
	db.AddZone(zone.Zone{ID: 2, Name: "dev.example.org"})
	db.AddZone(zone.Zone{ID: 3, Name: "a.dev.example.org"})
	return db
}

func newTestIndex(t *testing.T, db store.Store) *zone.Index {
	t.Helper()
	zones, err := db.ListZones(context.Background())
	if err != nil {
		t.Fatalf("ListZones: %v", err)
	}
	idx, err := zone.Build(zones, testRoot, zone.WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("zone.Build: %v", err)
	}
	return idx
}

func testOptions(mutate ...func(*Config)) []Option {
	cfg := DefaultConfig()
	for _, m := range mutate {
		m(&cfg)
	}
	return []Option{WithLogger(quietLogger()), WithConfig(cfg)}
}

func ip(s, name string) inventory.IPAddress {
	return inventory.IPAddress{Address: netip.MustParseAddr(s), DNSName: name}
}

func service(id int, port int, targets ...string) inventory.Service {
	svc := inventory.Service{ID: id, Name: "ldap", Display: "ldap", URL: "http://nb/svc/", Ports: []int{port}}
	for _, t := range targets {
		svc.IPAddresses = append(svc.IPAddresses, inventory.IPAddress{Address: netip.MustParseAddr("10.0.0.1"), DNSName: t})
	}
	return svc
}

// findRecords returns the stored records with name and type.
func findRecords(records []store.Record, name string, rtype store.RecordType) []store.Record {
	var out []store.Record
	for _, r := range records {
		if r.Name == name && r.Type == rtype {
			out = append(out, r)
		}
	}
	return out
}

var errBoom = errors.New("boom")

// faultyDB fails the configured write operation inside transactions.
type faultyDB struct {
	*memory.Store
	failOn string
}

func (f *faultyDB) Begin(ctx context.Context) (store.Tx, error) {
	if f.failOn == "begin" {
		return nil, store.WrapError("begin", errBoom)
	}
	tx, err := f.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &faultyTx{Tx: tx, failOn: f.failOn}, nil
}

type faultyTx struct {
	store.Tx
	failOn string
}

func (t *faultyTx) Insert(ctx context.Context, rec *store.Record) error {
	if t.failOn == "insert" {
		return store.WrapError("insert", errBoom)
	}
	return t.Tx.Insert(ctx, rec)
}

func (t *faultyTx) UpdateContent(ctx context.Context, id int64, content string) error {
	if t.failOn == "update" {
		return store.WrapError("update", errBoom)
	}
	return t.Tx.UpdateContent(ctx, id, content)
}

func (t *faultyTx) DeleteByIDs(ctx context.Context, ids ...int64) error {
	if t.failOn == "delete" {
		return store.WrapError("delete", errBoom)
	}
	return t.Tx.DeleteByIDs(ctx, ids...)
}

func (t *faultyTx) FindAddressRecord(ctx context.Context, name string, rtype store.RecordType) (*store.Record, error) {
	if t.failOn == "find" {
		return nil, store.WrapError("find", errBoom)
	}
	return t.Tx.FindAddressRecord(ctx, name, rtype)
}

// fakeSource is an in-memory inventory.Source.
type fakeSource struct {
	ips      []inventory.IPAddress
	services map[string][]inventory.Service
	err      error
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Ping(ctx context.Context) error { return f.err }

func (f *fakeSource) IPAddresses(ctx context.Context) ([]inventory.IPAddress, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.ips, nil
}

func (f *fakeSource) Services(ctx context.Context, name string) ([]inventory.Service, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.services[name], nil
}
