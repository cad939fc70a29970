package reconciler

import (
	"context"
	"net/netip"
	"testing"

	"github.com/alexbarcelo/netbox-dns-handler/internal/inventory"
	"github.com/alexbarcelo/netbox-dns-handler/internal/matcher"
	"github.com/alexbarcelo/netbox-dns-handler/internal/store"
	"github.com/alexbarcelo/netbox-dns-handler/internal/zone"
)

func TestAddressUpsert_CreateThenUnchanged(t *testing.T) {
	db := newTestDB()
	a := NewAddressReconciler(db, newTestIndex(t, db), testOptions()...)
	ctx := context.Background()
	addr := netip.MustParseAddr("10.0.0.1")

	action, err := a.Upsert(ctx, db, "host.a.dev.example.org", addr)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if action.Type != ActionCreate || action.Status != StatusSuccess {
		t.Fatalf("expected successful create, got %s", action)
	}
	if action.ZoneID != 3 {
		t.Errorf("expected zone 3 (longest match), got %d", action.ZoneID)
	}

	recs := db.Records()
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0].TTL != DefaultTTL || recs[0].Priority != DefaultPriority || recs[0].Type != store.RecordTypeA {
		t.Errorf("unexpected record: %+v", recs[0])
	}

	action, err = a.Upsert(ctx, db, "host.a.dev.example.org", addr)
	if err != nil {
		t.Fatalf("second Upsert: %v", err)
	}
	if action.Type != ActionSkip || action.Status != StatusUnchanged {
		t.Errorf("expected unchanged no-op, got %s", action)
	}
	if got := db.Records(); len(got) != 1 || got[0] != recs[0] {
		t.Errorf("second upsert must not write, records: %+v", got)
	}
}

func TestAddressUpsert_UpdatePreservesIdentity(t *testing.T) {
	db := newTestDB()
	// Zone 1 on purpose: updates do not re-resolve the zone.
	db.Seed(store.Record{ID: 42, ZoneID: 1, Name: "host.dev.example.org", Type: store.RecordTypeA, Content: "10.0.0.1", TTL: 60})
	a := NewAddressReconciler(db, newTestIndex(t, db), testOptions()...)

	action, err := a.Upsert(context.Background(), db, "host.dev.example.org", netip.MustParseAddr("10.0.0.9"))
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if action.Type != ActionUpdate || action.Status != StatusSuccess || action.PrevContent != "10.0.0.1" {
		t.Fatalf("expected update from 10.0.0.1, got %s", action)
	}

	recs := db.Records()
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	want := store.Record{ID: 42, ZoneID: 1, Name: "host.dev.example.org", Type: store.RecordTypeA, Content: "10.0.0.9", TTL: 60}
	if recs[0] != want {
		t.Errorf("got %+v, want %+v", recs[0], want)
	}
}

func TestAddressUpsert_FamiliesAreSeparate(t *testing.T) {
	db := newTestDB()
	db.Seed(store.Record{ZoneID: 1, Name: "host.example.org", Type: store.RecordTypeA, Content: "10.0.0.1"})
	a := NewAddressReconciler(db, newTestIndex(t, db), testOptions()...)

	action, err := a.Upsert(context.Background(), db, "host.example.org", netip.MustParseAddr("2001:db8::1"))
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if action.Type != ActionCreate || action.RecordType != store.RecordTypeAAAA {
		t.Fatalf("expected AAAA create, got %s", action)
	}

	recs := db.Records()
	if a4 := findRecords(recs, "host.example.org", store.RecordTypeA); len(a4) != 1 || a4[0].Content != "10.0.0.1" {
		t.Errorf("A record must be untouched: %+v", a4)
	}
	if a6 := findRecords(recs, "host.example.org", store.RecordTypeAAAA); len(a6) != 1 || a6[0].Content != "2001:db8::1" {
		t.Errorf("unexpected AAAA records: %+v", a6)
	}
}

func TestAddressUpsert_MappedIPv4KeepsFamily(t *testing.T) {
	db := newTestDB()
	a := NewAddressReconciler(db, newTestIndex(t, db), testOptions()...)
	mapped := netip.MustParseAddr("::ffff:10.0.0.1")

	action, err := a.Upsert(context.Background(), db, "host.example.org", mapped)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if action.Type != ActionCreate || action.RecordType != store.RecordTypeAAAA {
		t.Fatalf("expected AAAA create, got %s", action)
	}
	recs := db.Records()
	if len(recs) != 1 || recs[0].Content != "::ffff:10.0.0.1" {
		t.Fatalf("unexpected records: %+v", recs)
	}

	// The stored content matches the desired pair, so prune keeps it.
	result, err := a.Prune(context.Background(), NewAddressSet([]inventory.IPAddress{ip("::ffff:10.0.0.1", "host.example.org")}))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if result.DeletedCount() != 0 || len(db.Records()) != 1 {
		t.Errorf("prune must keep the mapped record, got:\n%s", result.Summary())
	}
}

func TestAddressUpsert_FirstHitIsCanonical(t *testing.T) {
	db := newTestDB()
	db.Seed(
		store.Record{ID: 9, ZoneID: 1, Name: "dup.example.org", Type: store.RecordTypeA, Content: "10.0.0.9"},
		store.Record{ID: 5, ZoneID: 1, Name: "dup.example.org", Type: store.RecordTypeA, Content: "10.0.0.5"},
	)
	a := NewAddressReconciler(db, newTestIndex(t, db), testOptions()...)

	action, err := a.Upsert(context.Background(), db, "dup.example.org", netip.MustParseAddr("10.0.0.1"))
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if action.RecordID != 5 {
		t.Errorf("expected lowest id 5 to be updated, got %d", action.RecordID)
	}
	for _, r := range db.Records() {
		if r.ID == 9 && r.Content != "10.0.0.9" {
			t.Errorf("duplicate row must be left alone, got %+v", r)
		}
	}
}

func TestAddressUpsert_OutsideRoot(t *testing.T) {
	db := newTestDB()
	idx := newTestIndex(t, db)
	a := NewAddressReconciler(db, idx, testOptions()...)

	for _, name := range []string{"host.other.org", "example.org", "fooexample.org"} {
		action, err := a.Upsert(context.Background(), db, name, netip.MustParseAddr("10.0.0.1"))
		if err != nil {
			t.Fatalf("Upsert(%q) should not fail: %v", name, err)
		}
		if action.Type != ActionSkip || action.Reason != ReasonOutsideRoot {
			t.Errorf("Upsert(%q): expected outside-root skip, got %s", name, action)
		}
	}
	if n := len(db.Records()); n != 0 {
		t.Errorf("expected no records, got %d", n)
	}

	// Resolving directly still reports the mismatch.
	if _, err := idx.Resolve("host.other.org"); !zone.IsDomainMismatch(err) {
		t.Errorf("expected DomainMismatchError, got %v", err)
	}
}

func TestAddressBatchUpsert(t *testing.T) {
	db := newTestDB()
	a := NewAddressReconciler(db, newTestIndex(t, db), testOptions()...)

	noName := ip("10.0.0.3", "")
	noName.Assigned = &inventory.AssignedObject{Device: &inventory.Ref{Display: "srv3", URL: "http://nb/dcim/devices/3/"}}

	ips := []inventory.IPAddress{
		ip("10.0.0.1", "host1.example.org"),
		ip("2001:db8::1", "host1.example.org"),
		ip("10.0.0.2", "host2.dev.example.org"),
		noName,
		ip("10.0.0.4", "a..example.org"),
		ip("10.0.0.5", "host5.other.org"),
	}

	result, err := a.BatchUpsert(context.Background(), ips)
	if err != nil {
		t.Fatalf("BatchUpsert: %v", err)
	}

	if result.AddressesScanned != len(ips) {
		t.Errorf("expected %d scanned, got %d", len(ips), result.AddressesScanned)
	}
	if result.CreatedCount() != 3 {
		t.Errorf("expected 3 created, got %d", result.CreatedCount())
	}

	reasons := map[string]bool{}
	for _, s := range result.Skipped() {
		reasons[s.Reason] = true
	}
	for _, want := range []string{ReasonNoDNSName, ReasonInvalidName, ReasonOutsideRoot} {
		if !reasons[want] {
			t.Errorf("expected a skip with reason %s, got %v", want, reasons)
		}
	}

	if n := len(db.Records()); n != 3 {
		t.Errorf("expected 3 committed records, got %d", n)
	}

	// Second run is a no-op.
	again, err := a.BatchUpsert(context.Background(), ips)
	if err != nil {
		t.Fatalf("second BatchUpsert: %v", err)
	}
	if again.CreatedCount() != 0 || again.UpdatedCount() != 0 || len(again.Unchanged()) != 3 {
		t.Errorf("expected 3 unchanged, got summary:\n%s", again.Summary())
	}
}

func TestAddressBatchUpsert_DuplicateInput(t *testing.T) {
	db := newTestDB()
	a := NewAddressReconciler(db, newTestIndex(t, db), testOptions()...)

	ips := []inventory.IPAddress{
		ip("10.0.0.1", "host1.example.org"),
		ip("10.0.0.1", "host1.example.org"),
		ip("10.0.0.2", "host2.example.org"),
		ip("10.0.0.3", "host2.example.org"),
	}

	result, err := a.BatchUpsert(context.Background(), ips)
	if err != nil {
		t.Fatalf("BatchUpsert: %v", err)
	}

	skipped := result.Skipped()
	if len(skipped) != 1 || skipped[0].Reason != ReasonDuplicateInput || skipped[0].Name != "host1.example.org" {
		t.Errorf("expected one duplicate skip for host1, got %+v", skipped)
	}
	if result.CreatedCount() != 2 || result.UpdatedCount() != 1 {
		t.Errorf("expected 2 created and 1 updated, got:\n%s", result.Summary())
	}
	if recs := findRecords(db.Records(), "host2.example.org", store.RecordTypeA); len(recs) != 1 || recs[0].Content != "10.0.0.3" {
		t.Errorf("last address should win, got %+v", recs)
	}
}

func TestAddressBatchUpsert_DryRun(t *testing.T) {
	db := newTestDB()
	a := NewAddressReconciler(db, newTestIndex(t, db), testOptions(func(c *Config) { c.DryRun = true })...)

	result, err := a.BatchUpsert(context.Background(), []inventory.IPAddress{ip("10.0.0.1", "host1.example.org")})
	if err != nil {
		t.Fatalf("BatchUpsert: %v", err)
	}
	if result.CreatedCount() != 1 || !result.Created()[0].DryRun {
		t.Errorf("expected one dry-run create, got %+v", result.Actions)
	}
	if n := len(db.Records()); n != 0 {
		t.Errorf("dry-run must not persist, got %d records", n)
	}
}

func TestAddressBatchUpsert_StoreFailureRollsBack(t *testing.T) {
	mem := newTestDB()
	mem.Seed(store.Record{ID: 1, ZoneID: 1, Name: "stale.example.org", Type: store.RecordTypeA, Content: "10.0.0.1"})
	db := &faultyDB{Store: mem, failOn: "update"}
	a := NewAddressReconciler(db, newTestIndex(t, mem), testOptions()...)

	result, err := a.BatchUpsert(context.Background(), []inventory.IPAddress{
		ip("10.0.0.7", "new.example.org"),
		ip("10.0.0.2", "stale.example.org"),
		ip("10.0.0.8", "never.example.org"),
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !store.IsPersistence(err) {
		t.Errorf("expected PersistenceError, got %v", err)
	}
	if !result.RolledBack || result.FailedCount() != 1 {
		t.Errorf("expected rolled back result with 1 failure, got:\n%s", result.Summary())
	}

	recs := mem.Records()
	if len(recs) != 1 || recs[0].Content != "10.0.0.1" {
		t.Errorf("store must be unchanged after rollback, got %+v", recs)
	}
}

func TestAddressBatchUpsert_BeginFailure(t *testing.T) {
	mem := newTestDB()
	a := NewAddressReconciler(&faultyDB{Store: mem, failOn: "begin"}, newTestIndex(t, mem), testOptions()...)

	if _, err := a.BatchUpsert(context.Background(), nil); !store.IsPersistence(err) {
		t.Errorf("expected PersistenceError, got %v", err)
	}
}

func TestPrune_DeletesExactlyAbsent(t *testing.T) {
	db := newTestDB()
	db.Seed(
		store.Record{ZoneID: 1, Name: "a.example.org", Type: store.RecordTypeA, Content: "1.2.3.4"},
		store.Record{ZoneID: 1, Name: "b.example.org", Type: store.RecordTypeA, Content: "5.6.7.8"},
		store.Record{ZoneID: 1, Name: "_x._tcp.example.org", Type: store.RecordTypeSRV, Content: "1 80 b.example.org"},
	)
	a := NewAddressReconciler(db, newTestIndex(t, db), testOptions()...)

	valid := AddressSet{}
	valid.Add(netip.MustParseAddr("1.2.3.4"), "a.example.org")

	result, err := a.Prune(context.Background(), valid)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}

	deleted := result.Deleted()
	if len(deleted) != 1 || deleted[0].Name != "b.example.org" {
		t.Fatalf("expected b.example.org deleted, got %+v", deleted)
	}

	recs := db.Records()
	if len(recs) != 2 {
		t.Fatalf("expected 2 records left, got %+v", recs)
	}
	if recs[0].Name != "a.example.org" || recs[1].Type != store.RecordTypeSRV {
		t.Errorf("unexpected survivors: %+v", recs)
	}
}

func TestPrune_MatchesOnAddressAndName(t *testing.T) {
	db := newTestDB()
	db.Seed(
		store.Record{ZoneID: 1, Name: "a.example.org", Type: store.RecordTypeAAAA, Content: "2001:db8::1"},
		store.Record{ZoneID: 1, Name: "a.example.org", Type: store.RecordTypeA, Content: "10.0.0.1"},
	)
	a := NewAddressReconciler(db, newTestIndex(t, db), testOptions()...)

	// Same address under another name does not protect the record.
	valid := NewAddressSet([]inventory.IPAddress{
		ip("2001:db8::1", "a.example.org"),
		ip("10.0.0.1", "b.example.org"),
		ip("10.0.0.2", ""),
	})

	result, err := a.Prune(context.Background(), valid)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if result.DeletedCount() != 1 || result.Deleted()[0].Content != "10.0.0.1" {
		t.Errorf("expected the A record deleted, got %+v", result.Deleted())
	}
}

func TestPrune_KeepsUnparseableAndOutOfScope(t *testing.T) {
	db := newTestDB()
	db.Seed(
		store.Record{ZoneID: 1, Name: "weird.example.org", Type: store.RecordTypeA, Content: "not-an-ip"},
		store.Record{ZoneID: 1, Name: "gw.static.example.org", Type: store.RecordTypeA, Content: "10.0.0.254"},
		store.Record{ZoneID: 1, Name: "gone.example.org", Type: store.RecordTypeA, Content: "10.0.0.3"},
	)

	scope, err := matcher.NewDomainMatcher(matcher.DomainMatcherConfig{
		Includes: []string{"*"},
		Excludes: []string{"*.static.example.org"},
	})
	if err != nil {
		t.Fatalf("NewDomainMatcher: %v", err)
	}
	a := NewAddressReconciler(db, newTestIndex(t, db), testOptions(func(c *Config) { c.PruneScope = scope })...)

	result, err := a.Prune(context.Background(), AddressSet{})
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}

	if result.DeletedCount() != 1 || result.Deleted()[0].Name != "gone.example.org" {
		t.Errorf("expected only gone.example.org deleted, got %+v", result.Deleted())
	}
	reasons := map[string]string{}
	for _, s := range result.Skipped() {
		reasons[s.Name] = s.Reason
	}
	if reasons["weird.example.org"] != ReasonBadContent {
		t.Errorf("expected unparseable skip, got %q", reasons["weird.example.org"])
	}
	if reasons["gw.static.example.org"] != ReasonNotManaged {
		t.Errorf("expected out-of-scope skip, got %q", reasons["gw.static.example.org"])
	}
	if n := len(db.Records()); n != 2 {
		t.Errorf("expected 2 records kept, got %d", n)
	}
}

func TestPrune_DeleteFailure(t *testing.T) {
	mem := newTestDB()
	mem.Seed(store.Record{ZoneID: 1, Name: "gone.example.org", Type: store.RecordTypeA, Content: "10.0.0.3"})
	a := NewAddressReconciler(&faultyDB{Store: mem, failOn: "delete"}, newTestIndex(t, mem), testOptions()...)

	result, err := a.Prune(context.Background(), AddressSet{})
	if err == nil {
		t.Fatal("expected error")
	}
	if result.FailedCount() != 1 || result.Failed()[0].Type != ActionDelete {
		t.Errorf("expected a failed delete action, got %+v", result.Actions)
	}
	if n := len(mem.Records()); n != 1 {
		t.Errorf("record must survive failed prune, got %d records", n)
	}
}

func TestPrune_DryRun(t *testing.T) {
	db := newTestDB()
	db.Seed(store.Record{ZoneID: 1, Name: "gone.example.org", Type: store.RecordTypeA, Content: "10.0.0.3"})
	a := NewAddressReconciler(db, newTestIndex(t, db), testOptions(func(c *Config) { c.DryRun = true })...)

	result, err := a.Prune(context.Background(), AddressSet{})
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if result.DeletedCount() != 1 {
		t.Errorf("expected 1 planned delete, got %d", result.DeletedCount())
	}
	if n := len(db.Records()); n != 1 {
		t.Errorf("dry-run prune must not delete, got %d records", n)
	}
}

func TestRecordTypeFor(t *testing.T) {
	tests := []struct {
		addr string
		want store.RecordType
	}{
		{"10.0.0.1", store.RecordTypeA},
		{"2001:db8::1", store.RecordTypeAAAA},
		{"::ffff:10.0.0.1", store.RecordTypeAAAA},
	}
	for _, tt := range tests {
		if got := RecordTypeFor(netip.MustParseAddr(tt.addr)); got != tt.want {
			t.Errorf("RecordTypeFor(%s) = %s, want %s", tt.addr, got, tt.want)
		}
	}
}
