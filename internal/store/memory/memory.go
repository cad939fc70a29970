// Package memory provides an in-memory store.DB for tests and offline runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/alexbarcelo/netbox-dns-handler/internal/store"
	"github.com/alexbarcelo/netbox-dns-handler/internal/zone"
)

// state is the mutable content of a store or a transaction.
type state struct {
	zones   []zone.Zone
	records []store.Record
	nextID  int64
}

func (s *state) clone() *state {
	c := &state{
		zones:   make([]zone.Zone, len(s.zones)),
		records: make([]store.Record, len(s.records)),
		nextID:  s.nextID,
	}
	copy(c.zones, s.zones)
	copy(c.records, s.records)
	return c
}

// Store is a mutex-guarded in-memory implementation of store.DB.
type Store struct {
	mu sync.RWMutex
	st *state
}

// New creates an empty store.
func New() *Store {
	return &Store{st: &state{nextID: 1}}
}

// AddZone appends a zone row. Used to seed the store.
func (s *Store) AddZone(z zone.Zone) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.zones = append(s.st.zones, z)
}

// Seed inserts records directly, assigning ids to those without one.
func (s *Store) Seed(records ...store.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if r.ID == 0 {
			r.ID = s.st.nextID
		}
		if r.ID >= s.st.nextID {
			s.st.nextID = r.ID + 1
		}
		s.st.records = append(s.st.records, r)
	}
}

// Records returns a copy of all stored records ordered by id.
func (s *Store) Records() []store.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Record, len(s.st.records))
	copy(out, s.st.records)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) ListZones(ctx context.Context) ([]zone.Zone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.listZones(), nil
}

func (s *Store) FindAddressRecord(ctx context.Context, name string, rtype store.RecordType) (*store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.findAddress(name, rtype)
}

func (s *Store) FindServiceRecord(ctx context.Context, name, target string) (*store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.findService(name, target)
}

func (s *Store) ListAddressRecords(ctx context.Context) ([]store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.listAddress(), nil
}

func (s *Store) Insert(ctx context.Context, rec *store.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.insert(rec)
	return nil
}

func (s *Store) UpdateContent(ctx context.Context, id int64, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.updateContent(id, content)
}

func (s *Store) DeleteByIDs(ctx context.Context, ids ...int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.deleteIDs(ids)
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// Begin starts a transaction working on a private copy of the store.
func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &Tx{parent: s, st: s.st.clone()}, nil
}

// Tx is a transaction over a Store. Commit replaces the parent's content.
type Tx struct {
	parent *Store
	st     *state
	done   bool
}

func (t *Tx) ListZones(ctx context.Context) ([]zone.Zone, error) {
	if t.done {
		return nil, store.ErrTxDone
	}
	return t.st.listZones(), nil
}

func (t *Tx) FindAddressRecord(ctx context.Context, name string, rtype store.RecordType) (*store.Record, error) {
	if t.done {
		return nil, store.ErrTxDone
	}
	return t.st.findAddress(name, rtype)
}

func (t *Tx) FindServiceRecord(ctx context.Context, name, target string) (*store.Record, error) {
	if t.done {
		return nil, store.ErrTxDone
	}
	return t.st.findService(name, target)
}

func (t *Tx) ListAddressRecords(ctx context.Context) ([]store.Record, error) {
	if t.done {
		return nil, store.ErrTxDone
	}
	return t.st.listAddress(), nil
}

func (t *Tx) Insert(ctx context.Context, rec *store.Record) error {
	if t.done {
		return store.ErrTxDone
	}
	t.st.insert(rec)
	return nil
}

func (t *Tx) UpdateContent(ctx context.Context, id int64, content string) error {
	if t.done {
		return store.ErrTxDone
	}
	return t.st.updateContent(id, content)
}

func (t *Tx) DeleteByIDs(ctx context.Context, ids ...int64) error {
	if t.done {
		return store.ErrTxDone
	}
	t.st.deleteIDs(ids)
	return nil
}

func (t *Tx) Ping(ctx context.Context) error { return nil }

func (t *Tx) Commit() error {
	if t.done {
		return store.ErrTxDone
	}
	t.done = true
	t.parent.mu.Lock()
	defer t.parent.mu.Unlock()
	t.parent.st = t.st
	return nil
}

func (t *Tx) Rollback() error {
	if t.done {
		return store.ErrTxDone
	}
	t.done = true
	return nil
}

func (s *state) listZones() []zone.Zone {
	out := make([]zone.Zone, len(s.zones))
	copy(out, s.zones)
	return out
}

// firstMatch returns the lowest-id record satisfying match.
func (s *state) firstMatch(match func(store.Record) bool) (*store.Record, error) {
	var found *store.Record
	for i := range s.records {
		r := s.records[i]
		if !match(r) {
			continue
		}
		if found == nil || r.ID < found.ID {
			found = &r
		}
	}
	if found == nil {
		return nil, store.ErrNotFound
	}
	return found, nil
}

func (s *state) findAddress(name string, rtype store.RecordType) (*store.Record, error) {
	return s.firstMatch(func(r store.Record) bool {
		return r.Name == name && r.Type == rtype
	})
}

func (s *state) findService(name, target string) (*store.Record, error) {
	return s.firstMatch(func(r store.Record) bool {
		return r.Name == name && r.Type == store.RecordTypeSRV && store.ContentHasTarget(r.Content, target)
	})
}

func (s *state) listAddress() []store.Record {
	var out []store.Record
	for _, r := range s.records {
		if store.IsAddressType(r.Type) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *state) insert(rec *store.Record) {
	rec.ID = s.nextID
	s.nextID++
	s.records = append(s.records, *rec)
}

func (s *state) updateContent(id int64, content string) error {
	for i := range s.records {
		if s.records[i].ID == id {
			s.records[i].Content = content
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *state) deleteIDs(ids []int64) {
	drop := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := s.records[:0:0]
	for _, r := range s.records {
		if _, ok := drop[r.ID]; !ok {
			kept = append(kept, r)
		}
	}
	s.records = kept
}

var _ store.DB = (*Store)(nil)
var _ store.Tx = (*Tx)(nil)
