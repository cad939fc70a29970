package rdb

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/alexbarcelo/netbox-dns-handler/internal/store"
	"github.com/alexbarcelo/netbox-dns-handler/internal/zone"
)

// deleteChunk bounds the number of ids per DELETE statement; SQLite
// limits bound variables per statement.
const deleteChunk = 500

// Store implements store.DB on a gorm connection.
type Store struct{ db *gorm.DB }

// NewStore wraps an open gorm connection.
func NewStore(db *gorm.DB) *Store { return &Store{db: db} }

// Open opens dbURL (see OpenFromURL) and wraps it in a Store.
func Open(dbURL string, debug bool) (*Store, error) {
	db, err := OpenFromURL(dbURL, debug)
	if err != nil {
		return nil, store.WrapError("open", err)
	}
	return NewStore(db), nil
}

// DB returns the underlying gorm connection.
func (s *Store) DB() *gorm.DB { return s.db }

func rowToRecord(r *RecordRow) store.Record {
	return store.Record{
		ID:       r.ID,
		ZoneID:   r.DomainID,
		Name:     r.Name,
		Type:     store.RecordType(r.Type),
		Content:  r.Content,
		TTL:      r.TTL,
		Priority: r.Prio,
	}
}

func recordToRow(r *store.Record) *RecordRow {
	return &RecordRow{
		ID:       r.ID,
		DomainID: r.ZoneID,
		Name:     r.Name,
		Type:     string(r.Type),
		Content:  r.Content,
		TTL:      r.TTL,
		Prio:     r.Priority,
	}
}

func (s *Store) ListZones(ctx context.Context) ([]zone.Zone, error) {
	var rows []DomainRow
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, store.WrapError("list zones", err)
	}
	out := make([]zone.Zone, 0, len(rows))
	for _, r := range rows {
		out = append(out, zone.Zone{ID: r.ID, Name: r.Name})
	}
	return out, nil
}

func (s *Store) FindAddressRecord(ctx context.Context, name string, rtype store.RecordType) (*store.Record, error) {
	var row RecordRow
	err := s.db.WithContext(ctx).
		Where("name = ? AND type = ?", name, string(rtype)).
		Order("id ASC").
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, store.WrapError("find address record", err)
	}
	rec := rowToRecord(&row)
	return &rec, nil
}

// FindServiceRecord filters the suffix in Go rather than with LIKE, since
// '_' in SRV owner and target names is a LIKE wildcard.
func (s *Store) FindServiceRecord(ctx context.Context, name, target string) (*store.Record, error) {
	var rows []RecordRow
	err := s.db.WithContext(ctx).
		Where("name = ? AND type = ?", name, string(store.RecordTypeSRV)).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, store.WrapError("find service record", err)
	}
	for i := range rows {
		if store.ContentHasTarget(rows[i].Content, target) {
			rec := rowToRecord(&rows[i])
			return &rec, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListAddressRecords(ctx context.Context) ([]store.Record, error) {
	var rows []RecordRow
	err := s.db.WithContext(ctx).
		Where("type IN ?", []string{string(store.RecordTypeA), string(store.RecordTypeAAAA)}).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, store.WrapError("list address records", err)
	}
	out := make([]store.Record, 0, len(rows))
	for i := range rows {
		out = append(out, rowToRecord(&rows[i]))
	}
	return out, nil
}

func (s *Store) Insert(ctx context.Context, rec *store.Record) error {
	row := recordToRow(rec)
	row.ID = 0
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return store.WrapError("insert record", err)
	}
	rec.ID = row.ID
	return nil
}

func (s *Store) UpdateContent(ctx context.Context, id int64, content string) error {
	err := s.db.WithContext(ctx).
		Model(&RecordRow{}).
		Where("id = ?", id).
		Update("content", content).Error
	return store.WrapError("update record content", err)
}

func (s *Store) DeleteByIDs(ctx context.Context, ids ...int64) error {
	for start := 0; start < len(ids); start += deleteChunk {
		end := min(start+deleteChunk, len(ids))
		err := s.db.WithContext(ctx).Where("id IN ?", ids[start:end]).Delete(&RecordRow{}).Error
		if err != nil {
			return store.WrapError("delete records", err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return store.WrapError("ping", err)
	}
	return store.WrapError("ping", sqlDB.PingContext(ctx))
}

// Begin starts a transaction. The context applies to every statement
// issued through the returned Tx.
func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, store.WrapError("begin", tx.Error)
	}
	return &Tx{Store: Store{db: tx}}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Tx is a Store bound to an open database transaction.
type Tx struct {
	Store
	done bool
}

func (t *Tx) Commit() error {
	if t.done {
		return store.ErrTxDone
	}
	t.done = true
	return store.WrapError("commit", t.db.Commit().Error)
}

func (t *Tx) Rollback() error {
	if t.done {
		return store.ErrTxDone
	}
	t.done = true
	return store.WrapError("rollback", t.db.Rollback().Error)
}

var _ store.DB = (*Store)(nil)
var _ store.Tx = (*Tx)(nil)
