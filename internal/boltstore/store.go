// Package boltstore implements types.Store on a bbolt file. Each record type
// has a bucket named after it; keys are primary keys and values are the
// record's fields as JSON.
package boltstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/mesh-intelligence/multirow/pkg/types"
)

// FileName is the database file created in the data directory when no DSN
// is configured.
const FileName = "multirow.bolt"

// Store is a bbolt backed record store.
type Store struct {
	mu     sync.Mutex
	closed bool
	db     *bolt.DB
	reg    types.Registry
}

// document is the stored form of a record.
type document struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// Open opens or creates the bbolt file named by cfg.DSN, or FileName in
// cfg.DataDir, and ensures a bucket exists for every type in reg.
func Open(cfg types.Config, reg types.Registry) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Backend != types.BackendBolt {
		return nil, fmt.Errorf("bolt store: %w: %q", types.ErrBackendUnknown, cfg.Backend)
	}

	path := cfg.DSN
	if path == "" {
		dir := cfg.DataDir
		if dir == "" {
			dir = "."
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		path = filepath.Join(dir, FileName)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}

	err = db.Update(func(btx *bolt.Tx) error {
		for _, rt := range reg.Types() {
			if _, err := btx.CreateBucketIfNotExists([]byte(rt.Name())); err != nil {
				return fmt.Errorf("creating bucket %s: %w", rt.Name(), err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, reg: reg}, nil
}

// Begin starts a writable transaction. bbolt allows one writable
// transaction at a time; Begin blocks until the previous one finishes.
func (s *Store) Begin(ctx context.Context) (types.Tx, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, types.ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	btx, err := s.db.Begin(true)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &tx{reg: s.reg, tx: btx}, nil
}

// Close closes the bbolt file. Close is idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func generateID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

type tx struct {
	reg  types.Registry
	tx   *bolt.Tx
	done bool
}

func (t *tx) bucket(name string) (types.RecordType, *bolt.Bucket, error) {
	rt, ok := t.reg.Lookup(name)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", types.ErrUnknownType, name)
	}
	b := t.tx.Bucket([]byte(name))
	if b == nil {
		return nil, nil, fmt.Errorf("bucket %s missing: %w", name, types.ErrUnknownType)
	}
	return rt, b, nil
}

func (t *tx) Find(_ context.Context, typeName, id string) (types.Record, error) {
	if t.done {
		return nil, types.ErrTxDone
	}
	rt, b, err := t.bucket(typeName)
	if err != nil {
		return nil, err
	}
	data := b.Get([]byte(id))
	if data == nil {
		return nil, fmt.Errorf("%s %s: %w", typeName, id, types.ErrNotFound)
	}
	return decode(rt, data)
}

func (t *tx) Children(_ context.Context, parent types.Record, rel types.Relation) ([]types.Record, error) {
	if t.done {
		return nil, types.ErrTxDone
	}
	rt, b, err := t.bucket(rel.Target)
	if err != nil {
		return nil, err
	}
	parentID := parent.PrimaryKey()
	if parentID == "" {
		return nil, nil
	}

	var out []types.Record
	c := b.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		rec, err := decode(rt, v)
		if err != nil {
			return nil, err
		}
		if fk, _ := rec.Get(rel.ForeignKey).(string); fk == parentID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (t *tx) Save(_ context.Context, rec types.Record) error {
	if t.done {
		return types.ErrTxDone
	}
	rt, b, err := t.bucket(rec.Type().Name())
	if err != nil {
		return err
	}
	if !rec.Validate() {
		return fmt.Errorf("saving %s: %w", rt.Name(), types.ErrValidation)
	}

	id := rec.PrimaryKey()
	if id == "" {
		id = generateID()
	}
	doc := document{ID: id, Fields: make(map[string]any)}
	for _, f := range rt.Fields() {
		v, err := f.Kind.Coerce(rec.Get(f.Name))
		if err != nil {
			return fmt.Errorf("%s.%s: %w", rt.Name(), f.Name, err)
		}
		doc.Fields[f.Name] = v
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", rt.Name(), err)
	}
	if err := b.Put([]byte(id), data); err != nil {
		return fmt.Errorf("writing %s %s: %w", rt.Name(), id, err)
	}
	rec.SetPrimaryKey(id)
	return nil
}

func (t *tx) Delete(_ context.Context, rec types.Record) error {
	if t.done {
		return types.ErrTxDone
	}
	rt, b, err := t.bucket(rec.Type().Name())
	if err != nil {
		return err
	}
	id := rec.PrimaryKey()
	if id == "" || b.Get([]byte(id)) == nil {
		return fmt.Errorf("%s %s: %w", rt.Name(), id, types.ErrNotFound)
	}
	if err := b.Delete([]byte(id)); err != nil {
		return fmt.Errorf("deleting %s %s: %w", rt.Name(), id, err)
	}
	return nil
}

func (t *tx) Commit() error {
	if t.done {
		return types.ErrTxDone
	}
	t.done = true
	return t.tx.Commit()
}

func (t *tx) Rollback() error {
	if t.done {
		return types.ErrTxDone
	}
	t.done = true
	return t.tx.Rollback()
}

func decode(rt types.RecordType, data []byte) (types.Record, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", rt.Name(), err)
	}
	rec := rt.New()
	rec.SetPrimaryKey(doc.ID)
	for _, f := range rt.Fields() {
		v, err := f.Kind.Coerce(doc.Fields[f.Name])
		if err != nil {
			return nil, fmt.Errorf("decoding %s.%s: %w", rt.Name(), f.Name, err)
		}
		rec.Set(f.Name, v)
	}
	return rec, nil
}
