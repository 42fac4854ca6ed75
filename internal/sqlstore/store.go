// Package sqlstore implements types.Store on database/sql for SQLite, MySQL
// and PostgreSQL. Each record type gets a table named after it with an "id"
// primary key column and one column per declared field.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/multirow/pkg/types"
)

const (
	keyColumn = "id"

	// SQLiteFile is the database file created in the data directory when
	// no DSN is configured.
	SQLiteFile = "multirow.db"
)

// Store is a database/sql backed record store.
type Store struct {
	mu      sync.Mutex
	closed  bool
	db      *sql.DB
	dialect dialect
	reg     types.Registry
}

// Open connects to the database described by cfg and creates a table for
// every type in reg that does not have one yet.
func Open(ctx context.Context, cfg types.Config, reg types.Registry) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		d   dialect
		dsn string
		err error
	)
	switch cfg.Backend {
	case types.BackendSQLite:
		d = sqliteDialect
		dsn, err = sqliteDSN(cfg)
	case types.BackendMySQL:
		d = mysqlDialect
		dsn, err = mysqlDSN(cfg.DSN, cfg.Database)
	case types.BackendPostgres:
		d = postgresDialect
		dsn, err = postgresDSN(cfg.DSN, cfg.Database)
	default:
		return nil, fmt.Errorf("sql store: %w: %q", types.ErrBackendUnknown, cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.name, err)
	}
	if d.name == sqliteDialect.name {
		// Transactions hold the only connection, so writers never see
		// SQLITE_BUSY from each other.
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, dialect: d, reg: reg}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func sqliteDSN(cfg types.Config) (string, error) {
	path := cfg.DSN
	if path == "" {
		dir := cfg.DataDir
		if dir == "" {
			dir = "."
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("creating data dir: %w", err)
		}
		path = filepath.Join(dir, SQLiteFile)
	}
	return path + "?_pragma=busy_timeout(5000)", nil
}

func (s *Store) migrate(ctx context.Context) error {
	for _, rt := range s.reg.Types() {
		if _, err := s.db.ExecContext(ctx, s.dialect.createTable(rt)); err != nil {
			return fmt.Errorf("creating table %s: %w", rt.Name(), err)
		}
	}
	return nil
}

// Begin starts a transaction.
func (s *Store) Begin(ctx context.Context) (types.Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, types.ErrStoreClosed
	}
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &tx{store: s, tx: sqlTx}, nil
}

// Close closes the database. Close is idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// generateID returns a time-ordered UUID v7 so that key order is insertion
// order.
func generateID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

type tx struct {
	store *Store
	tx    *sql.Tx
	done  bool
}

func (t *tx) lookup(name string) (types.RecordType, error) {
	rt, ok := t.store.reg.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownType, name)
	}
	return rt, nil
}

func (t *tx) Find(ctx context.Context, typeName, id string) (types.Record, error) {
	if t.done {
		return nil, types.ErrTxDone
	}
	rt, err := t.lookup(typeName)
	if err != nil {
		return nil, err
	}

	row := t.tx.QueryRowContext(ctx, t.store.dialect.selectByKey(rt), id)
	rec, err := scanRecord(rt, row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", typeName, id, types.ErrNotFound)
	}
	return rec, err
}

func (t *tx) Children(ctx context.Context, parent types.Record, rel types.Relation) ([]types.Record, error) {
	if t.done {
		return nil, types.ErrTxDone
	}
	rt, err := t.lookup(rel.Target)
	if err != nil {
		return nil, err
	}
	if parent.PrimaryKey() == "" {
		return nil, nil
	}

	rows, err := t.tx.QueryContext(ctx, t.store.dialect.selectChildren(rt, rel.ForeignKey), parent.PrimaryKey())
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", rt.Name(), err)
	}
	defer rows.Close()

	var out []types.Record
	for rows.Next() {
		rec, err := scanRecord(rt, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", rt.Name(), err)
	}
	return out, nil
}

func (t *tx) Save(ctx context.Context, rec types.Record) error {
	if t.done {
		return types.ErrTxDone
	}
	rt := rec.Type()
	if !rec.Validate() {
		return fmt.Errorf("saving %s: %w", rt.Name(), types.ErrValidation)
	}

	args, err := fieldArgs(rt, rec)
	if err != nil {
		return err
	}
	d := t.store.dialect

	if id := rec.PrimaryKey(); id != "" {
		res, err := t.tx.ExecContext(ctx, d.update(rt), append(args, id)...)
		if err != nil {
			return fmt.Errorf("updating %s %s: %w", rt.Name(), id, err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			return nil
		}
		// A key set by the caller that was never stored is inserted as is.
		return t.insert(ctx, rt, id, args)
	}

	id := generateID()
	if err := t.insert(ctx, rt, id, args); err != nil {
		return err
	}
	rec.SetPrimaryKey(id)
	return nil
}

func (t *tx) insert(ctx context.Context, rt types.RecordType, id string, args []any) error {
	if _, err := t.tx.ExecContext(ctx, t.store.dialect.insert(rt), append([]any{id}, args...)...); err != nil {
		return fmt.Errorf("inserting %s: %w", rt.Name(), err)
	}
	return nil
}

func (t *tx) Delete(ctx context.Context, rec types.Record) error {
	if t.done {
		return types.ErrTxDone
	}
	rt := rec.Type()
	id := rec.PrimaryKey()
	if id == "" {
		return fmt.Errorf("%s without key: %w", rt.Name(), types.ErrNotFound)
	}

	res, err := t.tx.ExecContext(ctx, t.store.dialect.deleteByKey(rt), id)
	if err != nil {
		return fmt.Errorf("deleting %s %s: %w", rt.Name(), id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting %s %s: %w", rt.Name(), id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", rt.Name(), id, types.ErrNotFound)
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

// fieldArgs returns the record's field values in declaration order, coerced
// to their kinds.
func fieldArgs(rt types.RecordType, rec types.Record) ([]any, error) {
	fields := rt.Fields()
	args := make([]any, len(fields))
	for i, f := range fields {
		v, err := f.Kind.Coerce(rec.Get(f.Name))
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", rt.Name(), f.Name, err)
		}
		args[i] = v
	}
	return args, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(rt types.RecordType, sc scanner) (types.Record, error) {
	fields := rt.Fields()
	var id string
	raw := make([]any, len(fields))
	dest := make([]any, len(fields)+1)
	dest[0] = &id
	for i := range raw {
		dest[i+1] = &raw[i]
	}
	if err := sc.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning %s: %w", rt.Name(), err)
	}

	rec := rt.New()
	rec.SetPrimaryKey(id)
	for i, f := range fields {
		v, err := f.Kind.Coerce(raw[i])
		if err != nil {
			return nil, fmt.Errorf("scanning %s.%s: %w", rt.Name(), f.Name, err)
		}
		rec.Set(f.Name, v)
	}
	return rec, nil
}
