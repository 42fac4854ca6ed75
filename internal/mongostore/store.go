// Package mongostore implements types.Store on MongoDB. Each record type is a
// collection named after it and each record a document whose _id is the
// primary key. Transactions use driver sessions, so the server must be a
// replica set or a sharded cluster.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/mesh-intelligence/multirow/pkg/types"
)

// DefaultDatabase is used when the config names no database.
const DefaultDatabase = "multirow"

const keyField = "_id"

// Store is a MongoDB backed record store.
type Store struct {
	mu     sync.Mutex
	closed bool
	client *mongo.Client
	db     *mongo.Database
	reg    types.Registry
}

// Open connects to cfg.DSN and checks the server is reachable.
func Open(ctx context.Context, cfg types.Config, reg types.Registry) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Backend != types.BackendMongo {
		return nil, fmt.Errorf("mongo store: %w: %q", types.ErrBackendUnknown, cfg.Backend)
	}

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.DSN))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	name := cfg.Database
	if name == "" {
		name = DefaultDatabase
	}
	return &Store{client: client, db: client.Database(name), reg: reg}, nil
}

// Begin starts a session and a transaction on it.
func (s *Store) Begin(ctx context.Context) (types.Tx, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, types.ErrStoreClosed
	}

	sess, err := s.client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	if err := sess.StartTransaction(); err != nil {
		sess.EndSession(ctx)
		return nil, fmt.Errorf("start transaction: %w", err)
	}
	return &tx{store: s, sess: sess}, nil
}

// Close disconnects the client. Close is idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Disconnect(context.Background())
}

// Drop removes the store's database. Tests use it to clean up.
func (s *Store) Drop(ctx context.Context) error {
	return s.db.Drop(ctx)
}

func generateID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

type tx struct {
	store *Store
	sess  *mongo.Session
	done  bool
}

func (t *tx) collection(name string) (types.RecordType, *mongo.Collection, error) {
	rt, ok := t.store.reg.Lookup(name)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", types.ErrUnknownType, name)
	}
	return rt, t.store.db.Collection(name), nil
}

// bind attaches the transaction's session to ctx.
func (t *tx) bind(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, t.sess)
}

func (t *tx) Find(ctx context.Context, typeName, id string) (types.Record, error) {
	if t.done {
		return nil, types.ErrTxDone
	}
	rt, coll, err := t.collection(typeName)
	if err != nil {
		return nil, err
	}

	var doc bson.M
	err = coll.FindOne(t.bind(ctx), bson.M{keyField: id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%s %s: %w", typeName, id, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("finding %s %s: %w", typeName, id, err)
	}
	return decode(rt, doc)
}

func (t *tx) Children(ctx context.Context, parent types.Record, rel types.Relation) ([]types.Record, error) {
	if t.done {
		return nil, types.ErrTxDone
	}
	rt, coll, err := t.collection(rel.Target)
	if err != nil {
		return nil, err
	}
	if parent.PrimaryKey() == "" {
		return nil, nil
	}

	sctx := t.bind(ctx)
	opts := options.Find().SetSort(bson.D{{Key: keyField, Value: 1}})
	cursor, err := coll.Find(sctx, bson.M{rel.ForeignKey: parent.PrimaryKey()}, opts)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", rt.Name(), err)
	}
	var docs []bson.M
	if err := cursor.All(sctx, &docs); err != nil {
		return nil, fmt.Errorf("reading %s: %w", rt.Name(), err)
	}

	out := make([]types.Record, 0, len(docs))
	for _, doc := range docs {
		rec, err := decode(rt, doc)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (t *tx) Save(ctx context.Context, rec types.Record) error {
	if t.done {
		return types.ErrTxDone
	}
	rt, coll, err := t.collection(rec.Type().Name())
	if err != nil {
		return err
	}
	if !rec.Validate() {
		return fmt.Errorf("saving %s: %w", rt.Name(), types.ErrValidation)
	}

	id := rec.PrimaryKey()
	isNew := id == ""
	if isNew {
		id = generateID()
	}
	doc := bson.M{keyField: id}
	for _, f := range rt.Fields() {
		v, err := f.Kind.Coerce(rec.Get(f.Name))
		if err != nil {
			return fmt.Errorf("%s.%s: %w", rt.Name(), f.Name, err)
		}
		doc[f.Name] = v
	}

	sctx := t.bind(ctx)
	if isNew {
		if _, err := coll.InsertOne(sctx, doc); err != nil {
			return fmt.Errorf("inserting %s: %w", rt.Name(), err)
		}
	} else {
		opts := options.Replace().SetUpsert(true)
		if _, err := coll.ReplaceOne(sctx, bson.M{keyField: id}, doc, opts); err != nil {
			return fmt.Errorf("updating %s %s: %w", rt.Name(), id, err)
		}
	}
	rec.SetPrimaryKey(id)
	return nil
}

func (t *tx) Delete(ctx context.Context, rec types.Record) error {
	if t.done {
		return types.ErrTxDone
	}
	rt, coll, err := t.collection(rec.Type().Name())
	if err != nil {
		return err
	}
	id := rec.PrimaryKey()
	if id == "" {
		return fmt.Errorf("%s without key: %w", rt.Name(), types.ErrNotFound)
	}

	res, err := coll.DeleteOne(t.bind(ctx), bson.M{keyField: id})
	if err != nil {
		return fmt.Errorf("deleting %s %s: %w", rt.Name(), id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%s %s: %w", rt.Name(), id, types.ErrNotFound)
	}
	return nil
}

func (t *tx) Commit() error {
	if t.done {
		return types.ErrTxDone
	}
	t.done = true
	ctx := context.Background()
	defer t.sess.EndSession(ctx)
	return t.sess.CommitTransaction(ctx)
}

func (t *tx) Rollback() error {
	if t.done {
		return types.ErrTxDone
	}
	t.done = true
	ctx := context.Background()
	defer t.sess.EndSession(ctx)
	return t.sess.AbortTransaction(ctx)
}

func decode(rt types.RecordType, doc bson.M) (types.Record, error) {
	rec := rt.New()
	id, _ := doc[keyField].(string)
	rec.SetPrimaryKey(id)
	for _, f := range rt.Fields() {
		v, err := f.Kind.Coerce(doc[f.Name])
		if err != nil {
			return nil, fmt.Errorf("decoding %s.%s: %w", rt.Name(), f.Name, err)
		}
		rec.Set(f.Name, v)
	}
	return rec, nil
}
