package state

import (
	"errors"

	badger "github.com/dgraph-io/badger/v4"
	pkgerrors "github.com/pkg/errors"
)

// ErrReadOnlyTxn is returned when a write is attempted on a read-only
// transaction.
var ErrReadOnlyTxn = errors.New("state: write on read-only transaction")

// BadgerConfig holds configuration for the durable store backend.
type BadgerConfig struct {
	// Path is the directory for the database files. Ignored when InMemory
	// is true.
	Path string
	// InMemory enables in-memory mode, useful for testing.
	InMemory bool
	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool
}

// BadgerStore is a badger-backed Store. A single badger transaction per
// redemption batch provides the all-or-nothing commit the engine assumes
// of its environment.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens the database at the configured path.
func NewBadgerStore(cfg BadgerConfig) (*BadgerStore, error) {
	opts := badger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to open state store")
	}
	return &BadgerStore{db: db}, nil
}

// Begin opens a badger transaction.
func (s *BadgerStore) Begin(update bool) (Txn, error) {
	return &badgerTxn{txn: s.db.NewTransaction(update)}, nil
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

type badgerTxn struct {
	txn  *badger.Txn
	done bool
}

func (t *badgerTxn) Get(key []byte) ([]byte, bool, error) {
	item, err := t.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, pkgerrors.Wrap(err, "state read failed")
	}
	value, err := item.ValueCopy(nil)
	if err != nil {
		return nil, false, pkgerrors.Wrap(err, "state read failed")
	}
	return value, true, nil
}

func (t *badgerTxn) Set(key, value []byte) error {
	if err := t.txn.Set(key, value); err != nil {
		return pkgerrors.Wrap(err, "state write failed")
	}
	return nil
}

func (t *badgerTxn) Delete(key []byte) error {
	if err := t.txn.Delete(key); err != nil {
		return pkgerrors.Wrap(err, "state delete failed")
	}
	return nil
}

func (t *badgerTxn) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.txn.Commit(); err != nil {
		return pkgerrors.Wrap(err, "state commit failed")
	}
	return nil
}

func (t *badgerTxn) Discard() {
	if t.done {
		return
	}
	t.done = true
	t.txn.Discard()
}
