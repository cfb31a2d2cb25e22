// Package state holds the balance-tracking state store. The store is the
// only shared mutable resource in the engine: enforcers read and write it
// through a transaction handle scoped to one redemption batch, and the
// orchestrator commits or discards the transaction with the batch.
package state

// Store is a keyed persistent map. The in-memory backend is the default;
// the badger backend supplies durability with the same all-or-nothing
// transaction semantics.
type Store interface {
	// Begin opens a transaction. Writes are invisible to later
	// transactions until Commit.
	Begin(update bool) (Txn, error)
	// Close releases backend resources.
	Close() error
}

// Txn is a batch-scoped view of the store. Discard after Commit is a
// no-op, so callers can unconditionally defer Discard.
type Txn interface {
	Get(key []byte) ([]byte, bool, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	Commit() error
	Discard()
}
