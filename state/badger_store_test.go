package state_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyphera/delegation-engine/state"
)

func openBadger(t *testing.T) *state.BadgerStore {
	t.Helper()
	store, err := state.NewBadgerStore(state.BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBadgerStore_RoundTrip(t *testing.T) {
	store := openBadger(t)

	txn, err := store.Begin(true)
	require.NoError(t, err)
	require.NoError(t, txn.Set([]byte("key"), []byte("value")))
	require.NoError(t, txn.Commit())

	read, err := store.Begin(false)
	require.NoError(t, err)
	defer read.Discard()

	value, found, err := read.Get([]byte("key"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("value"), value)
}

func TestBadgerStore_MissingKey(t *testing.T) {
	store := openBadger(t)

	txn, err := store.Begin(false)
	require.NoError(t, err)
	defer txn.Discard()

	_, found, err := txn.Get([]byte("absent"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestBadgerStore_DiscardDropsWrites(t *testing.T) {
	store := openBadger(t)

	txn, err := store.Begin(true)
	require.NoError(t, err)
	require.NoError(t, txn.Set([]byte("key"), []byte("value")))
	txn.Discard()

	read, err := store.Begin(false)
	require.NoError(t, err)
	defer read.Discard()

	_, found, err := read.Get([]byte("key"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestBadgerStore_DeleteCommits(t *testing.T) {
	store := openBadger(t)

	seed, err := store.Begin(true)
	require.NoError(t, err)
	require.NoError(t, seed.Set([]byte("key"), []byte("value")))
	require.NoError(t, seed.Commit())

	txn, err := store.Begin(true)
	require.NoError(t, err)
	require.NoError(t, txn.Delete([]byte("key")))
	require.NoError(t, txn.Commit())

	read, err := store.Begin(false)
	require.NoError(t, err)
	defer read.Discard()

	_, found, err := read.Get([]byte("key"))
	require.NoError(t, err)
	assert.False(t, found)
}
