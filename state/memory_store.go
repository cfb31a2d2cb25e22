package state

import "sync"

// MemoryStore is the default arena-scoped backend. Transactions buffer
// writes in an overlay and apply them on Commit, so an aborted batch never
// leaks a lock or a tracker.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Begin opens a transaction over the current contents.
func (s *MemoryStore) Begin(update bool) (Txn, error) {
	return &memoryTxn{
		store:   s,
		update:  update,
		overlay: make(map[string]*[]byte),
	}, nil
}

// Close is a no-op for the in-memory backend.
func (s *MemoryStore) Close() error {
	return nil
}

// Len returns the number of committed entries. Test helper.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

type memoryTxn struct {
	store  *MemoryStore
	update bool
	done   bool
	// overlay maps key -> pending value; nil marks a pending delete.
	overlay map[string]*[]byte
}

func (t *memoryTxn) Get(key []byte) ([]byte, bool, error) {
	if pending, ok := t.overlay[string(key)]; ok {
		if pending == nil {
			return nil, false, nil
		}
		return append([]byte(nil), (*pending)...), true, nil
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	value, ok := t.store.data[string(key)]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

func (t *memoryTxn) Set(key, value []byte) error {
	if !t.update {
		return ErrReadOnlyTxn
	}
	copied := append([]byte(nil), value...)
	t.overlay[string(key)] = &copied
	return nil
}

func (t *memoryTxn) Delete(key []byte) error {
	if !t.update {
		return ErrReadOnlyTxn
	}
	t.overlay[string(key)] = nil
	return nil
}

func (t *memoryTxn) Commit() error {
	if t.done {
		return nil
	}
	t.done = true

	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for key, pending := range t.overlay {
		if pending == nil {
			delete(t.store.data, key)
			continue
		}
		t.store.data[key] = *pending
	}
	return nil
}

func (t *memoryTxn) Discard() {
	if t.done {
		return
	}
	t.done = true
	t.overlay = nil
}
