package state

import (
	"errors"
	"sync"

	"stakepool/storage"
)

var errTxClosed = errors.New("state: transaction already closed")

// Manager owns the persistent key/value store. All reads and writes go
// through a Tx so a failed operation never leaves partial state behind.
type Manager struct {
	db storage.Database
	mu sync.Mutex
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Begin opens an overlay transaction. Writes stay in memory until Commit.
func (m *Manager) Begin() *Tx {
	return &Tx{manager: m, writes: make(map[string]*pendingWrite)}
}

// View runs fn against a transaction that is always discarded.
func (m *Manager) View(fn func(*Tx) error) error {
	tx := m.Begin()
	defer tx.Discard()
	return fn(tx)
}

// Update runs fn in a transaction and commits it when fn succeeds.
func (m *Manager) Update(fn func(*Tx) error) error {
	tx := m.Begin()
	if err := fn(tx); err != nil {
		tx.Discard()
		return err
	}
	return tx.Commit()
}

type pendingWrite struct {
	value   []byte
	deleted bool
}

// Tx buffers writes on top of the committed store. It is not safe for
// concurrent use.
type Tx struct {
	manager *Manager
	writes  map[string]*pendingWrite
	order   []string
	closed  bool
}

func (tx *Tx) get(key []byte) ([]byte, bool, error) {
	if tx.closed {
		return nil, false, errTxClosed
	}
	if pending, ok := tx.writes[string(key)]; ok {
		if pending.deleted {
			return nil, false, nil
		}
		return append([]byte(nil), pending.value...), true, nil
	}
	value, err := tx.manager.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (tx *Tx) record(key []byte, write *pendingWrite) error {
	if tx.closed {
		return errTxClosed
	}
	k := string(key)
	if _, ok := tx.writes[k]; !ok {
		tx.order = append(tx.order, k)
	}
	tx.writes[k] = write
	return nil
}

func (tx *Tx) put(key, value []byte) error {
	return tx.record(key, &pendingWrite{value: append([]byte(nil), value...)})
}

func (tx *Tx) delete(key []byte) error {
	return tx.record(key, &pendingWrite{deleted: true})
}

// Pending reports how many keys the transaction would write.
func (tx *Tx) Pending() int { return len(tx.writes) }

// Commit writes every buffered change in one atomic batch.
func (tx *Tx) Commit() error {
	if tx.closed {
		return errTxClosed
	}
	tx.closed = true
	if len(tx.writes) == 0 {
		return nil
	}
	batch := storage.NewBatch()
	for _, k := range tx.order {
		pending := tx.writes[k]
		if pending.deleted {
			batch.Delete([]byte(k))
			continue
		}
		batch.Put([]byte(k), pending.value)
	}
	tx.manager.mu.Lock()
	defer tx.manager.mu.Unlock()
	return tx.manager.db.Write(batch)
}

// Discard drops buffered changes. It is safe to call after Commit.
func (tx *Tx) Discard() {
	tx.closed = true
	tx.writes = nil
	tx.order = nil
}
