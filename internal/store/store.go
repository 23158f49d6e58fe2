// Package store provides the two append-only persistent stores backing
// execution: world state and the event log. All writes for a height become
// durable atomically at Commit(height); a crash between Apply and Commit
// observes nothing.
package store

import (
	"encoding/binary"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"nullsociety/chain/internal/state"
)

var (
	dataPrefix = []byte("d/")
	metaHeight = []byte("m/height")
)

var syncWrite = &opt.WriteOptions{Sync: true}

// Store is a world-state instance: staged writes live in an in-memory
// overlay plus a batch, and become durable only when Commit writes the
// batch (including the height marker) in one leveldb write.
type Store struct {
	db *leveldb.DB

	// Staged-but-uncommitted writes; value nil means delete.
	overlay map[string][]byte
	batch   *leveldb.Batch

	height    uint64
	committed bool
}

func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open store %q: %w", path, err)
	}
	return attach(db)
}

// OpenMemory backs the store with leveldb's in-memory storage; tests only.
func OpenMemory() (*Store, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("open mem store: %w", err)
	}
	return attach(db)
}

func attach(db *leveldb.DB) (*Store, error) {
	s := &Store{
		db:      db,
		overlay: map[string][]byte{},
		batch:   new(leveldb.Batch),
	}
	raw, err := db.Get(metaHeight, nil)
	switch err {
	case nil:
		if len(raw) != 8 {
			return nil, fmt.Errorf("corrupt height marker: %d bytes", len(raw))
		}
		s.height = binary.BigEndian.Uint64(raw)
		s.committed = true
	case leveldb.ErrNotFound:
		// Fresh store.
	default:
		return nil, fmt.Errorf("read height marker: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func dataKey(k state.Key) []byte {
	out := make([]byte, 0, len(dataPrefix)+len(k))
	out = append(out, dataPrefix...)
	return append(out, k...)
}

// Get returns the current value for key, observing staged-but-uncommitted
// writes. A missing key returns (nil, nil).
func (s *Store) Get(k state.Key) ([]byte, error) {
	if v, ok := s.overlay[string(k)]; ok {
		if v == nil {
			return nil, nil
		}
		return append([]byte(nil), v...), nil
	}
	v, err := s.db.Get(dataKey(k), nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store get: %w", err)
	}
	return v, nil
}

func (s *Store) Put(k state.Key, v []byte) {
	cp := append([]byte(nil), v...)
	s.overlay[string(k)] = cp
	s.batch.Put(dataKey(k), cp)
}

func (s *Store) Delete(k state.Key) {
	s.overlay[string(k)] = nil
	s.batch.Delete(dataKey(k))
}

// Apply stages a changeset in a single logical step; nothing becomes
// visible to a reopened store until Commit.
func (s *Store) Apply(cs state.Changeset) {
	for _, c := range cs {
		if c.Op == state.OpPut {
			s.Put(c.Key, c.Value)
		} else {
			s.Delete(c.Key)
		}
	}
}

// PutMeta stages an out-of-band record (app hash, genesis marker) that
// commits atomically with the next Commit.
func (s *Store) PutMeta(name string, v []byte) {
	s.batch.Put([]byte("m/"+name), append([]byte(nil), v...))
}

func (s *Store) GetMeta(name string) ([]byte, error) {
	v, err := s.db.Get([]byte("m/"+name), nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store meta get: %w", err)
	}
	return v, nil
}

// Commit makes every staged write durable up to height. After it returns, a
// crash and restart observes exactly those changes.
func (s *Store) Commit(height uint64) error {
	var h [8]byte
	binary.BigEndian.PutUint64(h[:], height)
	s.batch.Put(metaHeight, h[:])
	if err := s.db.Write(s.batch, syncWrite); err != nil {
		return fmt.Errorf("store commit height %d: %w", height, err)
	}
	s.batch.Reset()
	s.overlay = map[string][]byte{}
	s.height = height
	s.committed = true
	return nil
}

// LastCommittedHeight is 0 before the first commit; Initialized
// distinguishes a fresh store from one committed at height 0.
func (s *Store) LastCommittedHeight() uint64 {
	return s.height
}

func (s *Store) Initialized() bool {
	return s.committed
}

// Iterate walks committed keys with the given tag prefix in key order.
// Staged writes are not visible; callers merge overlays themselves.
func (s *Store) Iterate(prefix []byte, fn func(k state.Key, v []byte) error) error {
	full := append(append([]byte(nil), dataPrefix...), prefix...)
	it := s.db.NewIterator(util.BytesPrefix(full), nil)
	defer it.Release()
	for it.Next() {
		k := append(state.Key(nil), it.Key()[len(dataPrefix):]...)
		v := append([]byte(nil), it.Value()...)
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return it.Error()
}
