package store

import (
	"encoding/binary"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

var (
	evMetaHeight = []byte("m/height")
	evMetaSeq    = []byte("m/seq")
)

// EventStore persists the append-only event log. Events for a height are
// keyed by (height, index) and committed in one batch together with the
// per-height length, the height's first global sequence number, and the
// height marker.
type EventStore struct {
	db *leveldb.DB

	height   uint64
	totalSeq uint64
}

func OpenEvents(path string) (*EventStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open event store %q: %w", path, err)
	}
	return attachEvents(db)
}

func OpenEventsMemory() (*EventStore, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("open mem event store: %w", err)
	}
	return attachEvents(db)
}

func attachEvents(db *leveldb.DB) (*EventStore, error) {
	es := &EventStore{db: db}
	if raw, err := db.Get(evMetaHeight, nil); err == nil {
		if len(raw) != 8 {
			return nil, fmt.Errorf("corrupt event height marker: %d bytes", len(raw))
		}
		es.height = binary.BigEndian.Uint64(raw)
	} else if err != leveldb.ErrNotFound {
		return nil, fmt.Errorf("read event height marker: %w", err)
	}
	if raw, err := db.Get(evMetaSeq, nil); err == nil {
		if len(raw) != 8 {
			return nil, fmt.Errorf("corrupt event seq marker: %d bytes", len(raw))
		}
		es.totalSeq = binary.BigEndian.Uint64(raw)
	} else if err != leveldb.ErrNotFound {
		return nil, fmt.Errorf("read event seq marker: %w", err)
	}
	return es, nil
}

func (es *EventStore) Close() error {
	return es.db.Close()
}

func eventKey(height uint64, index uint32) []byte {
	k := make([]byte, 2+8+4)
	k[0], k[1] = 'e', '/'
	binary.BigEndian.PutUint64(k[2:], height)
	binary.BigEndian.PutUint32(k[10:], index)
	return k
}

func lengthKey(height uint64) []byte {
	k := make([]byte, 2+8)
	k[0], k[1] = 'l', '/'
	binary.BigEndian.PutUint64(k[2:], height)
	return k
}

func seqBaseKey(height uint64) []byte {
	k := make([]byte, 2+8)
	k[0], k[1] = 's', '/'
	binary.BigEndian.PutUint64(k[2:], height)
	return k
}

// AppendAndCommit durably writes the full ordered event vector for height.
// After it returns, LengthAt/GetAt observe exactly these events.
func (es *EventStore) AppendAndCommit(height uint64, events [][]byte) error {
	batch := new(leveldb.Batch)
	for i, ev := range events {
		batch.Put(eventKey(height, uint32(i)), ev)
	}
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], uint32(len(events)))
	batch.Put(lengthKey(height), l[:])

	var sb [8]byte
	binary.BigEndian.PutUint64(sb[:], es.totalSeq)
	batch.Put(seqBaseKey(height), sb[:])

	var h [8]byte
	binary.BigEndian.PutUint64(h[:], height)
	batch.Put(evMetaHeight, h[:])

	var sq [8]byte
	binary.BigEndian.PutUint64(sq[:], es.totalSeq+uint64(len(events)))
	batch.Put(evMetaSeq, sq[:])

	if err := es.db.Write(batch, syncWrite); err != nil {
		return fmt.Errorf("event commit height %d: %w", height, err)
	}
	es.height = height
	es.totalSeq += uint64(len(events))
	return nil
}

// LengthAt returns the committed event count for height; 0 when the height
// has no committed events.
func (es *EventStore) LengthAt(height uint64) (uint32, error) {
	raw, err := es.db.Get(lengthKey(height), nil)
	if err == leveldb.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("event length at %d: %w", height, err)
	}
	if len(raw) != 4 {
		return 0, fmt.Errorf("corrupt event length at %d", height)
	}
	return binary.BigEndian.Uint32(raw), nil
}

func (es *EventStore) GetAt(height uint64, index uint32) ([]byte, error) {
	raw, err := es.db.Get(eventKey(height, index), nil)
	if err == leveldb.ErrNotFound {
		return nil, fmt.Errorf("no event at height %d index %d", height, index)
	}
	if err != nil {
		return nil, fmt.Errorf("event at %d/%d: %w", height, index, err)
	}
	return raw, nil
}

// FirstSequenceAt returns the global sequence number of the height's first
// event.
func (es *EventStore) FirstSequenceAt(height uint64) (uint64, error) {
	raw, err := es.db.Get(seqBaseKey(height), nil)
	if err == leveldb.ErrNotFound {
		return 0, fmt.Errorf("no sequence base at height %d", height)
	}
	if err != nil {
		return 0, fmt.Errorf("sequence base at %d: %w", height, err)
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("corrupt sequence base at %d", height)
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (es *EventStore) LastCommittedHeight() uint64 {
	return es.height
}

// TotalSequence is the count of all committed events; the next event
// published gets this sequence number.
func (es *EventStore) TotalSequence() uint64 {
	return es.totalSeq
}
