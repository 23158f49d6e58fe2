// Package feed fans committed events out to subscribers. Buffers are
// bounded and lossy by design; every item carries a monotone global
// sequence number so a client that missed items can resume from the event
// log by sequence.
package feed

import (
	"fmt"
	"sync"

	"nullsociety/chain/internal/store"
)

// Item is one committed event with its feed coordinates.
type Item struct {
	Sequence uint64
	Height   uint64
	Index    uint32
	Event    []byte
}

// Subscriber owns a bounded delivery channel. Dropped reports whether the
// producer discarded items under backpressure; resume by sequence.
type Subscriber struct {
	C chan Item

	mu      sync.Mutex
	dropped bool
}

func (s *Subscriber) Dropped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func (s *Subscriber) markDropped() {
	s.mu.Lock()
	s.dropped = true
	s.mu.Unlock()
}

type Feed struct {
	events *store.EventStore

	mu      sync.Mutex
	subs    map[*Subscriber]struct{}
	nextSeq uint64
}

// New binds the feed to the event store; the next sequence continues from
// the committed total so numbering survives restarts.
func New(events *store.EventStore) *Feed {
	return &Feed{
		events:  events,
		subs:    map[*Subscriber]struct{}{},
		nextSeq: events.TotalSequence(),
	}
}

func (f *Feed) Subscribe(buffer int) *Subscriber {
	if buffer <= 0 {
		buffer = 64
	}
	s := &Subscriber{C: make(chan Item, buffer)}
	f.mu.Lock()
	f.subs[s] = struct{}{}
	f.mu.Unlock()
	return s
}

func (f *Feed) Unsubscribe(s *Subscriber) {
	f.mu.Lock()
	if _, ok := f.subs[s]; ok {
		delete(f.subs, s)
		close(s.C)
	}
	f.mu.Unlock()
}

// Publish assigns sequence numbers to a height's committed events and
// offers them to every subscriber. A full buffer drops the item for that
// subscriber only and marks it for resync.
func (f *Feed) Publish(height uint64, events [][]byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, ev := range events {
		item := Item{
			Sequence: f.nextSeq,
			Height:   height,
			Index:    uint32(i),
			Event:    ev,
		}
		f.nextSeq++
		for s := range f.subs {
			select {
			case s.C <- item:
			default:
				s.markDropped()
			}
		}
	}
}

// Replay returns up to limit committed items with Sequence >= fromSeq, in
// sequence order, reading back through the event log. A reconnecting
// client passes its last received sequence plus one.
func (f *Feed) Replay(fromSeq uint64, limit int) ([]Item, error) {
	if limit <= 0 {
		limit = 256
	}
	var out []Item
	last := f.events.LastCommittedHeight()
	for h := uint64(1); h <= last && len(out) < limit; h++ {
		n, err := f.events.LengthAt(h)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			continue
		}
		base, err := f.events.FirstSequenceAt(h)
		if err != nil {
			return nil, err
		}
		if base+uint64(n) <= fromSeq {
			continue
		}
		for i := uint32(0); i < n && len(out) < limit; i++ {
			seq := base + uint64(i)
			if seq < fromSeq {
				continue
			}
			ev, err := f.events.GetAt(h, i)
			if err != nil {
				return nil, fmt.Errorf("replay height %d: %w", h, err)
			}
			out = append(out, Item{Sequence: seq, Height: h, Index: i, Event: ev})
		}
	}
	return out, nil
}
