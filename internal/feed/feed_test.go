package feed

import (
	"testing"

	"github.com/stretchr/testify/require"

	"nullsociety/chain/internal/store"
)

func newEventStore(t *testing.T) *store.EventStore {
	t.Helper()
	es, err := store.OpenEventsMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = es.Close() })
	return es
}

func commitAndPublish(t *testing.T, es *store.EventStore, f *Feed, height uint64, events [][]byte) {
	t.Helper()
	require.NoError(t, es.AppendAndCommit(height, events))
	f.Publish(height, events)
}

func TestFeed_SequenceIsStrictlyMonotonic(t *testing.T) {
	es := newEventStore(t)
	f := New(es)
	sub := f.Subscribe(16)

	commitAndPublish(t, es, f, 1, [][]byte{{0x01}, {0x02}})
	commitAndPublish(t, es, f, 2, [][]byte{{0x03}})

	var items []Item
	for i := 0; i < 3; i++ {
		items = append(items, <-sub.C)
	}
	for i, item := range items {
		require.EqualValues(t, i, item.Sequence, "no gaps, starting at 0")
	}
	require.EqualValues(t, 1, items[0].Height)
	require.EqualValues(t, 0, items[0].Index)
	require.EqualValues(t, 1, items[1].Index)
	require.EqualValues(t, 2, items[2].Height)
	require.False(t, sub.Dropped())
}

func TestFeed_SlowSubscriberDropsButOthersProceed(t *testing.T) {
	es := newEventStore(t)
	f := New(es)
	slow := f.Subscribe(1)
	fast := f.Subscribe(16)

	commitAndPublish(t, es, f, 1, [][]byte{{0x01}, {0x02}, {0x03}})

	require.True(t, slow.Dropped(), "bounded buffer must drop under backpressure")
	require.Len(t, fast.C, 3)
	require.Len(t, slow.C, 1)
}

func TestFeed_ReplayResumesFromSequence(t *testing.T) {
	es := newEventStore(t)
	f := New(es)

	commitAndPublish(t, es, f, 1, [][]byte{{0x01}, {0x02}})
	commitAndPublish(t, es, f, 2, nil)
	commitAndPublish(t, es, f, 3, [][]byte{{0x03}, {0x04}})

	// A client that saw sequence 1 resumes from 2.
	items, err := f.Replay(2, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.EqualValues(t, 2, items[0].Sequence)
	require.Equal(t, []byte{0x03}, items[0].Event)
	require.EqualValues(t, 3, items[0].Height)
	require.EqualValues(t, 3, items[1].Sequence)

	// Full replay from genesis covers everything in order.
	items, err = f.Replay(0, 0)
	require.NoError(t, err)
	require.Len(t, items, 4)
	for i, item := range items {
		require.EqualValues(t, i, item.Sequence)
	}

	// Replay past the end is empty.
	items, err = f.Replay(100, 0)
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestFeed_SequenceContinuesAcrossRestart(t *testing.T) {
	es := newEventStore(t)
	f := New(es)
	commitAndPublish(t, es, f, 1, [][]byte{{0x01}, {0x02}})

	// A new feed over the same log continues numbering.
	f2 := New(es)
	sub := f2.Subscribe(4)
	commitAndPublish(t, es, f2, 2, [][]byte{{0x03}})
	item := <-sub.C
	require.EqualValues(t, 2, item.Sequence)
}

func TestFeed_UnsubscribeClosesChannel(t *testing.T) {
	es := newEventStore(t)
	f := New(es)
	sub := f.Subscribe(4)
	f.Unsubscribe(sub)
	_, open := <-sub.C
	require.False(t, open)
	// Publishing after unsubscribe must not panic.
	commitAndPublish(t, es, f, 1, [][]byte{{0x01}})
}
