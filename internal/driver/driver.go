// Package driver orchestrates one height at a time: execute the block
// through a fresh layer, persist events first, then apply and commit world
// state. The events-first order makes every crash window recoverable by
// deterministic replay.
package driver

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	"cosmossdk.io/log"

	"nullsociety/chain/internal/codec"
	"nullsociety/chain/internal/layer"
	"nullsociety/chain/internal/store"
)

var (
	ErrHeightDesync   = errors.New("driver: world/event stores desynchronized")
	ErrEventsMismatch = errors.New("driver: replayed events differ from persisted events")
)

// Publisher receives the committed event vector for a height. The feed
// implements it; a nil publisher is valid.
type Publisher interface {
	Publish(height uint64, events [][]byte)
}

type Driver struct {
	world  *store.Store
	events *store.EventStore
	pub    Publisher
	admin  [32]byte
	logger log.Logger
}

func New(world *store.Store, events *store.EventStore, pub Publisher, admin [32]byte, logger log.Logger) *Driver {
	return &Driver{world: world, events: events, pub: pub, admin: admin, logger: logger}
}

// ExecuteBlock applies block H. The only admissible store states are
// E == W (normal) and E == W+1 (events committed, world not: recover by
// replay). Anything else is corruption and halts the node.
func (d *Driver) ExecuteBlock(height uint64, seed layer.Seed, txs [][]byte) ([]layer.TxOutput, error) {
	w := d.world.LastCommittedHeight()
	e := d.events.LastCommittedHeight()

	switch {
	case e == w && height == w+1:
		return d.executeNormal(height, seed, txs)
	case e == w+1 && height == e:
		d.logger.Info("recovering interrupted height", "height", height)
		return d.executeRecovery(height, seed, txs)
	default:
		return nil, fmt.Errorf("%w: world=%d events=%d incoming=%d", ErrHeightDesync, w, e, height)
	}
}

func (d *Driver) run(height uint64, seed layer.Seed, txs [][]byte) ([]layer.TxOutput, [][]byte, *layer.Layer, error) {
	l := layer.New(d.world, seed, height, d.admin)
	outputs, _, err := l.Execute(txs)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("execute height %d: %w", height, err)
	}
	var encoded [][]byte
	for _, out := range outputs {
		for _, ev := range out.Events {
			encoded = append(encoded, codec.EncodeEvent(ev))
		}
	}
	return outputs, encoded, l, nil
}

func (d *Driver) executeNormal(height uint64, seed layer.Seed, txs [][]byte) ([]layer.TxOutput, error) {
	outputs, encoded, l, err := d.run(height, seed, txs)
	if err != nil {
		return nil, err
	}
	if err := d.events.AppendAndCommit(height, encoded); err != nil {
		return nil, err
	}
	if err := d.commitWorld(height, l); err != nil {
		return nil, err
	}
	d.logger.Info("committed block", "height", height, "txs", len(txs), "events", len(encoded))
	if d.pub != nil {
		d.pub.Publish(height, encoded)
	}
	return outputs, nil
}

// executeRecovery re-runs the block whose events are already durable and
// requires the recomputation to reproduce them byte for byte before world
// state advances. No new events are written.
func (d *Driver) executeRecovery(height uint64, seed layer.Seed, txs [][]byte) ([]layer.TxOutput, error) {
	outputs, encoded, l, err := d.run(height, seed, txs)
	if err != nil {
		return nil, err
	}
	n, err := d.events.LengthAt(height)
	if err != nil {
		return nil, err
	}
	if int(n) != len(encoded) {
		return nil, fmt.Errorf("%w: height %d has %d persisted events, replay produced %d",
			ErrEventsMismatch, height, n, len(encoded))
	}
	for i, ev := range encoded {
		persisted, err := d.events.GetAt(height, uint32(i))
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(persisted, ev) {
			return nil, fmt.Errorf("%w: height %d index %d", ErrEventsMismatch, height, i)
		}
	}
	if err := d.commitWorld(height, l); err != nil {
		return nil, err
	}
	d.logger.Info("recovered block", "height", height, "events", len(encoded))
	if d.pub != nil {
		d.pub.Publish(height, encoded)
	}
	return outputs, nil
}

func (d *Driver) commitWorld(height uint64, l *layer.Layer) error {
	cs := l.Changeset()
	d.world.Apply(cs)
	d.world.PutMeta("apphash", d.nextAppHash(cs.Encode(), height))
	return d.world.Commit(height)
}

// nextAppHash chains the changeset into a rolling commitment exposed to
// the consensus layer.
func (d *Driver) nextAppHash(changeset []byte, height uint64) []byte {
	prev, err := d.world.GetMeta("apphash")
	if err != nil {
		prev = nil
	}
	h := sha256.New()
	h.Write(prev)
	var hb [8]byte
	for i := 0; i < 8; i++ {
		hb[i] = byte(height >> (56 - 8*i))
	}
	h.Write(hb[:])
	h.Write(changeset)
	return h.Sum(nil)
}

// AppHash is the current world-state commitment.
func (d *Driver) AppHash() []byte {
	h, err := d.world.GetMeta("apphash")
	if err != nil || h == nil {
		return make([]byte, sha256.Size)
	}
	return h
}
