// Package node adapts the execution core to the consensus interface. It is
// purely a translation layer: CheckTx runs stateless admission, FinalizeBlock
// hands the ordered block to the driver, Query serves committed lookups.
package node

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"sync"

	abci "github.com/cometbft/cometbft/abci/types"

	"cosmossdk.io/log"

	"nullsociety/chain/internal/codec"
	"nullsociety/chain/internal/driver"
	"nullsociety/chain/internal/feed"
	"nullsociety/chain/internal/layer"
	"nullsociety/chain/internal/state"
	"nullsociety/chain/internal/store"
)

const AppVersion uint64 = 1

type App struct {
	*abci.BaseApplication

	mu      sync.Mutex
	world   *store.Store
	events  *store.EventStore
	driver  *driver.Driver
	feed    *feed.Feed
	genesis *Genesis
	logger  log.Logger
}

func New(world *store.Store, events *store.EventStore, genesis *Genesis, logger log.Logger) (*App, error) {
	admin, err := genesis.adminKey()
	if err != nil {
		return nil, err
	}
	f := feed.New(events)
	return &App{
		BaseApplication: abci.NewBaseApplication(),
		world:           world,
		events:          events,
		driver:          driver.New(world, events, f, admin, logger),
		feed:            f,
		genesis:         genesis,
		logger:          logger,
	}, nil
}

// Feed exposes the subscription hub to the gateway boundary.
func (a *App) Feed() *feed.Feed {
	return a.feed
}

func (a *App) Info(_ context.Context, _ *abci.RequestInfo) (*abci.ResponseInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return &abci.ResponseInfo{
		Data:             "nullchain",
		Version:          "v1",
		AppVersion:       AppVersion,
		LastBlockHeight:  int64(a.world.LastCommittedHeight()),
		LastBlockAppHash: a.driver.AppHash(),
	}, nil
}

// CheckTx admits transactions statelessly: envelope decode, signature,
// and instruction shape. Nonce ordering is enforced at execution.
func (a *App) CheckTx(_ context.Context, req *abci.RequestCheckTx) (*abci.ResponseCheckTx, error) {
	tx, err := codec.DecodeTransaction(req.Tx)
	if err != nil {
		return &abci.ResponseCheckTx{Code: 1, Log: err.Error()}, nil
	}
	if !tx.Verify() {
		return &abci.ResponseCheckTx{Code: 1, Log: "invalid signature"}, nil
	}
	if _, err := codec.DecodeInstruction(tx.Instruction); err != nil {
		return &abci.ResponseCheckTx{Code: 1, Log: err.Error()}, nil
	}
	return &abci.ResponseCheckTx{Code: 0}, nil
}

func (a *App) InitChain(_ context.Context, _ *abci.RequestInitChain) (*abci.ResponseInitChain, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.genesis.apply(a.world); err != nil {
		return nil, err
	}
	return &abci.ResponseInitChain{}, nil
}

func (a *App) FinalizeBlock(_ context.Context, req *abci.RequestFinalizeBlock) (*abci.ResponseFinalizeBlock, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	seedBytes := req.Hash
	if len(seedBytes) == 0 {
		var hb [8]byte
		binary.BigEndian.PutUint64(hb[:], uint64(req.Height))
		sum := sha256.Sum256(hb[:])
		seedBytes = sum[:]
	}
	var viewTime uint64
	if ts := req.Time.Unix(); ts > 0 {
		viewTime = uint64(ts)
	}
	seed := layer.Seed{Bytes: seedBytes, ViewTime: viewTime}

	outputs, err := a.driver.ExecuteBlock(uint64(req.Height), seed, req.Txs)
	if err != nil {
		// Protocol errors halt the node loudly rather than diverging.
		return nil, err
	}

	txResults := make([]*abci.ExecTxResult, 0, len(outputs))
	for _, out := range outputs {
		txResults = append(txResults, txResult(out))
	}
	return &abci.ResponseFinalizeBlock{
		TxResults: txResults,
		AppHash:   a.driver.AppHash(),
	}, nil
}

func (a *App) Commit(_ context.Context, _ *abci.RequestCommit) (*abci.ResponseCommit, error) {
	// Both stores committed durably inside FinalizeBlock (events first);
	// replayed heights are reconciled by the driver's recovery path.
	return &abci.ResponseCommit{}, nil
}

func txResult(out layer.TxOutput) *abci.ExecTxResult {
	if out.Skipped {
		return &abci.ExecTxResult{Code: 1, Log: out.Reason}
	}
	res := &abci.ExecTxResult{Code: 0}
	for _, ev := range out.Events {
		res.Events = append(res.Events, abci.Event{
			Type: codec.EventName(ev.EventTag()),
			Attributes: []abci.EventAttribute{
				{Key: "data", Value: hex.EncodeToString(codec.EncodeEvent(ev)), Index: false},
				{Key: "txHash", Value: hex.EncodeToString(out.TxHash[:]), Index: true},
			},
		})
	}
	return res
}

// Query serves committed state and the event log.
//
// Paths:
//   - /account/<hex pubkey>
//   - /house
//   - /amm
//   - /staker/<hex pubkey>
//   - /session/<id>
//   - /withdrawal/<id>
//   - /events/<height>
func (a *App) Query(_ context.Context, req *abci.RequestQuery) (*abci.ResponseQuery, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	height := int64(a.world.LastCommittedHeight())
	path := strings.TrimSpace(req.Path)
	switch {
	case strings.HasPrefix(path, "/account/"):
		pub, ok := parsePub(strings.TrimPrefix(path, "/account/"))
		if !ok {
			return queryErr("invalid public key", height), nil
		}
		return a.queryValue(state.AccountKey(pub), height, func(raw []byte) (any, error) {
			return state.DecodeAccount(raw)
		})
	case path == "/house":
		return a.queryValue(state.HouseKey(), height, func(raw []byte) (any, error) {
			return state.DecodeHouse(raw)
		})
	case path == "/amm":
		return a.queryValue(state.AmmPoolKey(), height, func(raw []byte) (any, error) {
			return state.DecodeAmmPool(raw)
		})
	case strings.HasPrefix(path, "/staker/"):
		pub, ok := parsePub(strings.TrimPrefix(path, "/staker/"))
		if !ok {
			return queryErr("invalid public key", height), nil
		}
		return a.queryValue(state.StakerKey(pub), height, func(raw []byte) (any, error) {
			return state.DecodeStaker(raw)
		})
	case strings.HasPrefix(path, "/session/"):
		id, err := strconv.ParseUint(strings.TrimPrefix(path, "/session/"), 10, 64)
		if err != nil {
			return queryErr("invalid session id", height), nil
		}
		return a.queryValue(state.SessionKey(id), height, func(raw []byte) (any, error) {
			return state.DecodeSession(raw)
		})
	case strings.HasPrefix(path, "/withdrawal/"):
		id, err := strconv.ParseUint(strings.TrimPrefix(path, "/withdrawal/"), 10, 64)
		if err != nil {
			return queryErr("invalid withdrawal id", height), nil
		}
		return a.queryValue(state.WithdrawalKey(id), height, func(raw []byte) (any, error) {
			return state.DecodeBridgeWithdrawal(raw)
		})
	case strings.HasPrefix(path, "/events/"):
		h, err := strconv.ParseUint(strings.TrimPrefix(path, "/events/"), 10, 64)
		if err != nil {
			return queryErr("invalid height", height), nil
		}
		n, err := a.events.LengthAt(h)
		if err != nil {
			return nil, err
		}
		evs := make([]string, 0, n)
		for i := uint32(0); i < n; i++ {
			raw, err := a.events.GetAt(h, i)
			if err != nil {
				return nil, err
			}
			evs = append(evs, hex.EncodeToString(raw))
		}
		b, _ := json.Marshal(evs)
		return &abci.ResponseQuery{Code: 0, Value: b, Height: height}, nil
	default:
		return queryErr("unknown query path", height), nil
	}
}

func (a *App) queryValue(k state.Key, height int64, decode func([]byte) (any, error)) (*abci.ResponseQuery, error) {
	raw, err := a.world.Get(k)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return queryErr("not found", height), nil
	}
	v, err := decode(raw)
	if err != nil {
		return nil, err
	}
	b, _ := json.Marshal(v)
	return &abci.ResponseQuery{Code: 0, Value: b, Height: height}, nil
}

func queryErr(msg string, height int64) *abci.ResponseQuery {
	return &abci.ResponseQuery{Code: 1, Log: msg, Height: height}
}

func parsePub(s string) ([32]byte, bool) {
	var pub [32]byte
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil || len(b) != 32 {
		return pub, false
	}
	copy(pub[:], b)
	return pub, true
}
