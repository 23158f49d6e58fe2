package node

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"cosmossdk.io/log"
	abci "github.com/cometbft/cometbft/abci/types"
	"github.com/stretchr/testify/require"

	"nullsociety/chain/internal/codec"
	"nullsociety/chain/internal/store"
)

func testKey(name string) ([32]byte, ed25519.PrivateKey) {
	seed := sha256.Sum256([]byte("nullchain/test/ed25519/" + name))
	priv := ed25519.NewKeyFromSeed(seed[:])
	var pub [32]byte
	copy(pub[:], priv.Public().(ed25519.PublicKey))
	return pub, priv
}

func signedTx(t *testing.T, priv ed25519.PrivateKey, nonce uint64, instr codec.Instruction) []byte {
	t.Helper()
	var pub [32]byte
	copy(pub[:], priv.Public().(ed25519.PublicKey))
	tx := &codec.Transaction{Public: pub, Nonce: nonce, Instruction: codec.EncodeInstruction(instr)}
	tx.Sign(priv)
	return tx.Encode()
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	world, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = world.Close() })
	events, err := store.OpenEventsMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = events.Close() })

	adminPub, _ := testKey("admin")
	alicePub, _ := testKey("alice")
	genesis := &Genesis{
		AdminPub:           hex.EncodeToString(adminPub[:]),
		RecoveryProgramCap: 1 << 30,
		Accounts: map[string]uint64{
			hex.EncodeToString(alicePub[:]): 1000,
		},
	}
	app, err := New(world, events, genesis, log.NewNopLogger())
	require.NoError(t, err)

	_, err = app.InitChain(context.Background(), &abci.RequestInitChain{})
	require.NoError(t, err)
	return app
}

func finalize(t *testing.T, app *App, height int64, txs [][]byte) *abci.ResponseFinalizeBlock {
	t.Helper()
	sum := sha256.Sum256([]byte{byte(height)})
	res, err := app.FinalizeBlock(context.Background(), &abci.RequestFinalizeBlock{
		Height: height,
		Hash:   sum[:],
		Time:   time.Unix(1_700_000_000+height, 0),
		Txs:    txs,
	})
	require.NoError(t, err)
	_, err = app.Commit(context.Background(), &abci.RequestCommit{})
	require.NoError(t, err)
	return res
}

func queryJSON(t *testing.T, app *App, path string) map[string]any {
	t.Helper()
	res, err := app.Query(context.Background(), &abci.RequestQuery{Path: path})
	require.NoError(t, err)
	require.Zero(t, res.Code, "query %s: %s", path, res.Log)
	var out map[string]any
	require.NoError(t, json.Unmarshal(res.Value, &out))
	return out
}

func TestCheckTx_StaticAdmission(t *testing.T) {
	app := newTestApp(t)
	_, alicePriv := testKey("alice")

	ok, err := app.CheckTx(context.Background(), &abci.RequestCheckTx{
		Tx: signedTx(t, alicePriv, 0, &codec.Stake{Amount: 1}),
	})
	require.NoError(t, err)
	require.Zero(t, ok.Code)

	bad, err := app.CheckTx(context.Background(), &abci.RequestCheckTx{Tx: []byte{0x01}})
	require.NoError(t, err)
	require.EqualValues(t, 1, bad.Code)

	// Valid envelope, unknown instruction tag.
	alicePub, _ := testKey("alice")
	tx := &codec.Transaction{Public: alicePub, Nonce: 0, Instruction: []byte{0xEE}}
	tx.Sign(alicePriv)
	rej, err := app.CheckTx(context.Background(), &abci.RequestCheckTx{Tx: tx.Encode()})
	require.NoError(t, err)
	require.EqualValues(t, 1, rej.Code)
}

// The blackjack lifecycle end to end over the consensus interface:
// start at height 1, stand at height 2.
func TestFinalizeBlock_BlackjackLifecycle(t *testing.T) {
	app := newTestApp(t)
	_, alicePriv := testKey("alice")

	res := finalize(t, app, 1, [][]byte{
		signedTx(t, alicePriv, 0, &codec.StartGame{GameType: 1, Bet: 100, SessionID: 7}),
	})
	require.Len(t, res.TxResults, 1)
	require.Zero(t, res.TxResults[0].Code)
	require.Equal(t, "GameStarted", res.TxResults[0].Events[0].Type)

	acct := queryJSON(t, app, "/account/"+hexPub(t, "alice"))
	require.EqualValues(t, 900, acct["Chips"])
	sessRes, err := app.Query(context.Background(), &abci.RequestQuery{Path: "/session/7"})
	require.NoError(t, err)
	require.Zero(t, sessRes.Code)

	res = finalize(t, app, 2, [][]byte{
		signedTx(t, alicePriv, 1, &codec.GameMove{SessionID: 7, Payload: []byte{1}}),
	})
	require.Zero(t, res.TxResults[0].Code)
	require.Equal(t, "GameCompleted", res.TxResults[0].Events[0].Type)

	sessRes, err = app.Query(context.Background(), &abci.RequestQuery{Path: "/session/7"})
	require.NoError(t, err)
	require.EqualValues(t, 1, sessRes.Code, "completed session must be gone")

	acct = queryJSON(t, app, "/account/"+hexPub(t, "alice"))
	require.Contains(t, []any{float64(900), float64(1000), float64(1100), float64(1150)}, acct["Chips"])

	info, err := app.Info(context.Background(), &abci.RequestInfo{})
	require.NoError(t, err)
	require.EqualValues(t, 2, info.LastBlockHeight)
	require.NotEmpty(t, info.LastBlockAppHash)
}

func TestFinalizeBlock_SkippedTxReportsNonZeroCode(t *testing.T) {
	app := newTestApp(t)
	_, alicePriv := testKey("alice")

	res := finalize(t, app, 1, [][]byte{
		signedTx(t, alicePriv, 5, &codec.Stake{Amount: 1}), // nonce gap
	})
	require.EqualValues(t, 1, res.TxResults[0].Code)
	require.Contains(t, res.TxResults[0].Log, "nonce mismatch")
}

func TestFeed_DeliversCommittedEventsWithSequence(t *testing.T) {
	app := newTestApp(t)
	_, alicePriv := testKey("alice")
	sub := app.Feed().Subscribe(16)

	finalize(t, app, 1, [][]byte{
		signedTx(t, alicePriv, 0, &codec.Stake{Amount: 100}),
	})

	item := <-sub.C
	require.EqualValues(t, 0, item.Sequence)
	require.EqualValues(t, 1, item.Height)
	ev, err := codec.DecodeEvent(item.Event)
	require.NoError(t, err)
	require.IsType(t, &codec.StakeChanged{}, ev)
}

func TestQuery_EventsAndUnknownPaths(t *testing.T) {
	app := newTestApp(t)
	_, alicePriv := testKey("alice")
	finalize(t, app, 1, [][]byte{
		signedTx(t, alicePriv, 0, &codec.Stake{Amount: 100}),
	})

	res, err := app.Query(context.Background(), &abci.RequestQuery{Path: "/events/1"})
	require.NoError(t, err)
	require.Zero(t, res.Code)
	var evs []string
	require.NoError(t, json.Unmarshal(res.Value, &evs))
	require.Len(t, evs, 1)

	res, err = app.Query(context.Background(), &abci.RequestQuery{Path: "/nope"})
	require.NoError(t, err)
	require.EqualValues(t, 1, res.Code)
}

func hexPub(t *testing.T, name string) string {
	t.Helper()
	pub, _ := testKey(name)
	return fmt.Sprintf("%x", pub[:])
}
