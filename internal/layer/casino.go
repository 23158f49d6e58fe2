package layer

import (
	"errors"

	"nullsociety/chain/internal/codec"
	"nullsociety/chain/internal/games"
	"nullsociety/chain/internal/rng"
	"nullsociety/chain/internal/state"
)

// startGame escrows the wager (bet plus side bets), deals the initial
// state blob with the session's move-0 stream, and records the session.
// All validation precedes the first pending write.
func (l *Layer) startGame(sender [32]byte, i *codec.StartGame) ([]codec.Event, error) {
	game, ok := games.Lookup(i.GameType)
	if !ok {
		return nil, sessionErr(CodeUnknownGameType, i.SessionID, "unknown game type %d", i.GameType)
	}
	if i.Bet == 0 {
		return nil, sessionErr(CodeInvalidBet, i.SessionID, "bet must be > 0")
	}
	existing, err := l.session(i.SessionID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, sessionErr(CodeSessionExists, i.SessionID, "session %d already exists", i.SessionID)
	}

	escrow := i.Bet
	for _, sb := range i.SideBets {
		escrow += sb.Amount
	}
	acct, err := l.account(sender)
	if err != nil {
		return nil, err
	}
	if acct.Chips < escrow {
		return nil, sessionErr(CodeInsufficientFunds, i.SessionID, "insufficient chips: have=%d need=%d", acct.Chips, escrow)
	}

	stream := rng.New(l.seed.Bytes, i.SessionID, 0)
	blob, err := game.Start(stream, i.Bet, i.SideBets)
	if err != nil {
		if errors.Is(err, games.ErrInvalidBet) {
			return nil, sessionErr(CodeInvalidBet, i.SessionID, "%v", err)
		}
		return nil, err
	}

	house, err := l.house()
	if err != nil {
		return nil, err
	}

	acct.Chips -= escrow
	house.EscrowedChips += escrow
	l.setAccount(sender, acct)
	l.setHouse(house)
	l.put(state.SessionKey(i.SessionID), (&state.Session{
		Owner:     sender,
		GameType:  i.GameType,
		Stage:     state.SessionInProgress,
		Wager:     escrow,
		StateBlob: blob,
	}).Encode())

	return []codec.Event{&codec.GameStarted{
		SessionID: i.SessionID,
		Owner:     sender,
		GameType:  i.GameType,
		Wager:     escrow,
	}}, nil
}

// gameMove advances a session with the stream keyed by move_count+1. On a
// terminal move the payout settles against escrow and the house, and the
// session record is deleted.
func (l *Layer) gameMove(sender [32]byte, i *codec.GameMove) ([]codec.Event, error) {
	sess, err := l.session(i.SessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, sessionErr(CodeSessionNotFound, i.SessionID, "session %d not found", i.SessionID)
	}
	if sess.Owner != sender {
		return nil, sessionErr(CodeNotOwner, i.SessionID, "caller does not own session %d", i.SessionID)
	}
	game, ok := games.Lookup(sess.GameType)
	if !ok {
		return nil, sessionErr(CodeUnknownGameType, i.SessionID, "unknown game type %d", sess.GameType)
	}

	stream := rng.New(l.seed.Bytes, i.SessionID, sess.MoveCount+1)
	blob, outcome, err := game.ApplyMove(stream, sess.StateBlob, i.Payload)
	if err != nil {
		if errors.Is(err, games.ErrInvalidMove) || errors.Is(err, games.ErrCorruptBlob) ||
			errors.Is(err, codec.ErrUnsupportedVersion) {
			return nil, sessionErr(CodeInvalidMove, i.SessionID, "%v", err)
		}
		return nil, err
	}

	sess.StateBlob = blob
	sess.MoveCount++

	if outcome == nil {
		l.put(state.SessionKey(i.SessionID), sess.Encode())
		return []codec.Event{&codec.GameMoved{
			SessionID: i.SessionID,
			MoveCount: sess.MoveCount,
		}}, nil
	}

	acct, err := l.account(sender)
	if err != nil {
		return nil, err
	}
	if outcome.ExtraWager > 0 && acct.Chips < outcome.ExtraWager {
		return nil, sessionErr(CodeInsufficientFunds, i.SessionID,
			"insufficient chips for extra wager: have=%d need=%d", acct.Chips, outcome.ExtraWager)
	}
	house, err := l.house()
	if err != nil {
		return nil, err
	}

	escrow := sess.Wager + outcome.ExtraWager
	acct.Chips -= outcome.ExtraWager
	acct.Chips += outcome.Payout
	house.EscrowedChips -= sess.Wager
	if outcome.Payout >= escrow {
		minted := outcome.Payout - escrow
		house.TotalIssuance += minted
		house.NetPnL -= int64(minted)
	} else {
		burned := escrow - outcome.Payout
		house.TotalBurned += burned
		house.NetPnL += int64(burned)
	}

	l.setAccount(sender, acct)
	l.setHouse(house)
	l.del(state.SessionKey(i.SessionID))

	return []codec.Event{&codec.GameCompleted{
		SessionID: i.SessionID,
		Owner:     sender,
		Payout:    outcome.Payout,
		Breakdown: outcome.Breakdown,
	}}, nil
}
