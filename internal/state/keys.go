// Package state defines the typed keyspace and the versioned binary layout
// of every persisted entity. Keys are totally ordered by tag byte then by
// encoded payload, so byte comparison of encoded keys gives deterministic
// iteration order.
package state

import (
	"bytes"
	"encoding/binary"
)

type KeyTag uint8

const (
	KeyAccount          KeyTag = 0x01
	KeyCasinoSession    KeyTag = 0x02
	KeyHouse            KeyTag = 0x03
	KeyAmmPool          KeyTag = 0x04
	KeyStaker           KeyTag = 0x05
	KeyStakingGlobal    KeyTag = 0x06
	KeyBridgeWithdrawal KeyTag = 0x07
	KeyTournament       KeyTag = 0x08
	KeyLeaderboard      KeyTag = 0x09
	KeyPlayerRegistry   KeyTag = 0x0A
	KeyVault            KeyTag = 0x0B
	KeyLpPosition       KeyTag = 0x0C
)

// Key is an encoded state address: tag byte followed by the payload.
type Key []byte

func (k Key) Tag() KeyTag {
	if len(k) == 0 {
		return 0
	}
	return KeyTag(k[0])
}

func Compare(a, b Key) int {
	return bytes.Compare(a, b)
}

func pubKeyed(tag KeyTag, pub [32]byte) Key {
	k := make(Key, 1+32)
	k[0] = byte(tag)
	copy(k[1:], pub[:])
	return k
}

func idKeyed(tag KeyTag, id uint64) Key {
	k := make(Key, 1+8)
	k[0] = byte(tag)
	binary.BigEndian.PutUint64(k[1:], id)
	return k
}

func singleton(tag KeyTag) Key {
	return Key{byte(tag)}
}

func AccountKey(pub [32]byte) Key          { return pubKeyed(KeyAccount, pub) }
func SessionKey(id uint64) Key             { return idKeyed(KeyCasinoSession, id) }
func HouseKey() Key                        { return singleton(KeyHouse) }
func AmmPoolKey() Key                      { return singleton(KeyAmmPool) }
func StakerKey(pub [32]byte) Key           { return pubKeyed(KeyStaker, pub) }
func StakingGlobalKey() Key                { return singleton(KeyStakingGlobal) }
func WithdrawalKey(id uint64) Key          { return idKeyed(KeyBridgeWithdrawal, id) }
func TournamentKey(id uint64) Key          { return idKeyed(KeyTournament, id) }
func LeaderboardKey() Key                  { return singleton(KeyLeaderboard) }
func PlayerRegistryKey(pub [32]byte) Key   { return pubKeyed(KeyPlayerRegistry, pub) }
func VaultKey(pub [32]byte) Key            { return pubKeyed(KeyVault, pub) }
func LpPositionKey(pub [32]byte) Key       { return pubKeyed(KeyLpPosition, pub) }

// VaultPrefix spans every vault record; used for deterministic iteration.
func VaultPrefix() []byte { return []byte{byte(KeyVault)} }

// AccountPub recovers the public key payload of a pub-keyed key.
func (k Key) AccountPub() ([32]byte, bool) {
	var pub [32]byte
	if len(k) != 1+32 {
		return pub, false
	}
	copy(pub[:], k[1:])
	return pub, true
}
