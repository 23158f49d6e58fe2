package codec

import (
	"crypto/ed25519"
	"crypto/sha256"
)

const txSignDomainV1 = "nullchain/tx/v1"

// Transaction is the signed submission envelope.
//
// Wire layout: public(32) || nonce(u64) || len(u32) || instruction || sig(64).
type Transaction struct {
	Public      [32]byte
	Nonce       uint64
	Instruction []byte
	Sig         [64]byte
}

// MaxInstructionLength bounds the instruction body of a single transaction.
const MaxInstructionLength = 4096

func (t *Transaction) Encode() []byte {
	w := NewWriter()
	w.WriteFixed(t.Public[:])
	w.WriteU64(t.Nonce)
	w.WriteBytes32(t.Instruction)
	w.WriteFixed(t.Sig[:])
	return w.Bytes()
}

func DecodeTransaction(b []byte) (*Transaction, error) {
	r := NewReader(b)
	t := &Transaction{}
	if err := r.ReadFixed(t.Public[:]); err != nil {
		return nil, err
	}
	var err error
	if t.Nonce, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if t.Instruction, err = r.ReadBytes32(MaxInstructionLength); err != nil {
		return nil, err
	}
	if err := r.ReadFixed(t.Sig[:]); err != nil {
		return nil, err
	}
	if err := r.Close(); err != nil {
		return nil, err
	}
	return t, nil
}

// SignBytes is the domain-tagged preimage covered by the signature:
// DOMAIN || 0x00 || public || nonce(u64) || sha256(instruction).
func (t *Transaction) SignBytes() []byte {
	sum := sha256.Sum256(t.Instruction)
	w := NewWriter()
	w.WriteFixed([]byte(txSignDomainV1))
	w.WriteU8(0)
	w.WriteFixed(t.Public[:])
	w.WriteU64(t.Nonce)
	w.WriteFixed(sum[:])
	return w.Bytes()
}

func (t *Transaction) Verify() bool {
	return ed25519.Verify(ed25519.PublicKey(t.Public[:]), t.SignBytes(), t.Sig[:])
}

// Hash identifies the transaction in events and lookups.
func (t *Transaction) Hash() [32]byte {
	return sha256.Sum256(t.Encode())
}

// Sign fills Sig over the current contents.
func (t *Transaction) Sign(priv ed25519.PrivateKey) {
	sig := ed25519.Sign(priv, t.SignBytes())
	copy(t.Sig[:], sig)
}
