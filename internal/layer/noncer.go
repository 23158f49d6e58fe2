package layer

// Noncer is the transient view placed over world state during execution.
// It reads account nonces through the pending map, so when the k-th
// transaction from an account is admitted, validation sees the increment
// written by the (k-1)-th transaction in the same block.
type Noncer struct {
	layer *Layer
}

func (n *Noncer) Nonce(pub [32]byte) (uint64, error) {
	a, err := n.layer.account(pub)
	if err != nil {
		return 0, err
	}
	return a.Nonce, nil
}

// Bump advances the account's nonce in the pending map, creating the
// account lazily on its first transaction.
func (n *Noncer) Bump(pub [32]byte) error {
	a, err := n.layer.account(pub)
	if err != nil {
		return err
	}
	a.Nonce++
	n.layer.setAccount(pub, a)
	return nil
}
