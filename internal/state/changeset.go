package state

// Op distinguishes the two pending-write statuses.
type Op uint8

const (
	OpPut Op = iota
	OpDelete
)

type Change struct {
	Key   Key
	Op    Op
	Value []byte
}

// Changeset is an ordered batch of writes, drained from a layer's pending
// map in key order and applied to a store in a single logical step.
type Changeset []Change

// Encode flattens the changeset for hashing and byte-equality checks.
func (cs Changeset) Encode() []byte {
	var out []byte
	for _, c := range cs {
		out = append(out, byte(c.Op))
		out = append(out, uint8(len(c.Key)))
		out = append(out, c.Key...)
		out = append(out,
			byte(len(c.Value)>>24), byte(len(c.Value)>>16),
			byte(len(c.Value)>>8), byte(len(c.Value)))
		out = append(out, c.Value...)
	}
	return out
}
