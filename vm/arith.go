package vm

import "errors"

var ErrNotAnAtom = errors.New("operation requires an atom")

// Increment adds one to an atom read as an unsigned little-endian integer.
// The result keeps the operand's byte length, widening by one byte only
// when the carry ripples off the end.
func Increment(n *Noun) (*Noun, error) {
	if n.IsCell() {
		return nil, ErrNotAnAtom
	}
	src := n.Bytes()
	out := make([]byte, len(src), len(src)+1)
	copy(out, src)

	carry := true
	for i := 0; i < len(out) && carry; i++ {
		out[i]++
		carry = out[i] == 0
	}
	if carry {
		out = append(out, 1)
	}
	return &Noun{a: out}, nil
}
