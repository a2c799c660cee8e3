package vm

import "errors"

// Byte-splice operators. A noun can be read as a flat byte buffer and
// re-partitioned by a tree-shaped length specifier: every atom leaf of the
// shape consumes that many bytes from the running buffer, and the shape's
// cell structure is reproduced around the pieces.

var (
	ErrSpliceOverrun = errors.New("splice length exceeds buffer")
	ErrSpliceLength  = errors.New("splice length is not a usable atom")
)

// Flatten concatenates every atom of n in traversal order into one byte
// sequence.
func Flatten(n *Noun) []byte {
	return flattenInto(nil, n)
}

func flattenInto(dst []byte, n *Noun) []byte {
	if l, r, ok := n.AsCell(); ok {
		return flattenInto(flattenInto(dst, l), r)
	}
	return append(dst, n.Bytes()...)
}

// FlatLen returns the total byte length of Flatten(n) without building it.
func FlatLen(n *Noun) int {
	if l, r, ok := n.AsCell(); ok {
		return FlatLen(l) + FlatLen(r)
	}
	return n.AtomLen()
}

// Lengths mirrors the tree structure of n, replacing every atom with its
// byte length. The result is a valid shape for Split over Flatten(n).
func Lengths(n *Noun) *Noun {
	if l, r, ok := n.AsCell(); ok {
		return Cell(Lengths(l), Lengths(r))
	}
	return FromUint64(uint64(n.AtomLen()))
}

// Split partitions data by shape. An atom shape of value k takes the first
// k bytes and returns them alongside the remainder; a cell shape threads
// the remainder through its children left to right. Fails when a length
// leaf overruns the buffer or is not a usable atom.
func Split(data []byte, shape *Noun) (*Noun, []byte, error) {
	if l, r, ok := shape.AsCell(); ok {
		x, rest, err := Split(data, l)
		if err != nil {
			return nil, nil, err
		}
		y, rest, err := Split(rest, r)
		if err != nil {
			return nil, nil, err
		}
		return Cell(x, y), rest, nil
	}

	k, ok := shape.AsLength()
	if !ok {
		return nil, nil, ErrSpliceLength
	}
	if k > len(data) {
		return nil, nil, ErrSpliceOverrun
	}
	return Atom(data[:k]), data[k:], nil
}

// Cut splits an atom a by shape, returning the [shaped tail] pair.
func Cut(a *Noun, shape *Noun) (*Noun, error) {
	if a.IsCell() {
		return nil, ErrNotAnAtom
	}
	shaped, tail, err := Split(a.Bytes(), shape)
	if err != nil {
		return nil, err
	}
	return Cell(shaped, Atom(tail)), nil
}

// Splice flattens data and reshapes its bytes by shape, discarding
// whatever the shape does not consume.
func Splice(data *Noun, shape *Noun) (*Noun, error) {
	shaped, _, err := Split(Flatten(data), shape)
	if err != nil {
		return nil, err
	}
	return shaped, nil
}
