package vm

import "crypto/sha256"

// Content hashes are SHA-256 digests computed over the structure of a noun:
// an atom hashes its bytes under a leaf domain tag, a cell hashes the
// digests of its children under a pair domain tag. Two structurally equal
// nouns always produce the same digest, regardless of how their storage is
// shared.

const (
	hashTagAtom = 0x00
	hashTagCell = 0x01
)

// HashSize is the byte length of a content hash.
const HashSize = sha256.Size

// ContentHash computes the content hash of n. Shared subtrees are hashed
// once, so DAG-shaped nouns hash in time linear in their distinct nodes.
func (n *Noun) ContentHash() [HashSize]byte {
	h, _ := hashNoun(n, make(map[*Noun][HashSize]byte), nil)
	return h
}

// hashNoun computes the content hash of n, caching per distinct node. When
// incur is non-nil it is charged one unit per cache miss; its error aborts
// the hash.
func hashNoun(n *Noun, cache map[*Noun][HashSize]byte, incur func(int64) error) ([HashSize]byte, error) {
	if h, ok := cache[n]; ok {
		return h, nil
	}
	if incur != nil {
		if err := incur(1); err != nil {
			return [HashSize]byte{}, err
		}
	}

	var h [HashSize]byte
	if l, r, ok := n.AsCell(); ok {
		hl, err := hashNoun(l, cache, incur)
		if err != nil {
			return h, err
		}
		hr, err := hashNoun(r, cache, incur)
		if err != nil {
			return h, err
		}
		d := sha256.New()
		d.Write([]byte{hashTagCell})
		d.Write(hl[:])
		d.Write(hr[:])
		d.Sum(h[:0])
	} else {
		d := sha256.New()
		d.Write([]byte{hashTagAtom})
		d.Write(n.Bytes())
		d.Sum(h[:0])
	}

	cache[n] = h
	return h, nil
}
