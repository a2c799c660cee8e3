package vm

import (
	"crypto/sha256"

	"golang.org/x/crypto/chacha20"
)

// Opcode 15 draws bytes from an injected io.Reader. The default is
// crypto/rand.Reader; SeededEntropy gives a deterministic stream for tests
// and reproducible runs.

// SeededReader produces the ChaCha20 keystream for a fixed seed. Reads
// never fail and never repeat until the stream is exhausted.
type SeededReader struct {
	cipher *chacha20.Cipher
}

// SeededEntropy returns a reader keyed by a digest of seed. The same seed
// always yields the same byte stream.
func SeededEntropy(seed []byte) *SeededReader {
	key := sha256.Sum256(seed)
	cipher, err := chacha20.NewUnauthenticatedCipher(key[:], make([]byte, chacha20.NonceSize))
	if err != nil {
		// key and nonce sizes are fixed above
		panic(err)
	}
	return &SeededReader{cipher: cipher}
}

func (e *SeededReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	e.cipher.XORKeyStream(p, p)
	return len(p), nil
}
