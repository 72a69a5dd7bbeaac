package cipher

import (
	"fmt"

	"golang.org/x/crypto/twofish"

	ierrors "github.com/openixwty/imagewty/internal/errors"
)

const TwofishBlockSize = twofish.BlockSize

// Twofish wraps golang.org/x/crypto/twofish for raw ECB operation,
// mirroring the shape of RC6 in rc6.go so callers can treat both ciphers
// uniformly. The container codec keys this context on load but, per the
// original tooling, never calls Decrypt/Encrypt on it: every file in a
// real image is handled by RC6 file-content decryption, leaving this
// path dead in practice.
type Twofish struct {
	block *twofish.Cipher
}

// NewTwofish derives a Twofish-256 context from a 32-byte key.
func NewTwofish(key [32]byte) (*Twofish, error) {
	block, err := twofish.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ierrors.ErrCipherKeySize, err)
	}
	return &Twofish{block: block}, nil
}

// FibonacciKey reproduces the key schedule the original tooling derives
// for the (unused) Twofish context: key[0]=5, key[1]=4, and every
// subsequent byte is the mod-256 sum of the two preceding bytes.
func FibonacciKey() [32]byte {
	var key [32]byte
	key[0] = 5
	key[1] = 4
	for i := 2; i < len(key); i++ {
		key[i] = key[i-2] + key[i-1]
	}
	return key
}

// Decrypt decrypts data in place, block by block, in ECB mode.
func (t *Twofish) Decrypt(data []byte) error {
	if len(data)%TwofishBlockSize != 0 {
		return fmt.Errorf("%w: twofish data length %d", ierrors.ErrBlockSize, len(data))
	}
	for off := 0; off < len(data); off += TwofishBlockSize {
		block := data[off : off+TwofishBlockSize]
		t.block.Decrypt(block, block)
	}
	return nil
}

// Encrypt encrypts data in place, block by block, in ECB mode.
func (t *Twofish) Encrypt(data []byte) error {
	if len(data)%TwofishBlockSize != 0 {
		return fmt.Errorf("%w: twofish data length %d", ierrors.ErrBlockSize, len(data))
	}
	for off := 0; off < len(data); off += TwofishBlockSize {
		block := data[off : off+TwofishBlockSize]
		t.block.Encrypt(block, block)
	}
	return nil
}
