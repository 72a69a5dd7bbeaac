// Package cipher provides the two block ciphers the IMAGEWTY container
// format layers its encryption on: a hand-rolled RC6-32/20/32 (no
// ecosystem Go package implements RC6, see DESIGN.md) and a thin wrapper
// around golang.org/x/crypto/twofish.
package cipher

import (
	"encoding/binary"
	"fmt"

	ierrors "github.com/openixwty/imagewty/internal/errors"
)

const (
	rc6BlockSize = 16
	rc6Rounds    = 20
	rc6KeyLen    = 32

	p32 uint32 = 0xb7e15163
	q32 uint32 = 0x9e3779b9
)

// RC6 is a keyed RC6-32/20/32 block cipher context, operated in
// raw ECB mode: no IV, no padding, the caller guarantees block-aligned
// input. Allwinner firmware tooling keeps three of these alive at once,
// one per region (header, file headers, file content), each derived
// from a distinct fixed key pattern.
type RC6 struct {
	s [2*rc6Rounds + 4]uint32
}

// BlockSize is the RC6 block size in bytes.
const BlockSize = rc6BlockSize

// NewRC6 derives a round key schedule from a 32-byte (256-bit) key.
func NewRC6(key [rc6KeyLen]byte) (*RC6, error) {
	const c = rc6KeyLen / 4 // words in the key, 8
	const t = 2*rc6Rounds + 4

	l := make([]uint32, c)
	for i := 0; i < c; i++ {
		l[i] = binary.LittleEndian.Uint32(key[i*4 : i*4+4])
	}

	s := make([]uint32, t)
	s[0] = p32
	for i := 1; i < t; i++ {
		s[i] = s[i-1] + q32
	}

	v := 3 * maxInt(c, t)
	var a, b uint32
	var i, j int
	for x := 0; x < v; x++ {
		a = rotl32(s[i]+a+b, 3)
		s[i] = a
		b = rotl32(l[j]+a+b, (a+b)%32)
		l[j] = b
		i = (i + 1) % t
		j = (j + 1) % c
	}

	ctx := &RC6{}
	copy(ctx.s[:], s)
	return ctx, nil
}

// DecryptBlock decrypts exactly one 16-byte block in place.
func (ctx *RC6) DecryptBlock(block []byte) error {
	if len(block) != rc6BlockSize {
		return fmt.Errorf("%w: rc6 block must be %d bytes", ierrors.ErrBlockSize, rc6BlockSize)
	}
	a := binary.LittleEndian.Uint32(block[0:4])
	b := binary.LittleEndian.Uint32(block[4:8])
	c := binary.LittleEndian.Uint32(block[8:12])
	d := binary.LittleEndian.Uint32(block[12:16])

	s := ctx.s[:]
	c -= s[2*rc6Rounds+3]
	a -= s[2*rc6Rounds+2]
	for i := rc6Rounds; i >= 1; i-- {
		a, b, c, d = d, a, b, c
		u := rotl32(d*(2*d+1), 5)
		t := rotl32(b*(2*b+1), 5)
		c = rotr32(c-s[2*i+1], t) ^ u
		a = rotr32(a-s[2*i], u) ^ t
	}
	d -= s[1]
	b -= s[0]

	binary.LittleEndian.PutUint32(block[0:4], a)
	binary.LittleEndian.PutUint32(block[4:8], b)
	binary.LittleEndian.PutUint32(block[8:12], c)
	binary.LittleEndian.PutUint32(block[12:16], d)
	return nil
}

// EncryptBlock encrypts exactly one 16-byte block in place.
func (ctx *RC6) EncryptBlock(block []byte) error {
	if len(block) != rc6BlockSize {
		return fmt.Errorf("%w: rc6 block must be %d bytes", ierrors.ErrBlockSize, rc6BlockSize)
	}
	a := binary.LittleEndian.Uint32(block[0:4])
	b := binary.LittleEndian.Uint32(block[4:8])
	c := binary.LittleEndian.Uint32(block[8:12])
	d := binary.LittleEndian.Uint32(block[12:16])

	s := ctx.s[:]
	b += s[0]
	d += s[1]
	for i := 1; i <= rc6Rounds; i++ {
		t := rotl32(b*(2*b+1), 5)
		u := rotl32(d*(2*d+1), 5)
		a = rotl32(a^t, u) + s[2*i]
		c = rotl32(c^u, t) + s[2*i+1]
		a, b, c, d = b, c, d, a
	}
	a += s[2*rc6Rounds+2]
	c += s[2*rc6Rounds+3]

	binary.LittleEndian.PutUint32(block[0:4], a)
	binary.LittleEndian.PutUint32(block[4:8], b)
	binary.LittleEndian.PutUint32(block[8:12], c)
	binary.LittleEndian.PutUint32(block[12:16], d)
	return nil
}

// Decrypt decrypts data in place, block by block. len(data) must be a
// multiple of BlockSize.
func (ctx *RC6) Decrypt(data []byte) error {
	if len(data)%rc6BlockSize != 0 {
		return fmt.Errorf("%w: rc6 data length %d", ierrors.ErrBlockSize, len(data))
	}
	for off := 0; off < len(data); off += rc6BlockSize {
		if err := ctx.DecryptBlock(data[off : off+rc6BlockSize]); err != nil {
			return err
		}
	}
	return nil
}

// Encrypt encrypts data in place, block by block. len(data) must be a
// multiple of BlockSize.
func (ctx *RC6) Encrypt(data []byte) error {
	if len(data)%rc6BlockSize != 0 {
		return fmt.Errorf("%w: rc6 data length %d", ierrors.ErrBlockSize, len(data))
	}
	for off := 0; off < len(data); off += rc6BlockSize {
		if err := ctx.EncryptBlock(data[off : off+rc6BlockSize]); err != nil {
			return err
		}
	}
	return nil
}

func rotl32(x uint32, n uint32) uint32 {
	n &= 31
	return (x << n) | (x >> (32 - n))
}

func rotr32(x uint32, n uint32) uint32 {
	n &= 31
	return (x >> n) | (x << (32 - n))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// HeaderKey builds the fixed 32-byte key used to decrypt the image
// header: 31 bytes of 0x00 followed by the ASCII byte 'i'.
func HeaderKey() [rc6KeyLen]byte {
	return fixedKey(0x00, 'i')
}

// FileHeadersKey builds the fixed 32-byte key used to decrypt the
// per-file header table: 31 bytes of 0x01 followed by the ASCII byte 'm'.
func FileHeadersKey() [rc6KeyLen]byte {
	return fixedKey(0x01, 'm')
}

// FileContentKey builds the fixed 32-byte key used to decrypt file
// payload data: 31 bytes of 0x02 followed by the ASCII byte 'g'.
func FileContentKey() [rc6KeyLen]byte {
	return fixedKey(0x02, 'g')
}

func fixedKey(fill byte, last byte) [rc6KeyLen]byte {
	var key [rc6KeyLen]byte
	for i := range key {
		key[i] = fill
	}
	key[rc6KeyLen-1] = last
	return key
}
