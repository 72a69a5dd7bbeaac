package cipher

import (
	"bytes"
	"testing"
)

func TestRC6RoundTrip(t *testing.T) {
	keys := [][32]byte{
		HeaderKey(),
		FileHeadersKey(),
		FileContentKey(),
	}

	plaintexts := [][]byte{
		bytes.Repeat([]byte{0x00}, 16),
		bytes.Repeat([]byte{0xff}, 16),
		[]byte("IMAGEWTY0123456\x00"[:16]),
	}

	for _, key := range keys {
		ctx, err := NewRC6(key)
		if err != nil {
			t.Fatalf("NewRC6: %v", err)
		}
		for _, pt := range plaintexts {
			buf := append([]byte(nil), pt...)
			if err := ctx.Encrypt(buf); err != nil {
				t.Fatalf("Encrypt: %v", err)
			}
			if bytes.Equal(buf, pt) {
				t.Fatalf("ciphertext equals plaintext for key %x", key)
			}
			if err := ctx.Decrypt(buf); err != nil {
				t.Fatalf("Decrypt: %v", err)
			}
			if !bytes.Equal(buf, pt) {
				t.Fatalf("round trip mismatch: got %x, want %x", buf, pt)
			}
		}
	}
}

func TestRC6KeysAreIndependent(t *testing.T) {
	header, _ := NewRC6(HeaderKey())
	content, _ := NewRC6(FileContentKey())

	a := make([]byte, 16)
	b := make([]byte, 16)
	if err := header.Encrypt(a); err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if err := content.Encrypt(b); err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Fatal("distinct keys produced identical ciphertext")
	}
}

func TestRegionKeyLayout(t *testing.T) {
	tests := []struct {
		name string
		key  [32]byte
		fill byte
		tail byte
	}{
		{"header", HeaderKey(), 0x00, 'i'},
		{"file headers", FileHeadersKey(), 0x01, 'm'},
		{"file content", FileContentKey(), 0x02, 'g'},
	}
	for _, tt := range tests {
		for i := 0; i < 31; i++ {
			if tt.key[i] != tt.fill {
				t.Fatalf("%s key[%d] = 0x%02x, want 0x%02x", tt.name, i, tt.key[i], tt.fill)
			}
		}
		if tt.key[31] != tt.tail {
			t.Fatalf("%s key tail = 0x%02x, want %q", tt.name, tt.key[31], tt.tail)
		}
	}
}

func TestRC6RejectsUnalignedLength(t *testing.T) {
	ctx, err := NewRC6(HeaderKey())
	if err != nil {
		t.Fatalf("NewRC6: %v", err)
	}
	if err := ctx.Decrypt(make([]byte, 17)); err == nil {
		t.Fatal("expected error for non-block-aligned input")
	}
}

func TestTwofishRoundTrip(t *testing.T) {
	key := FibonacciKey()
	tf, err := NewTwofish(key)
	if err != nil {
		t.Fatalf("NewTwofish: %v", err)
	}

	pt := bytes.Repeat([]byte{0x42}, 32)
	buf := append([]byte(nil), pt...)
	if err := tf.Encrypt(buf); err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if bytes.Equal(buf, pt) {
		t.Fatal("ciphertext equals plaintext")
	}
	if err := tf.Decrypt(buf); err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(buf, pt) {
		t.Fatalf("round trip mismatch: got %x, want %x", buf, pt)
	}
}

func TestFibonacciKey(t *testing.T) {
	key := FibonacciKey()
	if key[0] != 5 || key[1] != 4 {
		t.Fatalf("unexpected seed bytes: %d, %d", key[0], key[1])
	}
	for i := 2; i < len(key); i++ {
		want := key[i-2] + key[i-1]
		if key[i] != want {
			t.Fatalf("key[%d] = %d, want %d", i, key[i], want)
		}
	}
}
