package imagewty

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/openixwty/imagewty/internal/imagewty/cipher"
)

func buildImageHeaderBytes(t *testing.T, numFiles, imageSize uint32) []byte {
	t.Helper()
	h := &ImageHeader{
		HeaderVersion:   DialectV3,
		HeaderSize:      0x50,
		RAMBase:         0x04D00000,
		FormatVersion:   0x100234,
		ImageSize:       imageSize,
		ImageHeaderSize: HeaderLength,
		V3: &ImageHeaderV3{
			PID:        0x1234,
			VID:        0x8087,
			HardwareID: 1,
			FirmwareID: 1,
			Val1:       1,
			Val1024:    1024,
			NumFiles:   numFiles,
			Val1024_2:  1024,
		},
		Reserved: make([]byte, HeaderLength-8-24-52),
	}
	data, err := h.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	return data
}

func buildFileHeaderBytes(t *testing.T, filename, maintype, subtype string, stored, original, offset uint32) []byte {
	t.Helper()
	fh := &FileHeader{
		FilenameLen:     uint32(len(filename)),
		TotalHeaderSize: FileHeaderLength,
		Reserved:        make([]byte, FileHeaderLength-32-280),
	}
	copy(fh.MainType[:], maintype)
	copy(fh.SubType[:], subtype)
	v3 := &FileHeaderV3{StoredLength: stored, OriginalLength: original, Offset: offset}
	copy(v3.Filename[:], filename)
	fh.V3 = v3
	data, err := fh.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	return data
}

// buildTestImage assembles a one-file v3 image whose payload carries the
// given bytes, 512-padded the way real images are.
func buildTestImage(t *testing.T, payload []byte) ([]byte, int) {
	t.Helper()
	stored := (len(payload) + 511) / 512 * 512
	padded := make([]byte, stored)
	copy(padded, payload)

	offset := uint32(HeaderLength + FileHeaderLength)
	imageSize := uint32(HeaderLength+FileHeaderLength) + uint32(stored)
	header := buildImageHeaderBytes(t, 1, imageSize)
	fh := buildFileHeaderBytes(t, "sys_partition.fex", "12345678", "FEX", uint32(stored), uint32(len(payload)), offset)

	image := append(append([]byte{}, header...), fh...)
	image = append(image, padded...)
	return image, len(payload)
}

func writeTempImage(t *testing.T, image []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.img")
	if err := os.WriteFile(path, image, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

// encryptTestImage applies the three RC6 passes the flashing tools use,
// turning a plaintext image into its on-disk encrypted form.
func encryptTestImage(t *testing.T, image []byte, numFiles int) []byte {
	t.Helper()
	out := append([]byte{}, image...)

	headerCtx, err := cipher.NewRC6(cipher.HeaderKey())
	if err != nil {
		t.Fatalf("NewRC6: %v", err)
	}
	if err := headerCtx.Encrypt(out[:HeaderLength]); err != nil {
		t.Fatalf("Encrypt header: %v", err)
	}

	fhCtx, err := cipher.NewRC6(cipher.FileHeadersKey())
	if err != nil {
		t.Fatalf("NewRC6: %v", err)
	}
	fhEnd := HeaderLength + numFiles*FileHeaderLength
	if err := fhCtx.Encrypt(out[HeaderLength:fhEnd]); err != nil {
		t.Fatalf("Encrypt file headers: %v", err)
	}

	contentCtx, err := cipher.NewRC6(cipher.FileContentKey())
	if err != nil {
		t.Fatalf("NewRC6: %v", err)
	}
	if err := contentCtx.Encrypt(out[fhEnd:]); err != nil {
		t.Fatalf("Encrypt content: %v", err)
	}
	return out
}

func TestParseImageHeaderRoundTrip(t *testing.T) {
	data := buildImageHeaderBytes(t, 3, HeaderLength)
	h, err := ParseImageHeader(data)
	if err != nil {
		t.Fatalf("ParseImageHeader: %v", err)
	}
	if h.HeaderVersion != DialectV3 {
		t.Fatalf("dialect = %v, want v3", h.HeaderVersion)
	}
	if h.NumFiles() != 3 {
		t.Fatalf("NumFiles = %d, want 3", h.NumFiles())
	}

	reserialized, err := h.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if !bytes.Equal(reserialized, data) {
		t.Fatal("round trip did not reproduce original bytes")
	}
}

func TestParseImageHeaderRejectsBadMagic(t *testing.T) {
	data := buildImageHeaderBytes(t, 0, HeaderLength)
	data[0] = 'X'
	if _, err := ParseImageHeader(data); err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestParseImageHeaderRejectsUnknownDialect(t *testing.T) {
	data := buildImageHeaderBytes(t, 0, HeaderLength)
	data[8] = 0xFF // clobber header_version's low byte
	if _, err := ParseImageHeader(data); err == nil {
		t.Fatal("expected error for unknown dialect")
	}
}

func TestLoadContainerUnencrypted(t *testing.T) {
	payload := []byte("hello partition table")
	image, origLen := buildTestImage(t, payload)
	path := writeTempImage(t, image)

	c, err := LoadContainer(path)
	if err != nil {
		t.Fatalf("LoadContainer: %v", err)
	}
	if c.WasEncrypted {
		t.Fatal("expected unencrypted container")
	}
	if len(c.Entries) != 1 {
		t.Fatalf("len(Entries) = %d, want 1", len(c.Entries))
	}

	entry, ok := c.FileByFilename("sys_partition.fex")
	if !ok {
		t.Fatal("FileByFilename did not find sys_partition.fex")
	}
	if got := entry.Header.MainTypeString(); got != "12345678" {
		t.Fatalf("MainTypeString = %q", got)
	}

	got, err := c.Data(entry)
	if err != nil {
		t.Fatalf("Data: %v", err)
	}
	if len(got) != origLen || !bytes.Equal(got, payload) {
		t.Fatalf("Data mismatch: got %q", got)
	}

	if entries := c.FilesBySubtype("FEX"); len(entries) != 1 {
		t.Fatalf("FilesBySubtype = %d entries, want 1", len(entries))
	}
	if _, ok := c.FileByFilename("missing.fex"); ok {
		t.Fatal("FileByFilename found a file that does not exist")
	}
}

func TestLoadContainerEncrypted(t *testing.T) {
	payload := []byte("encrypted payload bytes")
	plain, _ := buildTestImage(t, payload)
	encrypted := encryptTestImage(t, plain, 1)
	path := writeTempImage(t, encrypted)

	c, err := LoadContainer(path)
	if err != nil {
		t.Fatalf("LoadContainer: %v", err)
	}
	if !c.WasEncrypted {
		t.Fatal("expected encrypted container")
	}
	if c.Header.NumFiles() != 1 {
		t.Fatalf("NumFiles = %d, want 1", c.Header.NumFiles())
	}

	entry, ok := c.FileByFilename("sys_partition.fex")
	if !ok {
		t.Fatal("FileByFilename did not find sys_partition.fex")
	}
	got, err := c.Data(entry)
	if err != nil {
		t.Fatalf("Data: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("decrypted payload mismatch: got %q", got)
	}
}

func TestDecryptToFileMatchesPlaintext(t *testing.T) {
	payload := []byte("decrypt to file")
	plain, _ := buildTestImage(t, payload)
	encrypted := encryptTestImage(t, plain, 1)
	path := writeTempImage(t, encrypted)

	c, err := LoadContainer(path)
	if err != nil {
		t.Fatalf("LoadContainer: %v", err)
	}

	outPath := filepath.Join(t.TempDir(), "decrypted.img")
	if err := c.DecryptToFile(outPath); err != nil {
		t.Fatalf("DecryptToFile: %v", err)
	}

	got, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatal("decrypted file does not match the plaintext image")
	}
}

func TestEncryptDecryptImageRoundTrip(t *testing.T) {
	payload := []byte("round trip bytes")
	plain, _ := buildTestImage(t, payload)
	encrypted := encryptTestImage(t, plain, 1)

	// Re-applying the three decrypt passes must reproduce the
	// plaintext exactly.
	again := append([]byte{}, encrypted...)
	headerCtx, _ := cipher.NewRC6(cipher.HeaderKey())
	fhCtx, _ := cipher.NewRC6(cipher.FileHeadersKey())
	contentCtx, _ := cipher.NewRC6(cipher.FileContentKey())
	if err := headerCtx.Decrypt(again[:HeaderLength]); err != nil {
		t.Fatalf("Decrypt header: %v", err)
	}
	if err := fhCtx.Decrypt(again[HeaderLength : HeaderLength+FileHeaderLength]); err != nil {
		t.Fatalf("Decrypt file headers: %v", err)
	}
	if err := contentCtx.Decrypt(again[HeaderLength+FileHeaderLength:]); err != nil {
		t.Fatalf("Decrypt content: %v", err)
	}
	if !bytes.Equal(again, plain) {
		t.Fatal("encrypt-then-decrypt did not reproduce the original image")
	}
}

func TestLoadContainerRejectsOverlappingPayloads(t *testing.T) {
	stored := uint32(512)
	offset := uint32(HeaderLength + 2*FileHeaderLength)
	imageSize := offset + 2*stored
	header := buildImageHeaderBytes(t, 2, imageSize)
	fhA := buildFileHeaderBytes(t, "a.fex", "BOOT", "A", stored, 100, offset)
	// Second header claims the same window as the first.
	fhB := buildFileHeaderBytes(t, "b.fex", "BOOT", "B", stored, 100, offset)

	image := append(append([]byte{}, header...), fhA...)
	image = append(image, fhB...)
	image = append(image, make([]byte, 2*int(stored))...)
	path := writeTempImage(t, image)

	if _, err := LoadContainer(path); err == nil {
		t.Fatal("expected error for overlapping payloads")
	}
}

func TestLoadContainerRejectsTruncatedImage(t *testing.T) {
	payload := []byte("truncated")
	image, _ := buildTestImage(t, payload)
	path := writeTempImage(t, image[:len(image)-256])

	if _, err := LoadContainer(path); err == nil {
		t.Fatal("expected error for truncated image")
	}
}
