// Package imagewty implements the Allwinner IMAGEWTY firmware container
// codec: detecting whether a container is RC6-encrypted, decrypting its
// header/file-header/file-content regions in place, and indexing the
// embedded files by name and subtype.
//
// The load sequence mirrors the reference OpenixIMG tooling: read the
// whole file into memory, compare the first 8 bytes against the literal
// magic to decide whether decryption is needed at all, then decrypt the
// header, the file header table, and each file's payload in three
// successive RC6 passes using three independently keyed contexts.
package imagewty

import (
	"fmt"
	"os"

	"github.com/openixwty/imagewty/internal/imagewty/cipher"

	ierrors "github.com/openixwty/imagewty/internal/errors"
	"github.com/openixwty/imagewty/internal/logger"
)

// FileEntry indexes one embedded file: its position in the file header
// table and the parsed header describing it.
type FileEntry struct {
	Index  int
	Header *FileHeader
}

// Container is a loaded, decrypted-in-memory IMAGEWTY image.
type Container struct {
	SourcePath   string
	WasEncrypted bool
	Header       *ImageHeader
	Entries      []FileEntry

	// data is the full decrypted image buffer; file payloads are
	// sliced from it rather than copied until the caller asks for a
	// copy via Data.
	data []byte

	// twofish is keyed on every load but never drives any region on
	// the unpack path; real images route everything through the three
	// RC6 contexts. Kept for a future pack path.
	twofish *cipher.Twofish
}

// LoadContainer reads path into memory, decrypts it if necessary, and
// parses its header and file table.
func LoadContainer(path string) (*Container, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ierrors.ErrFileReadError, err)
	}
	if len(raw) < HeaderLength {
		return nil, fmt.Errorf("%w: image is only %d bytes", ierrors.ErrTruncatedHeader, len(raw))
	}

	wasEncrypted := [8]byte{raw[0], raw[1], raw[2], raw[3], raw[4], raw[5], raw[6], raw[7]} != Magic

	if wasEncrypted {
		ctx, err := cipher.NewRC6(cipher.HeaderKey())
		if err != nil {
			return nil, err
		}
		if err := ctx.Decrypt(raw[:HeaderLength]); err != nil {
			return nil, fmt.Errorf("decrypting image header: %w", err)
		}
	}

	header, err := ParseImageHeader(raw[:HeaderLength])
	if err != nil {
		return nil, err
	}
	numFiles := header.NumFiles()

	fileHeadersEnd := HeaderLength + int(numFiles)*FileHeaderLength
	if fileHeadersEnd > len(raw) {
		return nil, fmt.Errorf("%w: file header table extends past end of image", ierrors.ErrTruncatedFile)
	}

	if wasEncrypted && numFiles > 0 {
		ctx, err := cipher.NewRC6(cipher.FileHeadersKey())
		if err != nil {
			return nil, err
		}
		if err := ctx.Decrypt(raw[HeaderLength:fileHeadersEnd]); err != nil {
			return nil, fmt.Errorf("decrypting file header table: %w", err)
		}
	}

	fileHeaders := make([]*FileHeader, numFiles)
	for i := 0; i < int(numFiles); i++ {
		off := HeaderLength + i*FileHeaderLength
		fh, err := ParseFileHeader(raw[off:off+FileHeaderLength], header.HeaderVersion)
		if err != nil {
			return nil, fmt.Errorf("parsing file header %d: %w", i, err)
		}
		fileHeaders[i] = fh
	}

	var contentCtx *cipher.RC6
	if wasEncrypted {
		contentCtx, err = cipher.NewRC6(cipher.FileContentKey())
		if err != nil {
			return nil, err
		}
	}

	cursor := fileHeadersEnd
	entries := make([]FileEntry, numFiles)
	for i, fh := range fileHeaders {
		stored := int(fh.StoredLength())
		if cursor+stored > len(raw) {
			return nil, fmt.Errorf("%w: %s", ierrors.ErrTruncatedFile, fh.Filename())
		}
		if wasEncrypted && stored > 0 {
			if stored%cipher.BlockSize != 0 {
				return nil, fmt.Errorf("%w: file %s stored_length %d", ierrors.ErrBlockSize, fh.Filename(), stored)
			}
			if err := contentCtx.Decrypt(raw[cursor : cursor+stored]); err != nil {
				return nil, fmt.Errorf("decrypting file %s: %w", fh.Filename(), err)
			}
		}
		entries[i] = FileEntry{Index: i, Header: fh}
		cursor += stored
	}

	// Validate the declared payload windows against the buffer and
	// against each other. The reference tool trusts the headers here;
	// a malformed image would make it read out of bounds.
	for i, e := range entries {
		off := int(e.Header.Offset())
		stored := int(e.Header.StoredLength())
		if off < fileHeadersEnd || off+stored > len(raw) || int(e.Header.OriginalLength()) > stored {
			return nil, fmt.Errorf("%w: %s payload [%d, %d)", ierrors.ErrTruncatedFile, e.Header.Filename(), off, off+stored)
		}
		for _, prev := range entries[:i] {
			pOff := int(prev.Header.Offset())
			pEnd := pOff + int(prev.Header.StoredLength())
			if off < pEnd && pOff < off+stored {
				return nil, fmt.Errorf("%w: %s overlaps %s", ierrors.ErrTruncatedFile, e.Header.Filename(), prev.Header.Filename())
			}
		}
	}

	// The reserved Twofish context is keyed on every load, matching
	// the reference tool, even though nothing on this path uses it.
	tf, err := cipher.NewTwofish(cipher.FibonacciKey())
	if err != nil {
		return nil, err
	}

	c := &Container{
		SourcePath:   path,
		WasEncrypted: wasEncrypted,
		Header:       header,
		Entries:      entries,
		data:         raw,
		twofish:      tf,
	}

	logger.LogInfo("loaded IMAGEWTY container", map[string]interface{}{
		"path":      path,
		"encrypted": wasEncrypted,
		"dialect":   header.HeaderVersion.String(),
		"num_files": numFiles,
	})

	return c, nil
}

// FileByFilename returns the first entry whose embedded filename
// matches exactly.
func (c *Container) FileByFilename(name string) (FileEntry, bool) {
	for _, e := range c.Entries {
		if e.Header.Filename() == name {
			return e, true
		}
	}
	return FileEntry{}, false
}

// FilesBySubtype returns every entry whose subtype tag matches exactly.
func (c *Container) FilesBySubtype(subtype string) []FileEntry {
	var out []FileEntry
	for _, e := range c.Entries {
		if e.Header.SubTypeString() == subtype {
			out = append(out, e)
		}
	}
	return out
}

// Data returns a fresh copy of the entry's decrypted, unpadded payload
// (OriginalLength bytes, trimming the stored_length padding).
func (c *Container) Data(f FileEntry) ([]byte, error) {
	off := int(f.Header.Offset())
	n := int(f.Header.OriginalLength())
	if off < 0 || off+n > len(c.data) {
		return nil, fmt.Errorf("%w: %s", ierrors.ErrTruncatedFile, f.Header.Filename())
	}
	out := make([]byte, n)
	copy(out, c.data[off:off+n])
	return out, nil
}

// RawHeader returns a fresh copy of the entry's raw 1024-byte header
// record as re-serialized from the parsed form.
func (c *Container) RawHeader(f FileEntry) ([]byte, error) {
	return f.Header.Serialize()
}

// DecryptToFile writes a fully decrypted copy of the container to
// outPath. It re-reads SourcePath from scratch rather than reusing the
// in-memory buffer, matching the reference tool's three-pass decrypt
// flow, so a Container that has already been mutated by a caller never
// taints the output.
func (c *Container) DecryptToFile(outPath string) error {
	fresh, err := LoadContainer(c.SourcePath)
	if err != nil {
		return fmt.Errorf("re-reading %s for decrypt: %w", c.SourcePath, err)
	}

	if err := os.WriteFile(outPath, fresh.data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", ierrors.ErrFileWriteError, err)
	}

	logger.LogInfo("wrote decrypted image", map[string]interface{}{
		"source": c.SourcePath,
		"output": outPath,
	})
	return nil
}

// Pack builds a fresh IMAGEWTY container from inputDir and writes it to
// outPath. The upstream OpenixPacker tool this is modeled on never
// implemented this path (its packImage is a literal TODO stub), so this
// mirrors that gap rather than inventing a packing algorithm nothing in
// the corpus demonstrates.
func Pack(inputDir, outPath string, encrypt bool) error {
	logger.LogWarn("pack is not implemented; nothing was written", map[string]interface{}{
		"input":  inputDir,
		"output": outPath,
	})
	return nil
}
