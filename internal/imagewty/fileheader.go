package imagewty

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	ierrors "github.com/openixwty/imagewty/internal/errors"
)

// FileHeaderLength is the fixed size, in bytes, of each per-file header
// record that follows the image header.
const FileHeaderLength = 1024

const (
	fhdrMainTypeLen = 8
	fhdrSubTypeLen  = 16
	fhdrFilenameLen = 256
)

// FileHeader describes one embedded file's metadata: its name, type
// tags, and where its payload lives in the container.
type FileHeader struct {
	FilenameLen     uint32
	TotalHeaderSize uint32
	MainType        [fhdrMainTypeLen]byte
	SubType         [fhdrSubTypeLen]byte

	V1 *FileHeaderV1
	V3 *FileHeaderV3

	Reserved []byte
}

// FileHeaderV1 holds the header_version==0x0100 dialect's file fields.
type FileHeaderV1 struct {
	Unknown3       uint32
	StoredLength   uint32
	OriginalLength uint32
	Offset         uint32
	Unknown        uint32
	Filename       [fhdrFilenameLen]byte
}

// FileHeaderV3 holds the header_version==0x0300 dialect's file fields.
// The filename moves ahead of the length/offset fields relative to V1.
type FileHeaderV3 struct {
	Unknown0       uint32
	Filename       [fhdrFilenameLen]byte
	StoredLength   uint32
	Pad1           uint32
	OriginalLength uint32
	Pad2           uint32
	Offset         uint32
}

// MainTypeString returns the trimmed main type tag (e.g. "10000").
func (fh *FileHeader) MainTypeString() string {
	return trimZeroBytes(fh.MainType[:])
}

// SubTypeString returns the trimmed subtype tag (e.g. "BOOTLOADER").
func (fh *FileHeader) SubTypeString() string {
	return trimZeroBytes(fh.SubType[:])
}

// Filename returns the trimmed embedded filename, regardless of dialect.
func (fh *FileHeader) Filename() string {
	switch {
	case fh.V1 != nil:
		return trimZeroBytes(fh.V1.Filename[:])
	case fh.V3 != nil:
		return trimZeroBytes(fh.V3.Filename[:])
	default:
		return ""
	}
}

// StoredLength returns the on-disk (possibly padded) payload length.
func (fh *FileHeader) StoredLength() uint32 {
	switch {
	case fh.V1 != nil:
		return fh.V1.StoredLength
	case fh.V3 != nil:
		return fh.V3.StoredLength
	default:
		return 0
	}
}

// OriginalLength returns the true, unpadded payload length.
func (fh *FileHeader) OriginalLength() uint32 {
	switch {
	case fh.V1 != nil:
		return fh.V1.OriginalLength
	case fh.V3 != nil:
		return fh.V3.OriginalLength
	default:
		return 0
	}
}

// Offset returns the payload's byte offset from the start of the image.
func (fh *FileHeader) Offset() uint32 {
	switch {
	case fh.V1 != nil:
		return fh.V1.Offset
	case fh.V3 != nil:
		return fh.V3.Offset
	default:
		return 0
	}
}

// ParseFileHeader decodes one FileHeaderLength-byte record.
func ParseFileHeader(data []byte, dialect Dialect) (*FileHeader, error) {
	if len(data) < FileHeaderLength {
		return nil, fmt.Errorf("%w: file header needs %d bytes, got %d", ierrors.ErrTruncatedHeader, FileHeaderLength, len(data))
	}

	r := bytes.NewReader(data[:FileHeaderLength])
	fh := &FileHeader{}

	var fixed struct {
		FilenameLen     uint32
		TotalHeaderSize uint32
		MainType        [fhdrMainTypeLen]byte
		SubType         [fhdrSubTypeLen]byte
	}
	if err := binary.Read(r, binary.LittleEndian, &fixed); err != nil {
		return nil, fmt.Errorf("%w: reading fixed file header fields: %v", ierrors.ErrTruncatedHeader, err)
	}
	fh.FilenameLen = fixed.FilenameLen
	fh.TotalHeaderSize = fixed.TotalHeaderSize
	fh.MainType = fixed.MainType
	fh.SubType = fixed.SubType

	switch dialect {
	case DialectV1:
		v1 := &FileHeaderV1{}
		if err := binary.Read(r, binary.LittleEndian, v1); err != nil {
			return nil, fmt.Errorf("%w: reading v1 file fields: %v", ierrors.ErrTruncatedHeader, err)
		}
		fh.V1 = v1
	case DialectV3:
		v3 := &FileHeaderV3{}
		if err := binary.Read(r, binary.LittleEndian, v3); err != nil {
			return nil, fmt.Errorf("%w: reading v3 file fields: %v", ierrors.ErrTruncatedHeader, err)
		}
		fh.V3 = v3
	default:
		return nil, fmt.Errorf("%w: header_version 0x%x", ierrors.ErrUnknownDialect, uint32(dialect))
	}

	remaining := make([]byte, r.Len())
	if _, err := r.Read(remaining); err != nil {
		return nil, fmt.Errorf("%w: reading file header padding: %v", ierrors.ErrTruncatedHeader, err)
	}
	fh.Reserved = remaining

	return fh, nil
}

// Serialize re-encodes the file header into a fresh FileHeaderLength-byte
// buffer.
func (fh *FileHeader) Serialize() ([]byte, error) {
	buf := new(bytes.Buffer)

	fixed := struct {
		FilenameLen     uint32
		TotalHeaderSize uint32
		MainType        [fhdrMainTypeLen]byte
		SubType         [fhdrSubTypeLen]byte
	}{
		FilenameLen:     fh.FilenameLen,
		TotalHeaderSize: fh.TotalHeaderSize,
		MainType:        fh.MainType,
		SubType:         fh.SubType,
	}
	if err := binary.Write(buf, binary.LittleEndian, fixed); err != nil {
		return nil, fmt.Errorf("writing fixed file header fields: %w", err)
	}

	switch {
	case fh.V1 != nil:
		if err := binary.Write(buf, binary.LittleEndian, fh.V1); err != nil {
			return nil, fmt.Errorf("writing v1 file fields: %w", err)
		}
	case fh.V3 != nil:
		if err := binary.Write(buf, binary.LittleEndian, fh.V3); err != nil {
			return nil, fmt.Errorf("writing v3 file fields: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: file header has neither V1 nor V3 fields", ierrors.ErrUnknownDialect)
	}

	buf.Write(fh.Reserved)

	out := buf.Bytes()
	if len(out) < FileHeaderLength {
		out = append(out, make([]byte, FileHeaderLength-len(out))...)
	}
	return out[:FileHeaderLength], nil
}

// trimZeroBytes cuts the field at the first NUL and strips the ASCII
// space padding the flashing tools store after type tags.
func trimZeroBytes(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return strings.TrimRight(string(b), " \t\r\n")
}
