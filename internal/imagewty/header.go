package imagewty

import (
	"bytes"
	"encoding/binary"
	"fmt"

	ierrors "github.com/openixwty/imagewty/internal/errors"
)

// HeaderLength is the fixed size, in bytes, of the image header region
// at the start of every IMAGEWTY container.
const HeaderLength = 1024

// Magic is the 8-byte signature every IMAGEWTY container starts with.
var Magic = [8]byte{'I', 'M', 'A', 'G', 'E', 'W', 'T', 'Y'}

// Dialect identifies which of the two on-disk header layouts a container
// uses. Allwinner tooling keys this off header_version, never the
// adjacent version field.
type Dialect uint32

const (
	DialectV1 Dialect = 0x0100
	DialectV3 Dialect = 0x0300
)

func (d Dialect) String() string {
	switch d {
	case DialectV1:
		return "v1"
	case DialectV3:
		return "v3"
	default:
		return fmt.Sprintf("unknown(0x%x)", uint32(d))
	}
}

// ImageHeader is the parsed form of the 1024-byte header at offset 0 of
// an IMAGEWTY container. Exactly one of V1 or V3 is populated, selected
// by HeaderVersion.
type ImageHeader struct {
	HeaderVersion   Dialect
	HeaderSize      uint32
	RAMBase         uint32
	FormatVersion   uint32
	ImageSize       uint32
	ImageHeaderSize uint32

	V1 *ImageHeaderV1
	V3 *ImageHeaderV3

	// Reserved holds the remaining bytes of the fixed 1024-byte header
	// that this codec does not interpret, preserved verbatim so a
	// decrypted header can be re-serialized byte for byte.
	Reserved []byte
}

// ImageHeaderV1 holds the header_version==0x0100 dialect's version-
// specific fields.
type ImageHeaderV1 struct {
	PID         uint32
	VID         uint32
	HardwareID  uint32
	FirmwareID  uint32
	Val1        uint32
	Val1024     uint32
	NumFiles    uint32
	Val1024_2   uint32
	Val0        uint32
	Val0_2      uint32
	Val0_3      uint32
	Val0_4      uint32
}

// ImageHeaderV3 holds the header_version==0x0300 dialect's version-
// specific fields. It carries one extra leading "unknown" word relative
// to V1.
type ImageHeaderV3 struct {
	Unknown     uint32
	PID         uint32
	VID         uint32
	HardwareID  uint32
	FirmwareID  uint32
	Val1        uint32
	Val1024     uint32
	NumFiles    uint32
	Val1024_2   uint32
	Val0        uint32
	Val0_2      uint32
	Val0_3      uint32
	Val0_4      uint32
}

// NumFiles returns the embedded file count, regardless of dialect.
func (h *ImageHeader) NumFiles() uint32 {
	switch {
	case h.V1 != nil:
		return h.V1.NumFiles
	case h.V3 != nil:
		return h.V3.NumFiles
	default:
		return 0
	}
}

// PID returns the USB product id slot, regardless of dialect.
func (h *ImageHeader) PID() uint32 {
	switch {
	case h.V1 != nil:
		return h.V1.PID
	case h.V3 != nil:
		return h.V3.PID
	default:
		return 0
	}
}

// VID returns the USB vendor id slot, regardless of dialect.
func (h *ImageHeader) VID() uint32 {
	switch {
	case h.V1 != nil:
		return h.V1.VID
	case h.V3 != nil:
		return h.V3.VID
	default:
		return 0
	}
}

// HardwareID returns the hardware id slot, regardless of dialect.
func (h *ImageHeader) HardwareID() uint32 {
	switch {
	case h.V1 != nil:
		return h.V1.HardwareID
	case h.V3 != nil:
		return h.V3.HardwareID
	default:
		return 0
	}
}

// FirmwareID returns the firmware id slot, regardless of dialect.
func (h *ImageHeader) FirmwareID() uint32 {
	switch {
	case h.V1 != nil:
		return h.V1.FirmwareID
	case h.V3 != nil:
		return h.V3.FirmwareID
	default:
		return 0
	}
}

// ParseImageHeader decodes the first HeaderLength bytes of data as an
// IMAGEWTY image header. data must be at least HeaderLength bytes.
func ParseImageHeader(data []byte) (*ImageHeader, error) {
	if len(data) < HeaderLength {
		return nil, fmt.Errorf("%w: image header needs %d bytes, got %d", ierrors.ErrTruncatedHeader, HeaderLength, len(data))
	}

	var magic [8]byte
	copy(magic[:], data[:8])
	if magic != Magic {
		return nil, fmt.Errorf("%w: got %q", ierrors.ErrBadMagic, magic)
	}

	r := bytes.NewReader(data[8:HeaderLength])
	h := &ImageHeader{}

	var fixed struct {
		HeaderVersion   uint32
		HeaderSize      uint32
		RAMBase         uint32
		FormatVersion   uint32
		ImageSize       uint32
		ImageHeaderSize uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &fixed); err != nil {
		return nil, fmt.Errorf("%w: reading fixed header fields: %v", ierrors.ErrTruncatedHeader, err)
	}
	h.HeaderVersion = Dialect(fixed.HeaderVersion)
	h.HeaderSize = fixed.HeaderSize
	h.RAMBase = fixed.RAMBase
	h.FormatVersion = fixed.FormatVersion
	h.ImageSize = fixed.ImageSize
	h.ImageHeaderSize = fixed.ImageHeaderSize

	switch h.HeaderVersion {
	case DialectV1:
		v1 := &ImageHeaderV1{}
		if err := binary.Read(r, binary.LittleEndian, v1); err != nil {
			return nil, fmt.Errorf("%w: reading v1 header fields: %v", ierrors.ErrTruncatedHeader, err)
		}
		h.V1 = v1
	case DialectV3:
		v3 := &ImageHeaderV3{}
		if err := binary.Read(r, binary.LittleEndian, v3); err != nil {
			return nil, fmt.Errorf("%w: reading v3 header fields: %v", ierrors.ErrTruncatedHeader, err)
		}
		h.V3 = v3
	default:
		return nil, fmt.Errorf("%w: header_version 0x%x", ierrors.ErrUnknownDialect, fixed.HeaderVersion)
	}

	remaining := make([]byte, r.Len())
	if _, err := r.Read(remaining); err != nil {
		return nil, fmt.Errorf("%w: reading header padding: %v", ierrors.ErrTruncatedHeader, err)
	}
	h.Reserved = remaining

	return h, nil
}

// Serialize re-encodes the header into a fresh HeaderLength-byte buffer.
func (h *ImageHeader) Serialize() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(Magic[:])

	fixed := struct {
		HeaderVersion   uint32
		HeaderSize      uint32
		RAMBase         uint32
		FormatVersion   uint32
		ImageSize       uint32
		ImageHeaderSize uint32
	}{
		HeaderVersion:   uint32(h.HeaderVersion),
		HeaderSize:      h.HeaderSize,
		RAMBase:         h.RAMBase,
		FormatVersion:   h.FormatVersion,
		ImageSize:       h.ImageSize,
		ImageHeaderSize: h.ImageHeaderSize,
	}
	if err := binary.Write(buf, binary.LittleEndian, fixed); err != nil {
		return nil, fmt.Errorf("writing fixed header fields: %w", err)
	}

	switch h.HeaderVersion {
	case DialectV1:
		if h.V1 == nil {
			return nil, fmt.Errorf("%w: header_version is v1 but V1 fields are nil", ierrors.ErrUnknownDialect)
		}
		if err := binary.Write(buf, binary.LittleEndian, h.V1); err != nil {
			return nil, fmt.Errorf("writing v1 header fields: %w", err)
		}
	case DialectV3:
		if h.V3 == nil {
			return nil, fmt.Errorf("%w: header_version is v3 but V3 fields are nil", ierrors.ErrUnknownDialect)
		}
		if err := binary.Write(buf, binary.LittleEndian, h.V3); err != nil {
			return nil, fmt.Errorf("writing v3 header fields: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: header_version 0x%x", ierrors.ErrUnknownDialect, uint32(h.HeaderVersion))
	}

	buf.Write(h.Reserved)

	out := buf.Bytes()
	if len(out) < HeaderLength {
		out = append(out, make([]byte, HeaderLength-len(out))...)
	}
	return out[:HeaderLength], nil
}
