// Package partition parses the sys_partition.fex partition tables
// embedded in Allwinner firmware images: an MBR size plus an ordered
// list of partition records with sizes in 512-byte sectors.
package partition

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	ierrors "github.com/openixwty/imagewty/internal/errors"
	"github.com/openixwty/imagewty/internal/logger"
)

// Partition is one record from the [partition] sections. Missing fields
// keep their zero values.
type Partition struct {
	Name         string `json:"name"`
	Size         uint64 `json:"size"`
	DownloadFile string `json:"downloadfile"`
	UserType     uint32 `json:"user_type"`
	KeyData      bool   `json:"keydata"`
	Encrypt      bool   `json:"encrypt"`
	Verify       bool   `json:"verify"`
	RO           bool   `json:"ro"`
}

// Table is a parsed sys_partition.fex: the MBR reservation in KB plus
// the partitions in file order. The first partition starts after the
// MBR region; each subsequent one is implicitly contiguous.
type Table struct {
	MBRSizeKB  uint32      `json:"mbr_size"`
	Partitions []Partition `json:"partitions"`
}

// Parse reads a sys_partition.fex from r. Unknown keys are logged and
// skipped, matching the tolerance of the flashing tools.
func Parse(r io.Reader) (*Table, error) {
	t := &Table{}

	var inMBR, inPartitions bool
	var current Partition

	flush := func() {
		if current.Name != "" {
			t.Partitions = append(t.Partitions, current)
		}
		current = Partition{}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.Trim(scanner.Text(), " \t\r")
		if line == "" || line[0] == ';' || strings.HasPrefix(line, "//") {
			continue
		}

		switch line {
		case "[mbr]":
			inMBR, inPartitions = true, false
			continue
		case "[partition_start]":
			inMBR, inPartitions = false, true
			continue
		case "[partition]":
			inMBR = false
			flush()
			inPartitions = true
			continue
		}

		if inMBR {
			if key, value, ok := splitKeyValue(line); ok && key == "size" {
				if n, ok := parseNumber(value); ok {
					t.MBRSizeKB = uint32(n)
				}
			}
			continue
		}

		if inPartitions {
			parsePartitionLine(line, lineNo, &current)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ierrors.ErrFileReadError, err)
	}

	if inPartitions {
		flush()
	}

	return t, nil
}

// ParseBytes parses a table held in memory, typically straight out of a
// loaded image.
func ParseBytes(data []byte) (*Table, error) {
	return Parse(strings.NewReader(string(data)))
}

// ParseFile parses a sys_partition.fex from disk.
func ParseFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ierrors.ErrFileReadError, err)
	}
	defer f.Close()
	return Parse(f)
}

// PartitionByName returns the first partition with the given name.
func (t *Table) PartitionByName(name string) (Partition, bool) {
	for _, p := range t.Partitions {
		if p.Name == name {
			return p, true
		}
	}
	return Partition{}, false
}

// parsePartitionLine dispatches one key = value pair into the pending
// record. Malformed lines and unknown keys are skipped, matching the
// tolerance of the flashing tools.
func parsePartitionLine(line string, lineNo int, p *Partition) {
	key, value, ok := splitKeyValue(line)
	if !ok {
		logger.LogDebug("ignoring malformed partition line", map[string]interface{}{
			"line": lineNo,
		})
		return
	}

	switch key {
	case "name":
		p.Name = parseIdentifier(value)
	case "size":
		p.Size, _ = parseNumber(value)
	case "downloadfile":
		if strings.HasPrefix(value, "\"") {
			p.DownloadFile = parseQuotedString(value)
		} else {
			p.DownloadFile = parseIdentifier(value)
		}
	case "user_type":
		n, _ := parseNumber(value)
		p.UserType = uint32(n)
	case "keydata":
		p.KeyData = parseBool(value)
	case "encrypt":
		p.Encrypt = parseBool(value)
	case "verify":
		p.Verify = parseBool(value)
	case "ro":
		p.RO = parseBool(value)
	default:
		logger.LogDebug("ignoring unknown partition key", map[string]interface{}{
			"key":  key,
			"line": lineNo,
		})
	}
}

func splitKeyValue(line string) (key, value string, ok bool) {
	eq := strings.IndexByte(line, '=')
	if eq < 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:eq]), strings.TrimSpace(line[eq+1:]), true
}

// parseIdentifier takes the longest prefix of identifier characters;
// download file identifiers additionally permit path punctuation.
func parseIdentifier(s string) string {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isAlnum(c) || strings.IndexByte("_-./\\:#()", c) >= 0 {
			continue
		}
		return s[:i]
	}
	return s
}

func parseQuotedString(s string) string {
	var sb strings.Builder
	i := 1 // opening quote
	for i < len(s) && s[i] != '"' {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		sb.WriteByte(s[i])
		i++
	}
	return sb.String()
}

// parseNumber accepts decimal and 0x hex literals, taking the longest
// valid prefix.
func parseNumber(s string) (uint64, bool) {
	var n uint64
	i := 0
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		i = 2
		start := i
		for i < len(s) && isHexDigit(s[i]) {
			n = n*16 + uint64(hexDigit(s[i]))
			i++
		}
		return n, i > start
	}
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		n = n*10 + uint64(s[i]-'0')
		i++
	}
	return n, i > 0
}

func parseBool(s string) bool {
	n, ok := parseNumber(s)
	return ok && n != 0
}

func isAlnum(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexDigit(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
