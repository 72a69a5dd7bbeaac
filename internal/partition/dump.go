package partition

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DumpText renders the table in the fixed-width layout the reference
// tooling prints: Name(20), Size(20), Download File(35), User Type(10,
// hex), then one-character flag codes.
func (t *Table) DumpText() string {
	var sb strings.Builder

	rule := strings.Repeat("-", 104)
	sb.WriteString("\nPartition details:\n")
	sb.WriteString(rule)
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "%-20s%-20s%-35s%-10s%s\n", "Name", "Size", "Download File", "User Type", "Flags")
	sb.WriteString(rule)
	sb.WriteString("\n")

	for _, p := range t.Partitions {
		download := p.DownloadFile
		if download == "" {
			download = "-"
		}

		var flags strings.Builder
		if p.KeyData {
			flags.WriteByte('K')
		}
		if p.Encrypt {
			flags.WriteByte('E')
		}
		if p.Verify {
			flags.WriteByte('V')
		}
		if p.RO {
			flags.WriteByte('R')
		}
		flagStr := flags.String()
		if flagStr == "" {
			flagStr = "-"
		}

		fmt.Fprintf(&sb, "%-20s%-20d%-35s%-10s%s\n",
			p.Name, p.Size, download, fmt.Sprintf("0x%04x", p.UserType), flagStr)
	}

	sb.WriteString("\nFlags: K=KeyData, E=Encrypt, V=Verify, R=Read-Only\n")
	return sb.String()
}

// DumpJSON renders the table as an indented JSON object with the
// mbr_size and partitions fields.
func (t *Table) DumpJSON() ([]byte, error) {
	out := t
	if out.Partitions == nil {
		// Keep "partitions" an array, never null, even for a table
		// with no records.
		clone := *t
		clone.Partitions = []Partition{}
		out = &clone
	}
	return json.MarshalIndent(out, "", "    ")
}
