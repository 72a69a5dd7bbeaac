package dragonex

import (
	"strings"
	"testing"
)

const sampleConfig = `
;/**************************************************************************/
; sample image.cfg
;/**************************************************************************/
[DIR_DEF]
INPUT_DIR = "../"

[FILELIST]
{filename = "boot0.fex", maintype = "BOOT", subtype = "BOOT0_00000000"},

[IMAGE_CFG]
version = 0x100234
pid = 0x1234
filelist = FILELIST
`

func TestParseSampleConfig(t *testing.T) {
	doc, err := ParseString(sampleConfig)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}

	if len(doc.Groups) != 3 {
		t.Fatalf("len(Groups) = %d, want 3", len(doc.Groups))
	}
	for i, want := range []string{"DIR_DEF", "FILELIST", "IMAGE_CFG"} {
		if doc.Groups[i].Name != want {
			t.Fatalf("Groups[%d].Name = %q, want %q", i, doc.Groups[i].Name, want)
		}
	}

	version, ok := doc.FindVariableIn("version", "IMAGE_CFG")
	if !ok || version.Kind != KindNumber || version.Number != 0x100234 {
		t.Fatalf("version = %+v, want Number 0x100234", version)
	}
	pid, ok := doc.GetNumber("pid")
	if !ok || pid != 0x1234 {
		t.Fatalf("pid = %#x, want 0x1234", pid)
	}

	filelist, ok := doc.FindVariableIn("filelist", "IMAGE_CFG")
	if !ok || filelist.Kind != KindReference || filelist.Ref != "FILELIST" {
		t.Fatalf("filelist = %+v, want Reference FILELIST", filelist)
	}

	fg, ok := doc.FindGroup("FILELIST")
	if !ok || len(fg.Variables) != 1 {
		t.Fatalf("FILELIST group missing or wrong size")
	}
	item := fg.Variables[0]
	if item.Kind != KindList || item.Name != "" {
		t.Fatalf("list item = %+v, want anonymous list", item)
	}
	if len(item.Items) != 3 {
		t.Fatalf("len(Items) = %d, want 3", len(item.Items))
	}
	for i, want := range []struct{ name, value string }{
		{"filename", "boot0.fex"},
		{"maintype", "BOOT"},
		{"subtype", "BOOT0_00000000"},
	} {
		got := item.Items[i]
		if got.Name != want.name || got.Kind != KindString || got.Str != want.value {
			t.Fatalf("Items[%d] = %+v, want String %s=%q", i, got, want.name, want.value)
		}
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	doc, err := ParseString(sampleConfig)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}

	out := doc.Serialize()
	doc2, err := ParseString(out)
	if err != nil {
		t.Fatalf("re-parse of serialized output: %v\n%s", err, out)
	}

	if len(doc2.Groups) != len(doc.Groups) {
		t.Fatalf("group count changed: %d != %d", len(doc2.Groups), len(doc.Groups))
	}
	for i, g := range doc.Groups {
		g2 := doc2.Groups[i]
		if g2.Name != g.Name || len(g2.Variables) != len(g.Variables) {
			t.Fatalf("group %q changed across round trip", g.Name)
		}
		for j, v := range g.Variables {
			v2 := g2.Variables[j]
			if !variablesEqual(v, v2) {
				t.Fatalf("variable %q in group %q changed: %+v != %+v", v.Name, g.Name, v, v2)
			}
		}
	}
}

func variablesEqual(a, b *Variable) bool {
	if a.Name != b.Name || a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNumber:
		return a.Number == b.Number
	case KindString:
		return a.Str == b.Str
	case KindReference:
		return a.Ref == b.Ref
	case KindList:
		if len(a.Items) != len(b.Items) {
			return false
		}
		for i := range a.Items {
			if !variablesEqual(a.Items[i], b.Items[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func TestSerializeNumberBases(t *testing.T) {
	doc, err := ParseString("[IMAGE_CFG]\npid = 4660\n\n[other]\nsize = 0x100\n")
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}

	out := doc.Serialize()
	if !strings.Contains(out, "pid = 0x1234") {
		t.Fatalf("IMAGE_CFG numbers must serialize as hex:\n%s", out)
	}
	if !strings.Contains(out, "size = 256") {
		t.Fatalf("numbers outside IMAGE_CFG must serialize as decimal:\n%s", out)
	}
}

func TestConcatenationOfStrings(t *testing.T) {
	doc, err := ParseString("[g]\nx = \"a\" .. \"b\"\n")
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	x, ok := doc.GetString("x")
	if !ok || x != "ab" {
		t.Fatalf("x = %q, want %q", x, "ab")
	}
}

func TestConcatenationSubstitutesNumberAsHex(t *testing.T) {
	doc, err := ParseString("[g]\nSOMEVAR = 42\nx = SOMEVAR\n")
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	x, ok := doc.GetString("x")
	if !ok || x != "0x2a" {
		t.Fatalf("x = %q, want %q", x, "0x2a")
	}
}

func TestConcatenationSubstitutesStringVariable(t *testing.T) {
	doc, err := ParseString("[g]\ndir = \"out/\"\npath = dir .. \"boot0.fex\"\n")
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	path, ok := doc.GetString("path")
	if !ok || path != "out/boot0.fex" {
		t.Fatalf("path = %q, want %q", path, "out/boot0.fex")
	}
}

func TestIdentifierNamingExistingGroupBecomesReference(t *testing.T) {
	doc, err := ParseString("[FILELIST]\n\n[IMAGE_CFG]\nfilelist = FILELIST\n")
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	v, ok := doc.FindVariableIn("filelist", "IMAGE_CFG")
	if !ok || v.Kind != KindReference || v.Ref != "FILELIST" {
		t.Fatalf("filelist = %+v, want Reference FILELIST", v)
	}
}

func TestIdentifierWithoutGroupStaysString(t *testing.T) {
	doc, err := ParseString("[g]\nx = NOSUCHGROUP\n")
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	v, ok := doc.FindVariable("x")
	if !ok || v.Kind != KindString || v.Str != "NOSUCHGROUP" {
		t.Fatalf("x = %+v, want String NOSUCHGROUP", v)
	}
}

func TestNumberLiteralBases(t *testing.T) {
	doc, err := ParseString("[g]\ndec = 100\nhex = 0xff\noct = 0755\n")
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	tests := []struct {
		name string
		want uint32
	}{
		{"dec", 100},
		{"hex", 0xff},
		{"oct", 0o755},
	}
	for _, tt := range tests {
		if got, ok := doc.GetNumber(tt.name); !ok || got != tt.want {
			t.Fatalf("%s = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestCommentsAndBlankLines(t *testing.T) {
	doc, err := ParseString("; comment\n# also comment\n\n[g]\n  ; indented comment\nx = 1\n")
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	if _, ok := doc.GetNumber("x"); !ok {
		t.Fatal("x not parsed")
	}
}

func TestMalformedLineIsFatal(t *testing.T) {
	if _, err := ParseString("[g]\n!!! what\n"); err == nil {
		t.Fatal("expected parse error for malformed line")
	}
}

func TestVariableOutsideGroupIsIgnored(t *testing.T) {
	doc, err := ParseString("x = 1\n[g]\ny = 2\n")
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	if _, ok := doc.FindVariable("x"); ok {
		t.Fatal("variable outside any group should have been dropped")
	}
	if _, ok := doc.GetNumber("y"); !ok {
		t.Fatal("y not parsed")
	}
}

func TestUnterminatedStringConsumesToEndOfLine(t *testing.T) {
	doc, err := ParseString("[g]\nx = \"abc\n")
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	if x, ok := doc.GetString("x"); !ok || x != "abc" {
		t.Fatalf("x = %q, want %q", x, "abc")
	}
}

func TestLastWriteWinsInFlatIndex(t *testing.T) {
	doc, err := ParseString("[a]\nx = 1\n[b]\nx = 2\n")
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	if got, _ := doc.GetNumber("x"); got != 2 {
		t.Fatalf("flat lookup x = %d, want 2", got)
	}
	if v, ok := doc.FindVariableIn("x", "a"); !ok || v.Number != 1 {
		t.Fatal("scoped lookup in group a should still see 1")
	}
}

func TestEscapedQuoteInString(t *testing.T) {
	doc, err := ParseString("[g]\nx = \"a\\\"b\"\n")
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	if x, _ := doc.GetString("x"); x != `a"b` {
		t.Fatalf("x = %q, want %q", x, `a"b`)
	}
}
