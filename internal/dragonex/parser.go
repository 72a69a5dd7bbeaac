package dragonex

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	ierrors "github.com/openixwty/imagewty/internal/errors"
	"github.com/openixwty/imagewty/internal/logger"
)

// Parse reads DragonEx text from r into a document. Parsing is
// line-oriented, single pass, with a current-group cursor that every
// key-value and list line attaches to.
func Parse(r io.Reader) (*Document, error) {
	doc := NewDocument()
	var current *Group

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSuffix(scanner.Text(), "\r")

		cur := newCursor(line)
		cur.skipWhitespace()
		if cur.empty() {
			continue
		}

		switch c := cur.peek(); {
		case c == ';' || c == '#':
			continue

		case c == '[':
			g, err := parseGroupHeader(cur)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ierrors.ErrSyntax, lineNo, err)
			}
			doc.AddGroup(g)
			current = g

		case c == '{':
			if current == nil {
				logger.LogWarn("list item outside any group, ignoring", map[string]interface{}{
					"line": lineNo,
				})
				continue
			}
			item := doc.parseListBody(cur, "")
			current.AddVariable(item)

		case isIdentStart(c) || isDigit(c):
			if current == nil {
				logger.LogWarn("variable outside any group, ignoring", map[string]interface{}{
					"line": lineNo,
				})
				continue
			}
			v := doc.parseKeyValue(cur)
			if v == nil {
				return nil, fmt.Errorf("%w: line %d: malformed key-value pair", ierrors.ErrSyntax, lineNo)
			}
			current.AddVariable(v)
			doc.indexVariable(v)

		default:
			return nil, fmt.Errorf("%w: line %d: unexpected character %q", ierrors.ErrSyntax, lineNo, c)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ierrors.ErrFileReadError, err)
	}

	return doc, nil
}

// ParseString parses DragonEx text held in memory.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// ParseFile parses a DragonEx config file from disk.
func ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ierrors.ErrFileReadError, err)
	}
	defer f.Close()
	return Parse(f)
}

// parseGroupHeader consumes "[ name ]" and returns a fresh group.
func parseGroupHeader(cur *cursor) (*Group, error) {
	cur.advance(1) // '['
	end := strings.IndexByte(cur.rest(), ']')
	if end < 0 {
		return nil, fmt.Errorf("missing ']' in group header")
	}
	name := strings.TrimSpace(cur.rest()[:end])
	if name == "" {
		return nil, fmt.Errorf("empty group name")
	}
	cur.advance(end + 1)
	return &Group{Name: name}, nil
}

// parseKeyValue consumes "name = expr" (or "name{ ... }" for a named
// list) and returns the resulting variable, or nil when the line is not
// a well-formed pair.
func (d *Document) parseKeyValue(cur *cursor) *Variable {
	cur.skipWhitespace()
	name := cur.parseIdentifier()
	if name == "" {
		return nil
	}

	cur.skipWhitespace()
	if !cur.empty() && cur.peek() == '{' {
		return d.parseListBody(cur, name)
	}
	if cur.empty() || cur.peek() != '=' {
		return nil
	}
	cur.advance(1)

	cur.skipWhitespace()
	if !cur.empty() && cur.peek() == '{' {
		return d.parseListBody(cur, name)
	}

	expr := d.parseExpression(cur)
	expr.Name = name
	return expr
}

// parseListBody consumes "{ kv, kv, ... }" and returns a list variable
// with the given name (empty for an anonymous top-level list item).
func (d *Document) parseListBody(cur *cursor, name string) *Variable {
	item := &Variable{Name: name, Kind: KindList}

	cur.advance(1) // '{'
	for {
		cur.skipWhitespace()
		if cur.empty() {
			return item
		}
		if cur.peek() == '}' {
			cur.advance(1)
			return item
		}

		if sub := d.parseKeyValue(cur); sub != nil {
			item.Items = append(item.Items, sub)
		}

		cur.skipWhitespace()
		if !cur.empty() && cur.peek() == ',' {
			cur.advance(1)
			continue
		}
		if !cur.empty() && cur.peek() == '}' {
			cur.advance(1)
		}
		return item
	}
}

// parseExpression evaluates the right-hand side of a key-value pair:
// either a leading numeric literal, or a ".."-concatenated sequence of
// string and identifier atoms. Identifier atoms are substituted from
// the flat variable index (Numbers render as 0x%x); a concatenated
// result that names an existing group becomes a Reference.
func (d *Document) parseExpression(cur *cursor) *Variable {
	cur.skipWhitespace()
	if cur.empty() {
		return &Variable{Kind: KindString}
	}

	if c := cur.peek(); isDigit(c) || c == '-' {
		if n, ok := cur.parseNumber(); ok {
			return &Variable{Kind: KindNumber, Number: n}
		}
	}

	var result strings.Builder
	isString := false
	for {
		cur.skipWhitespace()
		if cur.empty() {
			break
		}

		switch c := cur.peek(); {
		case c == '"' || c == '\'':
			result.WriteString(cur.parseQuotedString())
			isString = true
		case isIdentStart(c):
			ident := cur.parseIdentifier()
			if v, ok := d.FindVariable(ident); ok && v.Kind == KindString {
				result.WriteString(v.Str)
			} else if ok && v.Kind == KindNumber {
				fmt.Fprintf(&result, "0x%x", v.Number)
			} else {
				result.WriteString(ident)
			}
			isString = true
		default:
			goto done
		}

		cur.skipWhitespace()
		if strings.HasPrefix(cur.rest(), "..") {
			cur.advance(2)
			continue
		}
		break
	}

done:
	s := result.String()
	if isString && s != "" && !strings.Contains(s, "\"") {
		if _, ok := d.FindGroup(s); ok {
			return &Variable{Kind: KindReference, Ref: s}
		}
	}
	if isString {
		return &Variable{Kind: KindString, Str: s}
	}
	return &Variable{Kind: KindNumber}
}

// cursor walks one line of input.
type cursor struct {
	s   string
	pos int
}

func newCursor(s string) *cursor {
	return &cursor{s: s}
}

func (c *cursor) empty() bool {
	return c.pos >= len(c.s)
}

func (c *cursor) peek() byte {
	return c.s[c.pos]
}

func (c *cursor) rest() string {
	return c.s[c.pos:]
}

func (c *cursor) advance(n int) {
	c.pos += n
	if c.pos > len(c.s) {
		c.pos = len(c.s)
	}
}

func (c *cursor) skipWhitespace() {
	for !c.empty() && (c.peek() == ' ' || c.peek() == '\t') {
		c.advance(1)
	}
}

// parseIdentifier consumes [A-Za-z_.][A-Za-z0-9_.]*. A '.' is accepted
// inside identifiers for path-like names, but ".." always terminates
// the identifier so the concatenation operator survives lexing.
func (c *cursor) parseIdentifier() string {
	start := c.pos
	for !c.empty() {
		ch := c.peek()
		if ch == '.' {
			if c.pos+1 < len(c.s) && c.s[c.pos+1] == '.' {
				break
			}
			c.advance(1)
			continue
		}
		if isAlnum(ch) || ch == '_' {
			c.advance(1)
			continue
		}
		break
	}
	return c.s[start:c.pos]
}

// parseQuotedString consumes a double- or single-quoted string where a
// backslash escapes exactly the next character. An unterminated string
// consumes to end of line and yields what was accumulated.
func (c *cursor) parseQuotedString() string {
	delim := c.peek()
	c.advance(1)

	var sb strings.Builder
	for !c.empty() && c.peek() != delim {
		if c.peek() == '\\' && c.pos+1 < len(c.s) {
			c.advance(1)
		}
		sb.WriteByte(c.peek())
		c.advance(1)
	}
	if !c.empty() {
		c.advance(1) // closing delimiter
	}
	return sb.String()
}

// parseNumber consumes the longest numeric prefix, accepting C-style
// decimal, 0x hex, and 0-prefixed octal, and returns it as a u32.
func (c *cursor) parseNumber() (uint32, bool) {
	start := c.pos
	if !c.empty() && c.peek() == '-' {
		c.advance(1)
	}
	if !c.empty() && c.peek() == '0' && c.pos+1 < len(c.s) && (c.s[c.pos+1] == 'x' || c.s[c.pos+1] == 'X') {
		c.advance(2)
		for !c.empty() && isHexDigit(c.peek()) {
			c.advance(1)
		}
	} else {
		for !c.empty() && isDigit(c.peek()) {
			c.advance(1)
		}
	}

	token := c.s[start:c.pos]
	if token == "" || token == "-" {
		c.pos = start
		return 0, false
	}

	n, err := strconv.ParseInt(token, 0, 64)
	if err != nil {
		c.pos = start
		return 0, false
	}
	return uint32(n), true
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isAlnum(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' || c == '.'
}
