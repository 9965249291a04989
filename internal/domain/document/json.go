package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
)

// ErrSyntax signals a malformed JSON body.
var ErrSyntax = errors.New("invalid json")

// Parse decodes one JSON value. Object key order is preserved and the
// non-standard tokens NaN, Infinity and -Infinity are accepted, since the
// upstream API emits them for non-finite numbers.
func Parse(data []byte) (Value, error) {
	p := &parser{data: data}
	p.skipSpace()
	v, err := p.value()
	if err != nil {
		return Null(), err
	}
	p.skipSpace()
	if p.pos != len(p.data) {
		return Null(), p.errorf("trailing data")
	}
	return v, nil
}

type parser struct {
	data []byte
	pos  int
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: offset %d: %s", ErrSyntax, p.pos, fmt.Sprintf(format, args...))
}

func (p *parser) skipSpace() {
	for p.pos < len(p.data) {
		switch p.data[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) consume(lit string) bool {
	if bytes.HasPrefix(p.data[p.pos:], []byte(lit)) {
		p.pos += len(lit)
		return true
	}
	return false
}

func (p *parser) value() (Value, error) {
	if p.pos >= len(p.data) {
		return Null(), p.errorf("unexpected end of input")
	}
	switch c := p.data[p.pos]; {
	case c == '{':
		return p.object()
	case c == '[':
		return p.array()
	case c == '"':
		s, err := p.str()
		if err != nil {
			return Null(), err
		}
		return String(s), nil
	case p.consume("true"):
		return Bool(true), nil
	case p.consume("false"):
		return Bool(false), nil
	case p.consume("null"):
		return Null(), nil
	case p.consume("NaN"):
		return Number(math.NaN()), nil
	case p.consume("Infinity"):
		return Number(math.Inf(1)), nil
	case p.consume("-Infinity"):
		return Number(math.Inf(-1)), nil
	case c == '-' || (c >= '0' && c <= '9'):
		return p.number()
	default:
		return Null(), p.errorf("unexpected character %q", c)
	}
}

func (p *parser) object() (Value, error) {
	p.pos++ // {
	d := New()
	p.skipSpace()
	if p.pos < len(p.data) && p.data[p.pos] == '}' {
		p.pos++
		return Object(d), nil
	}
	for {
		p.skipSpace()
		if p.pos >= len(p.data) || p.data[p.pos] != '"' {
			return Null(), p.errorf("expected object key")
		}
		key, err := p.str()
		if err != nil {
			return Null(), err
		}
		p.skipSpace()
		if p.pos >= len(p.data) || p.data[p.pos] != ':' {
			return Null(), p.errorf("expected ':' after key %q", key)
		}
		p.pos++
		p.skipSpace()
		v, err := p.value()
		if err != nil {
			return Null(), err
		}
		d.Set(key, v)
		p.skipSpace()
		if p.pos >= len(p.data) {
			return Null(), p.errorf("unterminated object")
		}
		switch p.data[p.pos] {
		case ',':
			p.pos++
		case '}':
			p.pos++
			return Object(d), nil
		default:
			return Null(), p.errorf("expected ',' or '}'")
		}
	}
}

func (p *parser) array() (Value, error) {
	p.pos++ // [
	var out []Value
	p.skipSpace()
	if p.pos < len(p.data) && p.data[p.pos] == ']' {
		p.pos++
		return Array([]Value{}), nil
	}
	for {
		p.skipSpace()
		v, err := p.value()
		if err != nil {
			return Null(), err
		}
		out = append(out, v)
		p.skipSpace()
		if p.pos >= len(p.data) {
			return Null(), p.errorf("unterminated array")
		}
		switch p.data[p.pos] {
		case ',':
			p.pos++
		case ']':
			p.pos++
			return Array(out), nil
		default:
			return Null(), p.errorf("expected ',' or ']'")
		}
	}
}

// str scans a quoted string and lets encoding/json resolve escapes.
func (p *parser) str() (string, error) {
	start := p.pos
	p.pos++ // opening quote
	for p.pos < len(p.data) {
		switch p.data[p.pos] {
		case '\\':
			p.pos += 2
		case '"':
			p.pos++
			var s string
			if err := json.Unmarshal(p.data[start:p.pos], &s); err != nil {
				return "", fmt.Errorf("%w: offset %d: %w", ErrSyntax, start, err)
			}
			return s, nil
		default:
			p.pos++
		}
	}
	return "", p.errorf("unterminated string")
}

func (p *parser) number() (Value, error) {
	start := p.pos
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		if (c >= '0' && c <= '9') || c == '-' || c == '+' || c == '.' || c == 'e' || c == 'E' {
			p.pos++
			continue
		}
		break
	}
	f, err := strconv.ParseFloat(string(p.data[start:p.pos]), 64)
	if err != nil {
		return Null(), fmt.Errorf("%w: offset %d: bad number %q", ErrSyntax, start, p.data[start:p.pos])
	}
	return Number(f), nil
}

// Marshal encodes v as compact JSON.
func Marshal(v Value) []byte {
	var buf bytes.Buffer
	writeValue(&buf, v, "", "", 0)
	return buf.Bytes()
}

// MarshalIndent encodes v with one indent string per nesting level.
func MarshalIndent(v Value, indent string) []byte {
	var buf bytes.Buffer
	writeValue(&buf, v, "\n", indent, 0)
	return buf.Bytes()
}

// Encode writes v to w with the given indent; an empty indent means compact.
func Encode(w io.Writer, v Value, indent string) error {
	var out []byte
	if indent == "" {
		out = Marshal(v)
	} else {
		out = MarshalIndent(v, indent)
	}
	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}

func writeValue(buf *bytes.Buffer, v Value, nl, indent string, depth int) {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindNumber:
		buf.WriteString(jsonNumber(v.n))
	case KindString:
		writeString(buf, v.s)
	case KindArray:
		if len(v.arr) == 0 {
			buf.WriteString("[]")
			return
		}
		buf.WriteByte('[')
		for i, e := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			newline(buf, nl, indent, depth+1)
			writeValue(buf, e, nl, indent, depth+1)
		}
		newline(buf, nl, indent, depth)
		buf.WriteByte(']')
	case KindObject:
		if v.obj.Len() == 0 {
			buf.WriteString("{}")
			return
		}
		buf.WriteByte('{')
		for i, k := range v.obj.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			newline(buf, nl, indent, depth+1)
			writeString(buf, k)
			buf.WriteByte(':')
			if nl != "" {
				buf.WriteByte(' ')
			}
			writeValue(buf, v.obj.vals[k], nl, indent, depth+1)
		}
		newline(buf, nl, indent, depth)
		buf.WriteByte('}')
	}
}

func newline(buf *bytes.Buffer, nl, indent string, depth int) {
	if nl == "" {
		return
	}
	buf.WriteString(nl)
	for i := 0; i < depth; i++ {
		buf.WriteString(indent)
	}
}

func writeString(buf *bytes.Buffer, s string) {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s) // strings always encode
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
}

func jsonNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return FormatNumber(f)
}
