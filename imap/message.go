package imap

import (
	"bytes"
	"fmt"
)

// Structs

// Part is one element of a parsed server response. It either
// carries a byte string (atom, quoted string or literal content)
// or a flat list of raw tokens taken from a parenthesized list.
// A NIL in a value position is represented as an empty list so
// it stays distinguishable from the empty string.
type Part struct {
	Text   []byte
	List   [][]byte
	IsList bool
}

// Message is a single parsed server response: an ordered content
// sequence plus the optional response code sequence found between
// the square brackets of an OK/NO/BAD/BYE line. Parts preserve
// arrival order, there is no keying.
type Message struct {
	Content      []Part
	ResponseCode []Part
}

// Functions

// NewTextPart wraps a byte string in a Part.
func NewTextPart(text []byte) Part {
	return Part{Text: text}
}

// NewListPart wraps the raw tokens of a parenthesized list in a
// Part. Passing no tokens yields the NIL representation.
func NewListPart(list [][]byte) Part {
	if list == nil {
		list = [][]byte{}
	}
	return Part{List: list, IsList: true}
}

// String renders one part the way it would appear on the wire,
// with lists re-wrapped in parentheses.
func (p Part) String() string {
	if !p.IsList {
		return string(p.Text)
	}

	var buf bytes.Buffer
	buf.WriteByte('(')
	for i, tok := range p.List {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.Write(tok)
	}
	buf.WriteByte(')')

	return buf.String()
}

// Wire renders one part in canonical client form: atoms stay
// bare, strings needing protection are quoted, and content that
// cannot live in a quoted string becomes a literal.
func (p Part) Wire() []byte {
	if p.IsList {
		out := []byte{'('}
		for i, tok := range p.List {
			if i > 0 {
				out = append(out, ' ')
			}
			out = AppendToken(out, tok)
		}
		return append(out, ')')
	}
	return AppendToken(nil, p.Text)
}

// AppendToken appends one token to dst in canonical form, choosing
// between atom, quoted string and literal representation.
func AppendToken(dst []byte, tok []byte) []byte {
	if needsLiteral(tok) {
		dst = append(dst, fmt.Sprintf("{%d}\r\n", len(tok))...)
		return append(dst, tok...)
	}

	if !needsQuoting(tok) {
		return append(dst, tok...)
	}

	dst = append(dst, '"')
	for _, b := range tok {
		if b == '"' || b == '\\' {
			dst = append(dst, '\\')
		}
		dst = append(dst, b)
	}
	return append(dst, '"')
}

// Tag returns the first content part as byte string, which is the
// tag position of a server response line. Untagged responses carry
// a '*' here, continuations a '+'.
func (m Message) Tag() []byte {
	if len(m.Content) < 1 || m.Content[0].IsList {
		return nil
	}
	return m.Content[0].Text
}

// Code returns the second content part as byte string, the status
// position carrying OK, NO, BAD, BYE or PREAUTH.
func (m Message) Code() []byte {
	if len(m.Content) < 2 || m.Content[1].IsList {
		return nil
	}
	return m.Content[1].Text
}

// StripStatus returns a copy of the message with the first n
// content parts removed. Used to reduce a greeting or BYE line to
// its human-readable remainder.
func (m Message) StripStatus(n int) Message {
	stripped := Message{ResponseCode: m.ResponseCode}
	if len(m.Content) > n {
		stripped.Content = m.Content[n:]
	}
	return stripped
}

// String renders the whole message human-readable for logging:
// content parts space-separated, followed by the response code in
// brackets. The response code is always rendered after the content
// parts; its position in the original line is not kept.
func (m Message) String() string {
	var buf bytes.Buffer

	for i, part := range m.Content {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(part.String())
	}

	if len(m.ResponseCode) > 0 {
		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteByte('[')
		for i, part := range m.ResponseCode {
			if i > 0 {
				buf.WriteByte(' ')
			}
			buf.WriteString(part.String())
		}
		buf.WriteByte(']')
	}

	return buf.String()
}

// needsQuoting reports whether a token cannot be sent as a bare
// atom and has to be wrapped in double quotes.
func needsQuoting(tok []byte) bool {
	if len(tok) == 0 {
		return true
	}
	for _, b := range tok {
		if !isAtomChar(b) {
			return true
		}
	}
	return false
}

// needsLiteral reports whether a token holds bytes that a quoted
// string cannot carry and therefore has to travel as a literal.
func needsLiteral(tok []byte) bool {
	for _, b := range tok {
		if b == '\r' || b == '\n' || b == 0 || b > 0x7e {
			return true
		}
	}
	return false
}

// isAtomChar reports whether a byte may appear in a bare atom.
func isAtomChar(b byte) bool {
	if b <= 0x20 || b > 0x7e {
		return false
	}
	switch b {
	case '(', ')', '{', '%', '*', '"', '\\', '[', ']':
		return false
	}
	return true
}
