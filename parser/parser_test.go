package parser_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-pluto/courier/imap"
	"github.com/go-pluto/courier/parser"
)

// Functions

// tokenize walks one framed response the way the session does and
// builds a Message from the emitted parts. The second return value
// is false when the buffered data ran out mid-response, the third
// signals a structurally inconsistent stream.
func tokenize(p *parser.Parser) (imap.Message, bool, bool) {

	var msg imap.Message
	payload := &msg.Content

loop:
	for !p.AtCommandEnd() {

		switch {

		case p.InsufficientData():
			break loop

		case p.HasString():
			str := p.ReadString()
			if !p.InsufficientData() {
				if bytes.Equal(str, []byte("NIL")) {
					*payload = append(*payload, imap.NewListPart(nil))
				} else {
					*payload = append(*payload, imap.NewTextPart(str))
				}
			}

		case p.HasList():
			list := p.ReadParenthesizedList()
			if !p.InsufficientData() {
				*payload = append(*payload, imap.NewListPart(list))
			}

		case p.HasResponseCode():
			payload = &msg.ResponseCode

		case p.AtResponseCodeEnd():
			payload = &msg.Content

		case p.HasLiteral():
			literal := []byte{}
			for !p.AtLiteralEnd() {
				part := p.ReadLiteralPart()
				if p.InsufficientData() {
					break
				}
				literal = append(literal, part...)
			}
			if !p.InsufficientData() {
				*payload = append(*payload, imap.NewTextPart(literal))
			}

		default:
			if !p.InsufficientData() {
				return msg, false, true
			}
			break loop
		}
	}

	if p.InsufficientData() {
		return msg, false, false
	}
	return msg, true, false
}

// drain collects every complete response currently buffered.
func drain(t *testing.T, p *parser.Parser) []imap.Message {

	var msgs []imap.Message

	for p.AvailableDataSize() > 0 && p.Parse() {

		p.SaveState()

		msg, ok, inconsistent := tokenize(p)
		require.False(t, inconsistent, "stream unexpectedly inconsistent")
		if !ok {
			p.RestoreState()
			return msgs
		}

		p.TrimBuffer()
		msgs = append(msgs, msg)
	}

	return msgs
}

// TestParseSimpleLine tokenizes an untagged status line.
func TestParseSimpleLine(t *testing.T) {

	p := parser.New()
	p.Feed([]byte("* OK IMAP ready\r\n"))

	msgs := drain(t, p)
	require.Len(t, msgs, 1)

	expected := imap.Message{
		Content: []imap.Part{
			imap.NewTextPart([]byte("*")),
			imap.NewTextPart([]byte("OK")),
			imap.NewTextPart([]byte("IMAP")),
			imap.NewTextPart([]byte("ready")),
		},
	}
	assert.Equal(t, expected, msgs[0])
	assert.Equal(t, 0, p.AvailableDataSize())
}

// TestParseResponseCode checks that the bracketed section lands in
// the response code sequence.
func TestParseResponseCode(t *testing.T) {

	p := parser.New()
	p.Feed([]byte("A000002 OK [READ-WRITE] SELECT completed\r\n"))

	msgs := drain(t, p)
	require.Len(t, msgs, 1)

	msg := msgs[0]
	assert.Equal(t, []byte("A000002"), msg.Tag())
	assert.Equal(t, []byte("OK"), msg.Code())
	require.Len(t, msg.ResponseCode, 1)
	assert.Equal(t, []byte("READ-WRITE"), msg.ResponseCode[0].Text)

	p.Feed([]byte("* OK [UIDVALIDITY 3857529045] UIDs valid\r\n"))
	msgs = drain(t, p)
	require.Len(t, msgs, 1)
	require.Len(t, msgs[0].ResponseCode, 2)
	assert.Equal(t, []byte("UIDVALIDITY"), msgs[0].ResponseCode[0].Text)
	assert.Equal(t, []byte("3857529045"), msgs[0].ResponseCode[1].Text)
}

// TestParseQuotedEscapes checks backslash escapes inside quoted
// strings.
func TestParseQuotedEscapes(t *testing.T) {

	p := parser.New()
	p.Feed([]byte("* LIST (\\HasNoChildren) \".\" \"fo\\\"o\\\\bar\"\r\n"))

	msgs := drain(t, p)
	require.Len(t, msgs, 1)

	content := msgs[0].Content
	require.Len(t, content, 5)
	assert.True(t, content[2].IsList)
	assert.Equal(t, []byte("."), content[3].Text)
	assert.Equal(t, []byte("fo\"o\\bar"), content[4].Text)
}

// TestParseNIL checks that a bare NIL becomes the empty list part,
// distinguishable from an empty string.
func TestParseNIL(t *testing.T) {

	p := parser.New()
	p.Feed([]byte("* FOO NIL \"\"\r\n"))

	msgs := drain(t, p)
	require.Len(t, msgs, 1)

	content := msgs[0].Content
	require.Len(t, content, 4)
	assert.True(t, content[2].IsList)
	assert.Len(t, content[2].List, 0)
	assert.False(t, content[3].IsList)
	assert.Len(t, content[3].Text, 0)
}

// TestLiteralAcrossReads replays a FETCH whose literal payload is
// split over two socket reads. The first chunk is not enough for a
// parse, the second completes a single message.
func TestLiteralAcrossReads(t *testing.T) {

	p := parser.New()

	p.Feed([]byte("* 1 FETCH (BODY[] {11}\r\nHello "))
	assert.False(t, p.Parse())

	p.Feed([]byte("world)\r\nA000003 OK\r\n"))
	msgs := drain(t, p)
	require.Len(t, msgs, 2)

	fetch := msgs[0]
	require.Len(t, fetch.Content, 4)
	require.True(t, fetch.Content[3].IsList)
	require.Len(t, fetch.Content[3].List, 2)
	assert.Equal(t, []byte("BODY[]"), fetch.Content[3].List[0])
	assert.Equal(t, []byte("Hello world"), fetch.Content[3].List[1])

	assert.Equal(t, []byte("A000003"), msgs[1].Tag())
	assert.Equal(t, []byte("OK"), msgs[1].Code())
}

// TestTopLevelLiteral checks literals outside lists, including the
// zero-length one.
func TestTopLevelLiteral(t *testing.T) {

	p := parser.New()
	p.Feed([]byte("* QUOTA {4}\r\nab\r\n more\r\n"))

	msgs := drain(t, p)
	require.Len(t, msgs, 1)

	content := msgs[0].Content
	require.Len(t, content, 4)
	assert.Equal(t, []byte("ab\r\n"), content[2].Text)
	assert.Equal(t, []byte("more"), content[3].Text)

	p.Feed([]byte("* X {0}\r\n\r\n"))
	msgs = drain(t, p)
	require.Len(t, msgs, 1)
	require.Len(t, msgs[0].Content, 3)
	assert.False(t, msgs[0].Content[2].IsList)
	assert.Len(t, msgs[0].Content[2].Text, 0)
}

// TestIncrementalEquivalence feeds the same stream once as a whole
// and once byte by byte. Both runs must yield the same message
// sequence.
func TestIncrementalEquivalence(t *testing.T) {

	stream := []byte("* OK [CAPABILITY IMAP4rev1 STARTTLS] server ready\r\n" +
		"* 1 FETCH (BODY[] {11}\r\nHello world)\r\n" +
		"* LIST (\\HasNoChildren) \".\" \"INBOX\"\r\n" +
		"* 5 EXISTS\r\n" +
		"* 2 FETCH (FLAGS (\\Seen) UID 42 ENVELOPE (NIL \"subj\"))\r\n" +
		"A000001 OK [READ-WRITE] SELECT completed\r\n" +
		"* SEARCH\r\n" +
		"A000002 NO [ALERT] try again\r\n")

	whole := parser.New()
	whole.Feed(stream)
	wholeMsgs := drain(t, whole)

	single := parser.New()
	var singleMsgs []imap.Message
	for _, b := range stream {
		single.Feed([]byte{b})
		singleMsgs = append(singleMsgs, drain(t, single)...)
	}

	require.Len(t, wholeMsgs, 8)
	assert.Equal(t, wholeMsgs, singleMsgs)
}

// TestRoundTrip re-serializes parsed parts with the canonical
// writer and parses them again. Lists of quoted strings and NILs
// as well as literals holding CRLF must survive.
func TestRoundTrip(t *testing.T) {

	lines := [][]byte{
		[]byte("* LIST (\"a b\" NIL \\Seen \"x\\\"y\") done\r\n"),
		[]byte("* X {6}\r\nab\r\ncd\r\n"),
	}

	for _, line := range lines {

		p := parser.New()
		p.Feed(line)
		first := drain(t, p)
		require.Len(t, first, 1)

		// Write the parsed parts back in canonical form.
		var out []byte
		for i, part := range first[0].Content {
			if i > 0 {
				out = append(out, ' ')
			}
			out = append(out, part.Wire()...)
		}
		out = append(out, '\r', '\n')

		q := parser.New()
		q.Feed(out)
		second := drain(t, q)
		require.Len(t, second, 1)

		assert.Equal(t, first[0].Content, second[0].Content)
	}
}

// TestInsufficientDataRollsBack checks that a partial line has no
// visible effect until completed.
func TestInsufficientDataRollsBack(t *testing.T) {

	p := parser.New()

	p.Feed([]byte("* OK wait"))
	assert.Empty(t, drain(t, p))
	assert.Equal(t, 9, p.AvailableDataSize())

	p.Feed([]byte(" for it\r\n"))
	msgs := drain(t, p)
	require.Len(t, msgs, 1)
	require.Len(t, msgs[0].Content, 5)
	assert.Equal(t, []byte("it"), msgs[0].Content[4].Text)
}

// TestInconsistentStream checks that a byte no token shape covers
// is reported as inconsistency, not as missing data.
func TestInconsistentStream(t *testing.T) {

	p := parser.New()
	p.Feed([]byte("* OK )\r\n"))

	require.True(t, p.Parse())
	p.SaveState()

	_, ok, inconsistent := tokenize(p)
	assert.False(t, ok)
	assert.True(t, inconsistent)
}
