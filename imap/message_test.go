package imap_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/go-pluto/courier/imap"
)

// Functions

// TestMessageAccessors checks tag, code and status stripping.
func TestMessageAccessors(t *testing.T) {

	msg := imap.Message{
		Content: []imap.Part{
			imap.NewTextPart([]byte("*")),
			imap.NewTextPart([]byte("OK")),
			imap.NewTextPart([]byte("IMAP")),
			imap.NewTextPart([]byte("ready")),
		},
	}

	assert.Equal(t, []byte("*"), msg.Tag())
	assert.Equal(t, []byte("OK"), msg.Code())
	assert.Equal(t, "IMAP ready", msg.StripStatus(2).String())
	assert.Equal(t, "* OK IMAP ready", msg.String())
}

// TestMessageString renders lists and response codes the way they
// arrived.
func TestMessageString(t *testing.T) {

	msg := imap.Message{
		Content: []imap.Part{
			imap.NewTextPart([]byte("A000002")),
			imap.NewTextPart([]byte("OK")),
			imap.NewListPart([][]byte{[]byte("\\Seen"), []byte("\\Deleted")}),
		},
		ResponseCode: []imap.Part{
			imap.NewTextPart([]byte("UIDVALIDITY")),
			imap.NewTextPart([]byte("42")),
		},
	}

	assert.Equal(t, "A000002 OK (\\Seen \\Deleted) [UIDVALIDITY 42]", msg.String())
}

// TestPartNILStaysDistinct checks NIL is not the empty string.
func TestPartNILStaysDistinct(t *testing.T) {

	nilPart := imap.NewListPart(nil)
	emptyStr := imap.NewTextPart([]byte{})

	assert.True(t, nilPart.IsList)
	assert.False(t, emptyStr.IsList)
	assert.NotEqual(t, nilPart, emptyStr)
}

// TestAppendToken picks atom, quoted or literal form depending on
// content.
func TestAppendToken(t *testing.T) {

	assert.Equal(t, []byte("INBOX"), imap.AppendToken(nil, []byte("INBOX")))
	assert.Equal(t, []byte("\"two words\""), imap.AppendToken(nil, []byte("two words")))
	assert.Equal(t, []byte("\"a\\\"b\""), imap.AppendToken(nil, []byte("a\"b")))
	assert.Equal(t, []byte("{4}\r\na\r\nb"), imap.AppendToken(nil, []byte("a\r\nb")))
	assert.Equal(t, []byte("\"\""), imap.AppendToken(nil, nil))
}
