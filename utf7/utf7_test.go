package utf7_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/go-pluto/courier/utf7"
)

// Structs

var codecTests = []struct {
	decoded string
	encoded string
}{
	{"INBOX", "INBOX"},
	{"Entwürfe", "Entw&APw-rfe"},
	{"Lost & Found", "Lost &- Found"},
	{"&", "&-"},
	{"日本語", "&ZeVnLIqe-"},
	{"😀", "&2D3eAA-"},
	{"", ""},
}

// Functions

// TestCodecRoundTrip executes a table test over encode and decode
// pairs.
func TestCodecRoundTrip(t *testing.T) {

	for _, tt := range codecTests {

		assert.Equal(t, tt.encoded, utf7.Encode(tt.decoded), "encoding %q", tt.decoded)

		decoded, err := utf7.Decode(tt.encoded)
		assert.Nil(t, err, "decoding %q", tt.encoded)
		assert.Equal(t, tt.decoded, decoded, "decoding %q", tt.encoded)
	}
}

// TestDecodeRejectsBrokenInput checks the malformed shapes a
// decoder has to refuse.
func TestDecodeRejectsBrokenInput(t *testing.T) {

	for _, in := range []string{
		"&",
		"&APw",
		"&ä-",
		"&2D3-",
	} {
		_, err := utf7.Decode(in)
		assert.NotNil(t, err, "input %q", in)
	}
}
