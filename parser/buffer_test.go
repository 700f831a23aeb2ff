package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Functions

// TestBufferCursor checks append, peek and cursor movement.
func TestBufferCursor(t *testing.T) {

	b := &Buffer{}
	b.Append([]byte("hello"))
	b.Append([]byte(" world"))

	assert.Equal(t, 11, b.Available())

	c, ok := b.Peek(0)
	assert.True(t, ok)
	assert.Equal(t, byte('h'), c)

	c, ok = b.Peek(10)
	assert.True(t, ok)
	assert.Equal(t, byte('d'), c)

	_, ok = b.Peek(11)
	assert.False(t, ok)

	assert.Equal(t, []byte("hello"), b.Next(5))
	assert.Equal(t, 6, b.Available())

	b.Advance(1)
	assert.Equal(t, []byte("world"), b.Bytes())
}

// TestBufferSaveRestore checks that a rolled back read leaves no
// visible effect.
func TestBufferSaveRestore(t *testing.T) {

	b := &Buffer{}
	b.Append([]byte("abcdef"))

	b.Save()
	b.Advance(4)
	assert.Equal(t, 2, b.Available())

	b.Restore()
	assert.Equal(t, 6, b.Available())
	assert.Equal(t, []byte("abcdef"), b.Bytes())
}

// TestBufferTrim checks that consumed bytes are discarded and the
// cursor keeps its logical position.
func TestBufferTrim(t *testing.T) {

	b := &Buffer{}
	b.Append([]byte("abcdef"))
	b.Advance(4)

	b.Trim()
	assert.Equal(t, 2, b.Available())
	assert.Equal(t, []byte("ef"), b.Bytes())

	b.Append([]byte("gh"))
	assert.Equal(t, []byte("efgh"), b.Bytes())
}
