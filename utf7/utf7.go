// Package utf7 implements the modified UTF-7 encoding that IMAP
// mailbox names travel in (RFC 3501 section 5.1.3): '&' shifts
// into a base64 section using ',' instead of '/', a literal
// ampersand is written as "&-".
package utf7

import (
	"encoding/base64"
	"strings"
	"unicode/utf16"

	"github.com/pkg/errors"
)

// Variables

// mailboxBase64 is the modified base64 alphabet mailbox names use.
var mailboxBase64 = base64.NewEncoding("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+,").WithPadding(base64.NoPadding)

// Functions

// Encode turns a UTF-8 mailbox name into its modified UTF-7 wire
// form.
func Encode(name string) string {

	var out strings.Builder
	out.Grow(len(name))

	var shifted []byte

	// Close a pending base64 section.
	flush := func() {
		if len(shifted) == 0 {
			return
		}
		out.WriteByte('&')
		out.WriteString(mailboxBase64.EncodeToString(shifted))
		out.WriteByte('-')
		shifted = shifted[:0]
	}

	for _, r := range name {

		if r >= 0x20 && r <= 0x7e {
			flush()
			if r == '&' {
				out.WriteString("&-")
			} else {
				out.WriteRune(r)
			}
			continue
		}

		// Everything else is collected as UTF-16BE and emitted
		// base64-encoded at the next shift back.
		if r >= 0x10000 {
			r1, r2 := utf16.EncodeRune(r)
			shifted = append(shifted, byte(r1>>8), byte(r1))
			shifted = append(shifted, byte(r2>>8), byte(r2))
		} else {
			shifted = append(shifted, byte(r>>8), byte(r))
		}
	}
	flush()

	return out.String()
}

// Decode turns a modified UTF-7 mailbox name back into UTF-8.
func Decode(name string) (string, error) {

	var out strings.Builder
	out.Grow(len(name))

	i := 0
	for i < len(name) {

		if name[i] != '&' {
			out.WriteByte(name[i])
			i++
			continue
		}

		i++
		if i >= len(name) {
			return "", errors.New("mailbox name ends after shift character")
		}

		// "&-" is the escaped ampersand.
		if name[i] == '-' {
			out.WriteByte('&')
			i++
			continue
		}

		end := strings.IndexByte(name[i:], '-')
		if end < 0 {
			return "", errors.New("unterminated base64 section in mailbox name")
		}

		raw, err := mailboxBase64.DecodeString(name[i : i+end])
		if err != nil {
			return "", errors.Wrap(err, "invalid base64 section in mailbox name")
		}
		i += end + 1

		if len(raw)%2 != 0 {
			return "", errors.New("odd number of UTF-16 bytes in mailbox name")
		}

		for j := 0; j < len(raw); j += 2 {

			code := rune(uint16(raw[j])<<8 | uint16(raw[j+1]))

			if !utf16.IsSurrogate(code) {
				out.WriteRune(code)
				continue
			}

			if j+3 >= len(raw) {
				return "", errors.New("incomplete surrogate pair in mailbox name")
			}
			j += 2
			second := rune(uint16(raw[j])<<8 | uint16(raw[j+1]))

			combined := utf16.DecodeRune(code, second)
			if combined == 0xFFFD {
				return "", errors.New("invalid surrogate pair in mailbox name")
			}
			out.WriteRune(combined)
		}
	}

	return out.String(), nil
}
