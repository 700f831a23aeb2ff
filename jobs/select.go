package jobs

import (
	"bytes"
	"strconv"

	"github.com/go-pluto/courier/imap"
	"github.com/go-pluto/courier/session"
	"github.com/go-pluto/courier/transport"
	"github.com/go-pluto/courier/utf7"
)

// Structs

// Select opens a mailbox with SELECT, or EXAMINE when read-only
// access is requested, and collects the untagged status the server
// announces along the way.
type Select struct {
	completion

	mailbox  string
	readOnly bool

	c   session.Commander
	tag []byte

	// Mailbox status filled in from the server's untagged
	// responses and response codes.
	Exists      int
	Recent      int
	Unseen      int
	UIDValidity int
	UIDNext     int
	Flags       []string
	ReadWrite   bool
}

// Functions

// NewSelect creates a job opening the named mailbox. The name is
// UTF-8; its modified UTF-7 wire form is composed on start.
func NewSelect(mailbox string, readOnly bool) *Select {
	return &Select{
		completion: newCompletion(),
		mailbox:    mailbox,
		readOnly:   readOnly,
	}
}

// Start writes the SELECT or EXAMINE command with the encoded,
// quoted mailbox name.
func (j *Select) Start(c session.Commander) {

	j.c = c

	command := []byte("SELECT")
	if j.readOnly {
		command = []byte("EXAMINE")
	}

	args := []byte{'"'}
	args = append(args, utf7.Encode(j.mailbox)...)
	args = append(args, '"')

	j.tag = c.SendCommand(command, args)
}

// HandleResponse collects untagged mailbox status until the tagged
// completion arrives.
func (j *Select) HandleResponse(resp imap.Message) {

	if !bytes.Equal(resp.Tag(), j.tag) {
		j.collectStatus(resp)
		return
	}

	if bytes.Equal(resp.Code(), []byte("OK")) {

		if len(resp.ResponseCode) > 0 && !resp.ResponseCode[0].IsList &&
			bytes.Equal(resp.ResponseCode[0].Text, []byte("READ-WRITE")) {
			j.ReadWrite = true
		}

		if j.finish(nil) {
			j.c.Done(nil)
		}
		return
	}

	err := statusErr("SELECT", resp)
	if j.finish(err) {
		j.c.Done(err)
	}
}

// collectStatus interprets one untagged response of the SELECT
// answer.
func (j *Select) collectStatus(resp imap.Message) {

	content := resp.Content

	// Numeric status lines arrive as `* <n> EXISTS`.
	if len(content) >= 3 && !content[1].IsList && !content[2].IsList {

		if n, err := strconv.Atoi(string(content[1].Text)); err == nil {

			switch string(content[2].Text) {
			case "EXISTS":
				j.Exists = n
			case "RECENT":
				j.Recent = n
			}
		}
	}

	// `* FLAGS (...)` carries the flag list.
	if len(content) >= 3 && bytes.Equal(content[1].Text, []byte("FLAGS")) && content[2].IsList {

		j.Flags = j.Flags[:0]
		for _, flag := range content[2].List {
			j.Flags = append(j.Flags, string(flag))
		}
	}

	// Bracketed codes like [UIDVALIDITY 3857529045] on untagged OK
	// lines.
	code := resp.ResponseCode
	if len(code) >= 2 && !code[0].IsList && !code[1].IsList {

		if n, err := strconv.Atoi(string(code[1].Text)); err == nil {

			switch string(code[0].Text) {
			case "UIDVALIDITY":
				j.UIDValidity = n
			case "UIDNEXT":
				j.UIDNext = n
			case "UNSEEN":
				j.Unseen = n
			}
		}
	}
}

// Mailbox returns the UTF-8 name this job opens.
func (j *Select) Mailbox() string {
	return j.mailbox
}

// ConnectionLost fails the job over the terminal path.
func (j *Select) ConnectionLost() {
	j.connectionLost()
}

// SocketError notes the failure; the following ConnectionLost
// completes the job with it.
func (j *Select) SocketError(kind transport.ErrorKind) {
	j.noteErr(socketErr(kind))
}
