package jobs

import (
	"bytes"

	"github.com/go-pluto/courier/imap"
	"github.com/go-pluto/courier/session"
	"github.com/go-pluto/courier/transport"
)

// Structs

// Noop pokes the server with NOOP. Useful as a keepalive and to
// pick up pending untagged status.
type Noop struct {
	completion

	c   session.Commander
	tag []byte
}

// Functions

// NewNoop creates a NOOP job.
func NewNoop() *Noop {
	return &Noop{completion: newCompletion()}
}

// Start writes the NOOP command.
func (j *Noop) Start(c session.Commander) {
	j.c = c
	j.tag = c.SendCommand([]byte("NOOP"), nil)
}

// HandleResponse waits for the tagged completion.
func (j *Noop) HandleResponse(resp imap.Message) {

	if !bytes.Equal(resp.Tag(), j.tag) {
		return
	}

	var err error
	if !bytes.Equal(resp.Code(), []byte("OK")) {
		err = statusErr("NOOP", resp)
	}

	if j.finish(err) {
		j.c.Done(err)
	}
}

// ConnectionLost fails the job over the terminal path.
func (j *Noop) ConnectionLost() {
	j.connectionLost()
}

// SocketError notes the failure; the following ConnectionLost
// completes the job with it.
func (j *Noop) SocketError(kind transport.ErrorKind) {
	j.noteErr(socketErr(kind))
}
