package jobs

import (
	"bytes"

	"github.com/go-pluto/courier/imap"
	"github.com/go-pluto/courier/session"
	"github.com/go-pluto/courier/transport"
)

// Structs

// Logout ends the session cleanly. The server answers with an
// untagged BYE, which the session logs and swallows, followed by
// the tagged OK and a close of the socket.
type Logout struct {
	completion

	c   session.Commander
	tag []byte
}

// Functions

// NewLogout creates a LOGOUT job.
func NewLogout() *Logout {
	return &Logout{completion: newCompletion()}
}

// Start writes the LOGOUT command.
func (j *Logout) Start(c session.Commander) {
	j.c = c
	j.tag = c.SendCommand([]byte("LOGOUT"), nil)
}

// HandleResponse waits for the tagged completion.
func (j *Logout) HandleResponse(resp imap.Message) {

	if !bytes.Equal(resp.Tag(), j.tag) {
		return
	}

	var err error
	if !bytes.Equal(resp.Code(), []byte("OK")) {
		err = statusErr("LOGOUT", resp)
	}

	if j.finish(err) {
		j.c.Done(err)
	}
}

// ConnectionLost completes the job. A server closing the socket
// right after its BYE is a normal end of a LOGOUT exchange.
func (j *Logout) ConnectionLost() {
	j.finish(nil)
}

// SocketError notes the failure.
func (j *Logout) SocketError(kind transport.ErrorKind) {
	j.noteErr(socketErr(kind))
}
