package jobs

import (
	"bytes"

	"github.com/go-pluto/courier/imap"
	"github.com/go-pluto/courier/session"
	"github.com/go-pluto/courier/transport"
)

// Structs

// Login authenticates the session with the LOGIN command. The
// session tracks the command's tag and moves to Authenticated on
// its tagged OK; the job itself only reports completion to its
// owner.
type Login struct {
	completion

	user     string
	password string

	c   session.Commander
	tag []byte
}

// Functions

// NewLogin creates a LOGIN job for the given credentials.
func NewLogin(user string, password string) *Login {
	return &Login{
		completion: newCompletion(),
		user:       user,
		password:   password,
	}
}

// Start writes the LOGIN command. Credentials are quoted or sent
// as literals depending on their content.
func (j *Login) Start(c session.Commander) {

	j.c = c

	args := imap.AppendToken(nil, []byte(j.user))
	args = append(args, ' ')
	args = imap.AppendToken(args, []byte(j.password))

	j.tag = c.SendCommand([]byte("LOGIN"), args)
}

// HandleResponse waits for the tagged completion. Untagged chatter
// like CAPABILITY announcements is ignored.
func (j *Login) HandleResponse(resp imap.Message) {

	if !bytes.Equal(resp.Tag(), j.tag) {
		return
	}

	if bytes.Equal(resp.Code(), []byte("OK")) {
		if j.finish(nil) {
			j.c.Done(nil)
		}
		return
	}

	err := statusErr("LOGIN", resp)
	if j.finish(err) {
		j.c.Done(err)
	}
}

// ConnectionLost fails the job over the terminal path.
func (j *Login) ConnectionLost() {
	j.connectionLost()
}

// SocketError notes the failure; the following ConnectionLost
// completes the job with it.
func (j *Login) SocketError(kind transport.ErrorKind) {
	j.noteErr(socketErr(kind))
}
