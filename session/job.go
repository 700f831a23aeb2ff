package session

import (
	"github.com/go-pluto/courier/imap"
	"github.com/go-pluto/courier/transport"
)

// Interfaces

// Job is one externally owned unit of protocol work. The session
// sees jobs only through this capability set: it starts the head
// of the queue once the connection is ready, feeds it every parsed
// response while it is current, and notifies it about terminal
// connection failures. A job signals its own completion through
// the Commander it was started with.
//
// Jobs remain owned by their creator. A job that is withdrawn via
// RemoveJob is never called again.
type Job interface {

	// Start is called when the job becomes current. It typically
	// writes one command through the Commander.
	Start(c Commander)

	// HandleResponse receives every response parsed off the
	// connection while the job is current.
	HandleResponse(resp imap.Message)

	// ConnectionLost tells the job the connection is gone for
	// good. It is delivered exactly once and is the last call the
	// job receives.
	ConnectionLost()

	// SocketError reports a classified transport failure. A
	// ConnectionLost follows once the teardown completes.
	SocketError(kind transport.ErrorKind)
}

// Commander is the slice of session capability handed to jobs: it
// tags and writes commands and accepts the completion signal. Both
// methods may only be called from within the job callbacks above,
// which all run in the session's execution context.
type Commander interface {

	// SendCommand composes `tag SP command [SP args]`, queues it
	// for writing and returns the generated tag.
	SendCommand(command []byte, args []byte) []byte

	// Done marks the current job as finished so the next queued
	// job can start. Only the current job may call it, and only
	// while the connection is up.
	Done(err error)
}
