// Package jobs provides ready-made command jobs for the session
// engine: LOGIN, SELECT/EXAMINE, LOGOUT and NOOP. Each job writes
// one command when started, walks the responses routed to it and
// signals completion through the session's Commander.
package jobs

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/go-pluto/courier/session"
	"github.com/go-pluto/courier/transport"
)

// Variables

// ErrConnectionLost is the completion error of a job whose
// connection went away before the tagged response arrived.
var ErrConnectionLost = errors.New("connection lost before the command completed")

// Structs

// completion is the bookkeeping shared by all jobs: a one-shot
// done channel plus the final error. The session touches jobs only
// from its own execution context, the lock is for external waiters.
type completion struct {
	mu       sync.Mutex
	err      error
	finished bool
	done     chan struct{}
}

// Functions

func newCompletion() completion {
	return completion{done: make(chan struct{})}
}

// finish records the final error once and releases waiters. The
// returned flag is false when the job had already finished.
func (c *completion) finish(err error) bool {

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.finished {
		return false
	}

	c.finished = true
	c.err = err
	close(c.done)
	return true
}

// noteErr records an error without finishing, for the socket error
// notification that precedes ConnectionLost.
func (c *completion) noteErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.finished && c.err == nil {
		c.err = err
	}
}

func (c *completion) pendingErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Err returns the completion error, nil while the job still runs.
func (c *completion) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.finished {
		return nil
	}
	return c.err
}

// Await blocks until the job finished or the timeout elapsed.
func (c *completion) Await(timeout time.Duration) error {

	select {
	case <-c.done:
		return c.Err()
	case <-time.After(timeout):
		return errors.Errorf("job did not complete within %s", timeout)
	}
}

// connectionLost finishes a job over the terminal failure path,
// keeping an earlier socket error as the cause when one was noted.
func (c *completion) connectionLost() {

	err := c.pendingErr()
	if err == nil {
		err = ErrConnectionLost
	}
	c.finish(err)
}

// socketErr wraps a classified transport failure.
func socketErr(kind transport.ErrorKind) error {
	return errors.Errorf("socket error: %s", kind)
}

// statusErr turns a rejecting tagged response into an error.
func statusErr(command string, resp interface{ String() string }) error {
	return errors.Errorf("%s rejected by server: %s", command, resp.String())
}

// assert that the concrete jobs satisfy the session's capability
// set.
var (
	_ session.Job = (*Login)(nil)
	_ session.Job = (*Select)(nil)
	_ session.Job = (*Logout)(nil)
	_ session.Job = (*Noop)(nil)
)
