package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/go-pluto/courier/imap"
	"github.com/go-pluto/courier/transport"
)

// Structs

type queueTestJob struct{ name string }

func (j *queueTestJob) Start(c Commander)                    {}
func (j *queueTestJob) HandleResponse(resp imap.Message)     {}
func (j *queueTestJob) ConnectionLost()                      {}
func (j *queueTestJob) SocketError(kind transport.ErrorKind) {}

// Functions

// TestQueueFIFO checks enqueue and dequeue ordering.
func TestQueueFIFO(t *testing.T) {

	q := &jobQueue{}
	assert.Equal(t, 0, q.length())
	assert.Nil(t, q.dequeue())

	a := &queueTestJob{name: "a"}
	b := &queueTestJob{name: "b"}
	c := &queueTestJob{name: "c"}

	q.enqueue(a)
	q.enqueue(b)
	q.enqueue(c)
	assert.Equal(t, 3, q.length())

	assert.Same(t, a, q.dequeue())
	assert.Same(t, b, q.dequeue())
	assert.Same(t, c, q.dequeue())
	assert.Nil(t, q.dequeue())
}

// TestQueueRemove drops a job wherever it sits.
func TestQueueRemove(t *testing.T) {

	q := &jobQueue{}

	a := &queueTestJob{name: "a"}
	b := &queueTestJob{name: "b"}
	c := &queueTestJob{name: "c"}

	q.enqueue(a)
	q.enqueue(b)
	q.enqueue(c)

	q.remove(b)
	assert.Equal(t, 2, q.length())

	// Removing an absent job is a no-op.
	q.remove(b)
	assert.Equal(t, 2, q.length())

	assert.Same(t, a, q.dequeue())
	assert.Same(t, c, q.dequeue())
}

// TestQueueDrain empties the queue preserving order.
func TestQueueDrain(t *testing.T) {

	q := &jobQueue{}

	a := &queueTestJob{name: "a"}
	b := &queueTestJob{name: "b"}

	q.enqueue(a)
	q.enqueue(b)

	drained := q.drain()
	assert.Len(t, drained, 2)
	assert.Same(t, a, drained[0])
	assert.Same(t, b, drained[1])
	assert.Equal(t, 0, q.length())
}
