package notify

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn delivers buffered messages to a handler while draining
type fakeConn struct {
	pending []Message
	deliver func(Message) error
	errs    []error
	onClose nats.ConnHandler
	hang    bool
	drain   error
}

func (f *fakeConn) SetClosedHandler(cb nats.ConnHandler) { f.onClose = cb }

func (f *fakeConn) Drain() error {
	if f.drain != nil {
		return f.drain
	}
	go func() {
		for _, msg := range f.pending {
			time.Sleep(time.Millisecond)
			f.errs = append(f.errs, f.deliver(msg))
		}
		if !f.hang {
			f.onClose(nil)
		}
	}()
	return nil
}

func TestDrainWaitFlushesIntoOpenQueue(t *testing.T) {
	sender := &flakySender{}
	q := NewQueue(sender, QueueOptions{Workers: 1})
	conn := &fakeConn{
		pending: []Message{OrderRejected("a@b.c", 1), OrderRejected("a@b.c", 2)},
		deliver: func(msg Message) error { return q.Dispatch(context.Background(), msg) },
	}

	require.NoError(t, DrainWait(conn, time.Second))
	q.Close()

	assert.Equal(t, []error{nil, nil}, conn.errs)
	assert.Len(t, sender.sent, 2)
}

func TestDrainWaitTimesOut(t *testing.T) {
	conn := &fakeConn{hang: true}
	assert.ErrorIs(t, DrainWait(conn, 10*time.Millisecond), ErrDrainTimeout)
}

func TestDrainWaitOnClosedConnection(t *testing.T) {
	conn := &fakeConn{drain: nats.ErrConnectionClosed}
	assert.NoError(t, DrainWait(conn, time.Second))
}
