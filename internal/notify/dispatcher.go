package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

var (
	ErrQueueFull   = errors.New("notification queue is full")
	ErrQueueClosed = errors.New("notification queue is closed")
)

// Dispatcher accepts messages for asynchronous delivery. A nil error means
// the message was queued, not that it was sent.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) error
}

// QueueOptions tunes the in-process queue
type QueueOptions struct {
	Workers         int                  // Concurrent senders
	Buffer          int                  // Pending message capacity
	MaxRetries      uint64               // Retries after the first attempt
	InitialInterval time.Duration        // First backoff interval
	SendTimeout     time.Duration        // Per attempt timeout
	Observer        func(Message, error) // Called once per message with the final result
}

func (o *QueueOptions) defaults() {
	if o.Workers <= 0 {
		o.Workers = 2
	}
	if o.Buffer <= 0 {
		o.Buffer = 256
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = 4
	}
	if o.InitialInterval <= 0 {
		o.InitialInterval = 500 * time.Millisecond
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = 30 * time.Second
	}
}

// Queue is a buffered in-process Dispatcher with retrying workers
type Queue struct {
	sender Sender
	opts   QueueOptions
	ch     chan Message
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// NewQueue starts the worker goroutines
func NewQueue(sender Sender, opts QueueOptions) *Queue {
	opts.defaults()
	q := &Queue{sender: sender, opts: opts, ch: make(chan Message, opts.Buffer)}
	for i := 0; i < opts.Workers; i++ {
		q.wg.Add(1)
		go q.work()
	}
	return q
}

func (q *Queue) Dispatch(ctx context.Context, msg Message) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Close stops accepting messages and waits for queued ones to finish
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	q.mu.Unlock()
	q.wg.Wait()
}

func (q *Queue) work() {
	defer q.wg.Done()
	for msg := range q.ch {
		err := q.deliver(msg)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"to":      msg.To,
				"subject": msg.Subject,
				"kind":    msg.Kind,
				"error":   err.Error(),
			}).Error("Notification delivery failed")
		}
		if q.opts.Observer != nil {
			q.opts.Observer(msg, err)
		}
	}
}

func (q *Queue) deliver(msg Message) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = q.opts.InitialInterval
	eb.MaxElapsedTime = 0 // bounded by MaxRetries
	attempt := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), q.opts.SendTimeout)
		defer cancel()
		return q.sender.Send(ctx, msg)
	}
	if err := backoff.Retry(attempt, backoff.WithMaxRetries(eb, q.opts.MaxRetries)); err != nil {
		return fmt.Errorf("giving up after %d retries: %w", q.opts.MaxRetries, err)
	}
	return nil
}
