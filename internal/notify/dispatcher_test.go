package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakySender struct {
	mu       sync.Mutex
	failures int
	calls    int
	sent     []Message
}

func (s *flakySender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return errors.New("smtp unavailable")
	}
	s.sent = append(s.sent, msg)
	return nil
}

func TestQueueRetriesUntilSent(t *testing.T) {
	sender := &flakySender{failures: 2}
	var results []error
	var mu sync.Mutex
	q := NewQueue(sender, QueueOptions{
		Workers:         1,
		MaxRetries:      3,
		InitialInterval: time.Millisecond,
		Observer: func(_ Message, err error) {
			mu.Lock()
			results = append(results, err)
			mu.Unlock()
		},
	})

	require.NoError(t, q.Dispatch(context.Background(), DeliveryOTP("a@b.c", "123456")))
	q.Close()

	assert.Equal(t, 3, sender.calls)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, KindDeliveryOTP, sender.sent[0].Kind)
	assert.Contains(t, sender.sent[0].Body, "123456")
	require.Len(t, results, 1)
	assert.NoError(t, results[0])
}

func TestQueueGivesUp(t *testing.T) {
	sender := &flakySender{failures: 100}
	done := make(chan error, 1)
	q := NewQueue(sender, QueueOptions{
		Workers:         1,
		MaxRetries:      2,
		InitialInterval: time.Millisecond,
		Observer:        func(_ Message, err error) { done <- err },
	})
	require.NoError(t, q.Dispatch(context.Background(), OrderRejected("a@b.c", 7)))
	q.Close()

	assert.Error(t, <-done)
	assert.Equal(t, 3, sender.calls)
	assert.Empty(t, sender.sent)
}

func TestQueueRejectsAfterClose(t *testing.T) {
	q := NewQueue(&flakySender{}, QueueOptions{Workers: 1})
	q.Close()
	assert.ErrorIs(t, q.Dispatch(context.Background(), RegistrationOTP("a@b.c", "000001")), ErrQueueClosed)
	q.Close()
}

func TestQueueFull(t *testing.T) {
	block := make(chan struct{})
	sender := senderFunc(func(context.Context, Message) error {
		<-block
		return nil
	})
	q := NewQueue(sender, QueueOptions{Workers: 1, Buffer: 1})
	ctx := context.Background()
	require.NoError(t, q.Dispatch(ctx, LowStock("a@b.c", 5, nil)))

	var full bool
	for i := 0; i < 3; i++ {
		if errors.Is(q.Dispatch(ctx, LowStock("a@b.c", 5, nil)), ErrQueueFull) {
			full = true
		}
	}
	close(block)
	q.Close()
	assert.True(t, full)
}

type senderFunc func(context.Context, Message) error

func (f senderFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }

func TestMessages(t *testing.T) {
	m := PrescriptionRejectedByDoctor("p@x.io", "illegible scan")
	assert.Equal(t, []string{"p@x.io"}, m.To)
	assert.Contains(t, m.Body, "Reason: illegible scan")

	approved := PrescriptionReviewed("p@x.io", 12, true)
	assert.Equal(t, "Prescription Approved", approved.Subject)
	rejected := PrescriptionReviewed("p@x.io", 12, false)
	assert.Contains(t, rejected.Body, "#12 has been rejected")

	order := NewOrder("admin@pharma.com", "c@x.io", "Paracetamol x2")
	assert.Equal(t, []string{"admin@pharma.com"}, order.To)
	assert.Contains(t, order.Body, "Customer: c@x.io")
}

func TestNewSMTPSenderValidatesConfig(t *testing.T) {
	_, err := NewSMTPSender(SMTPConfig{Host: "smtp.example.com"})
	assert.Error(t, err)

	s, err := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: 465, From: "shop@example.com", Encryption: "ssl"})
	require.NoError(t, err)
	assert.NotNil(t, s)
}
