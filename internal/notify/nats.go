package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

const (
	// Subject carries JSON encoded Message values
	Subject = "pharmacy.notifications"
	// QueueGroup load-balances consumers across server instances
	QueueGroup = "pharmacy-mailers"

	// DrainTimeout bounds how long shutdown waits for in-flight messages
	DrainTimeout = 10 * time.Second

	connectWait   = 5 * time.Second
	maxReconnects = 5
	reconnectWait = 2 * time.Second
)

// Connect opens the NATS connection used for notifications
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("pharmacy notifications"),
		nats.Timeout(connectWait),
		nats.MaxReconnects(maxReconnects),
		nats.ReconnectWait(reconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logrus.WithError(err).Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logrus.WithField("url", nc.ConnectedUrl()).Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// NATSDispatcher publishes messages for the mailer consumers
type NATSDispatcher struct {
	conn *nats.Conn
}

func NewNATSDispatcher(conn *nats.Conn) (*NATSDispatcher, error) {
	if conn == nil {
		return nil, errors.New("NATS connection cannot be nil")
	}
	return &NATSDispatcher{conn: conn}, nil
}

func (d *NATSDispatcher) Dispatch(_ context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if err := d.conn.Publish(Subject, data); err != nil {
		return fmt.Errorf("failed to publish notification to %s: %w", Subject, err)
	}
	return nil
}

// Consume feeds messages from the queue group into the local retrying queue
func Consume(conn *nats.Conn, q Dispatcher) (*nats.Subscription, error) {
	return conn.QueueSubscribe(Subject, QueueGroup, func(m *nats.Msg) {
		var msg Message
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			logrus.WithError(err).Error("Dropping malformed notification")
			return
		}
		if err := q.Dispatch(context.Background(), msg); err != nil {
			logrus.WithFields(logrus.Fields{
				"kind":  msg.Kind,
				"error": err.Error(),
			}).Error("Failed to queue notification")
		}
	})
}

// ErrDrainTimeout is returned when the connection did not close in time
var ErrDrainTimeout = errors.New("timed out draining NATS connection")

// Drainer is the part of *nats.Conn that shutdown needs
type Drainer interface {
	Drain() error
	SetClosedHandler(cb nats.ConnHandler)
}

// DrainWait drains the subscriptions and the publisher and blocks until the
// connection reports closed. Messages buffered on the subscription reach
// their handler before it returns, so the local queue must still be open.
func DrainWait(conn Drainer, timeout time.Duration) error {
	done := make(chan struct{})
	var once sync.Once
	conn.SetClosedHandler(func(*nats.Conn) {
		once.Do(func() { close(done) })
	})
	if err := conn.Drain(); err != nil {
		if errors.Is(err, nats.ErrConnectionClosed) {
			return nil
		}
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return ErrDrainTimeout
	}
}
