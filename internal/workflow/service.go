// Package workflow drives order and prescription status changes, delivery
// OTP confirmation and checkout. Every state change is a conditional UPDATE;
// notifications are queued after the write and never roll it back.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pharmacy_system/internal/metrics"
	"pharmacy_system/internal/notify"
	"pharmacy_system/internal/otp"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Cart is the part of the cart store checkout needs
type Cart interface {
	Items(ctx context.Context, userID uint) (map[uint]int, error)
	Clear(ctx context.Context, userID uint) error
}

// Options tunes a Service; zero values get defaults
type Options struct {
	AdminEmail  string           // Recipient of new order summaries
	DeliveryTTL time.Duration    // Lifetime of delivery OTPs
	Metrics     *metrics.Manager // Optional
	Now         func() time.Time // Clock, UTC
}

// Service owns the order and prescription workflows
type Service struct {
	db       *gorm.DB
	notifier notify.Dispatcher
	carts    Cart
	opts     Options
}

func New(db *gorm.DB, notifier notify.Dispatcher, carts Cart, opts Options) *Service {
	if opts.DeliveryTTL <= 0 {
		opts.DeliveryTTL = otp.DeliveryTTL
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{db: db, notifier: notifier, carts: carts, opts: opts}
}

func (s *Service) now() time.Time {
	return s.opts.Now().UTC()
}

// enqueue hands a message to the dispatcher. Failures are logged only: the
// state change that triggered the message is already committed.
func (s *Service) enqueue(ctx context.Context, msg notify.Message, fields logrus.Fields) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Dispatch(ctx, msg); err != nil {
		fields["kind"] = msg.Kind
		fields["error"] = err.Error()
		logrus.WithFields(fields).Error("Failed to queue notification")
	}
}

// otpResult labels a verification outcome for metrics
func otpResult(err error) string {
	switch {
	case err == nil:
		return "confirmed"
	case errors.Is(err, otp.ErrExpired):
		return "expired"
	case errors.Is(err, otp.ErrMismatch):
		return "mismatch"
	default:
		return "missing"
	}
}

// notFound maps gorm's missing row error to ErrNotFound
func notFound(err error, entity string, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
	}
	return fmt.Errorf("failed to load %s %d: %w", entity, id, err)
}
