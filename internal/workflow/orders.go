package workflow

import (
	"context"
	"errors"
	"fmt"

	"pharmacy_system/internal/domain"
	"pharmacy_system/internal/notify"
	"pharmacy_system/internal/otp"

	"github.com/sirupsen/logrus"
)

// OrderUpdate is the outcome of an admin status request
type OrderUpdate struct {
	Order     *domain.Order
	OTPIssued bool // Delivered was requested; a code went to the customer
}

// UpdateOrderStatus applies an admin status change. Requesting Delivered never
// writes the status: it issues a delivery OTP instead.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID uint, status string) (*OrderUpdate, error) {
	to, ok := domain.ParseOrderStatus(status)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownStatus, status)
	}
	var order domain.Order
	if err := s.db.WithContext(ctx).Preload("User").First(&order, orderID).Error; err != nil {
		return nil, notFound(err, "order", orderID)
	}
	if !order.Status.CanTransition(to) {
		return nil, &TransitionError{Entity: "order", From: string(order.Status), To: string(to)}
	}

	if to == domain.OrderDelivered {
		if err := s.issueOrderOTP(ctx, &order); err != nil {
			return nil, err
		}
		return &OrderUpdate{Order: &order, OTPIssued: true}, nil
	}

	res := s.db.WithContext(ctx).Model(&domain.Order{}).
		Where("id = ? AND status = ?", order.ID, string(order.Status)).
		Update("status", string(to))
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update order %d: %w", order.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		// Someone moved the order between the read and the write
		return nil, &TransitionError{Entity: "order", From: string(order.Status), To: string(to)}
	}
	from := order.Status
	order.Status = to
	s.opts.Metrics.Transition("order", string(to))
	logrus.WithFields(logrus.Fields{
		"order_id": order.ID,
		"from":     from,
		"status":   to,
	}).Info("Order status updated")

	if to == domain.OrderRejected && order.User != nil {
		s.enqueue(ctx, notify.OrderRejected(order.User.Email, order.ID), logrus.Fields{"order_id": order.ID})
	}
	return &OrderUpdate{Order: &order}, nil
}

// issueOrderOTP stores a fresh code (replacing any outstanding one) and mails it
func (s *Service) issueOrderOTP(ctx context.Context, order *domain.Order) error {
	code, err := otp.Issue(s.now(), s.opts.DeliveryTTL)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Model(&domain.Order{}).Where("id = ?", order.ID).Updates(map[string]any{
		"delivery_otp":        code.Value,
		"delivery_otp_expiry": code.ExpiresAt,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to store delivery otp for order %d: %w", order.ID, err)
	}
	order.DeliveryOTP = &code.Value
	order.DeliveryOTPExpiry = &code.ExpiresAt
	logrus.WithFields(logrus.Fields{
		"order_id":   order.ID,
		"expires_at": code.ExpiresAt,
	}).Info("Delivery OTP issued")

	if order.User != nil {
		s.enqueue(ctx, notify.DeliveryOTP(order.User.Email, code.Value), logrus.Fields{"order_id": order.ID})
	}
	return nil
}

// ConfirmOrderDelivery checks a delivery OTP. A match before expiry marks the
// order Delivered and consumes the code; an expired code is cleared and the
// status left alone; a mismatch changes nothing.
func (s *Service) ConfirmOrderDelivery(ctx context.Context, orderID uint, code string) (*domain.Order, error) {
	var order domain.Order
	if err := s.db.WithContext(ctx).First(&order, orderID).Error; err != nil {
		return nil, notFound(err, "order", orderID)
	}
	fields := logrus.Fields{"order_id": order.ID}

	verr := otp.Verify(order.DeliveryOTP, order.DeliveryOTPExpiry, code, s.now())
	s.opts.Metrics.OTPVerification("order", otpResult(verr))
	if errors.Is(verr, otp.ErrExpired) {
		if err := s.clearOTP(ctx, &domain.Order{}, order.ID); err != nil {
			return nil, err
		}
		order.DeliveryOTP, order.DeliveryOTPExpiry = nil, nil
		logrus.WithFields(fields).Warn("Expired delivery OTP cleared")
		return &order, verr
	}
	if verr != nil {
		return &order, verr
	}

	// The code in the WHERE clause makes the confirmation single use
	res := s.db.WithContext(ctx).Model(&domain.Order{}).
		Where("id = ? AND delivery_otp = ?", order.ID, code).
		Updates(map[string]any{
			"status":              string(domain.OrderDelivered),
			"delivery_otp":        nil,
			"delivery_otp_expiry": nil,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to confirm delivery of order %d: %w", order.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return &order, otp.ErrNotIssued
	}
	order.Status = domain.OrderDelivered
	order.DeliveryOTP, order.DeliveryOTPExpiry = nil, nil
	s.opts.Metrics.Transition("order", string(domain.OrderDelivered))
	logrus.WithFields(fields).Info("Order delivery confirmed")
	return &order, nil
}

// clearOTP nulls both delivery OTP columns of a row
func (s *Service) clearOTP(ctx context.Context, model any, id uint) error {
	err := s.db.WithContext(ctx).Model(model).Where("id = ?", id).Updates(map[string]any{
		"delivery_otp":        nil,
		"delivery_otp_expiry": nil,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to clear delivery otp: %w", err)
	}
	return nil
}
