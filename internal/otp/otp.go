// Package otp issues and checks six digit one-time codes used for delivery
// confirmation, registration and password reset.
package otp

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"
)

const (
	// Length of every code
	Length = 6
	// DeliveryTTL is the lifetime of delivery confirmation codes
	DeliveryTTL = 24 * time.Hour
	// AuthTTL is the lifetime of registration and reset codes
	AuthTTL = 10 * time.Minute
)

var (
	ErrNotIssued = errors.New("no otp on record")
	ErrExpired   = errors.New("otp has expired")
	ErrMismatch  = errors.New("otp does not match")
)

var upper = big.NewInt(1_000_000)

// Code is an issued OTP together with its absolute UTC expiry
type Code struct {
	Value     string
	ExpiresAt time.Time
}

// Issue draws a uniformly random code in 000000..999999 valid for ttl from now
func Issue(now time.Time, ttl time.Duration) (Code, error) {
	n, err := rand.Int(rand.Reader, upper)
	if err != nil {
		return Code{}, fmt.Errorf("failed to draw otp: %w", err)
	}
	return Code{
		Value:     fmt.Sprintf("%0*d", Length, n.Int64()),
		ExpiresAt: now.UTC().Add(ttl),
	}, nil
}

// Verify fails closed: a missing code, an expiry at or before now, or any
// difference from the stored value is rejected. Comparison is plain equality.
func Verify(stored *string, expiry *time.Time, submitted string, now time.Time) error {
	if stored == nil || *stored == "" || expiry == nil {
		return ErrNotIssued
	}
	if !now.UTC().Before(expiry.UTC()) {
		return ErrExpired
	}
	if submitted != *stored {
		return ErrMismatch
	}
	return nil
}
