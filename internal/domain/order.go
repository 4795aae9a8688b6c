package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order
type OrderStatus string

const (
	OrderPending    OrderStatus = "Pending"
	OrderProcessing OrderStatus = "Processing"
	OrderShipped    OrderStatus = "Shipped"
	OrderDelivered  OrderStatus = "Delivered"
	OrderRejected   OrderStatus = "Rejected"
)

// orderTransitions lists the statuses an admin may move an order to.
// Delivered is only reachable through OTP confirmation.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderProcessing, OrderRejected},
	OrderProcessing: {OrderShipped},
	OrderShipped:    {OrderDelivered},
}

// ParseOrderStatus accepts a status name case-insensitively
func ParseOrderStatus(s string) (OrderStatus, bool) {
	for _, st := range []OrderStatus{OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderRejected} {
		if equalFold(string(st), s) {
			return st, true
		}
	}
	return "", false
}

// CanTransition reports whether the table allows from -> to
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	return contains(orderTransitions[s], to)
}

// Terminal reports whether no further transition exists
func (s OrderStatus) Terminal() bool {
	return len(orderTransitions[s]) == 0
}

// OrderStatuses returns every status in lifecycle order
func OrderStatuses() []OrderStatus {
	return []OrderStatus{OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderRejected}
}

// Order Model, one row per cart line
type Order struct {
	ID                uint            `gorm:"primaryKey" json:"id"`                                            // Primary key
	UserID            uint            `gorm:"not null;index" json:"user_id"`                                   // Customer
	User              *User           `gorm:"constraint:OnUpdate:CASCADE;" json:"user,omitempty"`              // Customer row
	MedicineID        uint            `gorm:"not null;index" json:"medicine_id"`                               // Ordered medicine
	Medicine          *Medicine       `gorm:"constraint:OnUpdate:CASCADE;" json:"medicine,omitempty"`          // Medicine row
	Quantity          int             `gorm:"not null" json:"quantity"`                                        // Units ordered
	Status            OrderStatus     `gorm:"size:50;not null;default:Pending;index" json:"status"`            // Lifecycle status
	OrderedAt         time.Time       `gorm:"autoCreateTime" json:"ordered_at"`                                // Placement time
	Address           string          `gorm:"type:text" json:"address"`                                        // Delivery address
	Prescription      string          `gorm:"size:200" json:"prescription,omitempty"`                          // Uploaded prescription key
	Total             decimal.Decimal `gorm:"type:decimal(12,2)" json:"total"`                                 // Discounted line total
	DeliveryOTP       *string         `gorm:"column:delivery_otp;size:6" json:"-"`                             // Outstanding delivery OTP
	DeliveryOTPExpiry *time.Time      `gorm:"column:delivery_otp_expiry" json:"delivery_otp_expiry,omitempty"` // Delivery OTP expiry (UTC)
}

// AwaitingOTP reports whether a delivery OTP is outstanding
func (o Order) AwaitingOTP() bool {
	return o.DeliveryOTP != nil && o.DeliveryOTPExpiry != nil
}
