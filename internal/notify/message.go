package notify

import (
	"fmt"
	"strings"
)

// Kind classifies a message for logging and metrics
type Kind string

const (
	KindDeliveryOTP        Kind = "delivery_otp"
	KindOrderRejected      Kind = "order_rejected"
	KindNewOrder           Kind = "new_order"
	KindPrescriptionOTP    Kind = "prescription_otp"
	KindPrescriptionResult Kind = "prescription_result"
	KindRegistrationOTP    Kind = "registration_otp"
	KindPasswordResetOTP   Kind = "password_reset_otp"
	KindLowStock           Kind = "low_stock"
)

// Message is one outbound email
type Message struct {
	Kind    Kind     `json:"kind"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

const signature = "\n\n- Pharma Team"

// DeliveryOTP asks the customer to hand the code to the courier
func DeliveryOTP(to, code string) Message {
	return Message{
		Kind:    KindDeliveryOTP,
		To:      []string{to},
		Subject: "Delivery OTP - Confirm Medicine Delivery",
		Body: "Hello,\n\nYour order has been marked as delivered!\n\n" +
			"Please provide this OTP to the delivery person to confirm successful delivery:\n\n" +
			"OTP: " + code + "\n\nThis OTP is valid for 24 hours.\n\n" +
			"If you did not receive your order or have any issues, please contact our support team." + signature,
	}
}

// PrescriptionDeliveryOTP is the prescription variant of DeliveryOTP
func PrescriptionDeliveryOTP(to, code string) Message {
	return Message{
		Kind:    KindPrescriptionOTP,
		To:      []string{to},
		Subject: "Prescription Delivery OTP - Confirm Medicine Receipt",
		Body: "Hello,\n\nYour prescription medicines have been marked as delivered!\n\n" +
			"Please provide this OTP to confirm that you have received your prescription medicines:\n\n" +
			"OTP: " + code + "\n\nThis OTP is valid for 24 hours." + signature,
	}
}

// OrderRejected tells the customer an order was refused
func OrderRejected(to string, orderID uint) Message {
	return Message{
		Kind:    KindOrderRejected,
		To:      []string{to},
		Subject: "Order Rejected",
		Body:    fmt.Sprintf("Dear %s,\n\nWe're sorry to inform you that your order #%d has been rejected.", to, orderID) + signature,
	}
}

// PrescriptionRejectedByDoctor carries the doctor's reason
func PrescriptionRejectedByDoctor(to, reason string) Message {
	return Message{
		Kind:    KindPrescriptionResult,
		To:      []string{to},
		Subject: "Prescription Rejected",
		Body: fmt.Sprintf("Dear %s,\n\nYour prescription has been rejected by the doctor.\n\nReason: %s\n\n"+
			"Please contact support if you have any questions.", to, reason) + signature,
	}
}

// PrescriptionReviewed reports the admin decision
func PrescriptionReviewed(to string, prescriptionID uint, approved bool) Message {
	if approved {
		return Message{
			Kind:    KindPrescriptionResult,
			To:      []string{to},
			Subject: "Prescription Approved",
			Body:    fmt.Sprintf("Dear %s,\n\nYour prescription #%d has been approved by the admin.", to, prescriptionID) + signature,
		}
	}
	return Message{
		Kind:    KindPrescriptionResult,
		To:      []string{to},
		Subject: "Prescription Rejected",
		Body:    fmt.Sprintf("Dear %s,\n\nWe're sorry to inform you that your prescription #%d has been rejected by the admin.", to, prescriptionID) + signature,
	}
}

// NewOrder summarises a checkout for the admin inbox
func NewOrder(adminEmail, customer, summary string) Message {
	return Message{
		Kind:    KindNewOrder,
		To:      []string{adminEmail},
		Subject: "New Order Placed",
		Body: "Hello Admin,\n\nA new order has been placed!\n\nCustomer: " + customer +
			"\nOrder Summary:\n" + summary + "\n\nPlease check the admin dashboard for full details.",
	}
}

// RegistrationOTP carries the sign-up verification code
func RegistrationOTP(to, code string) Message {
	return Message{
		Kind:    KindRegistrationOTP,
		To:      []string{to},
		Subject: "Pharma Registration OTP",
		Body:    "Your OTP for registration is: " + code,
	}
}

// PasswordResetOTP carries the reset code
func PasswordResetOTP(to, code string) Message {
	return Message{
		Kind:    KindPasswordResetOTP,
		To:      []string{to},
		Subject: "Password Reset OTP",
		Body:    "Your OTP for password reset is: " + code,
	}
}

// LowStock lists medicines at or below the threshold
func LowStock(adminEmail string, threshold int, lines []string) Message {
	return Message{
		Kind:    KindLowStock,
		To:      []string{adminEmail},
		Subject: fmt.Sprintf("Low stock report (%d items)", len(lines)),
		Body: fmt.Sprintf("Hello Admin,\n\nThe following medicines have %d units or fewer in stock:\n\n", threshold) +
			strings.Join(lines, "\n"),
	}
}
