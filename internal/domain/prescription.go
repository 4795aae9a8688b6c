package domain

import "time"

// PrescriptionStatus is the review state of a prescription
type PrescriptionStatus string

const (
	PrescriptionPending        PrescriptionStatus = "Pending"
	PrescriptionDoctorApproved PrescriptionStatus = "Doctor Approved"
	PrescriptionApproved       PrescriptionStatus = "Approved"
	PrescriptionRejected       PrescriptionStatus = "Rejected"
	PrescriptionAwaitingOTP    PrescriptionStatus = "Awaiting OTP Verification"
	PrescriptionDelivered      PrescriptionStatus = "Delivered"
)

// Reviewer identifies who drives a prescription transition
type Reviewer string

const (
	ReviewerDoctor Reviewer = "doctor"
	ReviewerAdmin  Reviewer = "admin"
	ReviewerOTP    Reviewer = "otp"
)

type prescriptionEdge struct {
	to PrescriptionStatus
	by Reviewer
}

// prescriptionTransitions is the two stage review table. Awaiting OTP may be
// re-entered to re-issue the code.
var prescriptionTransitions = map[PrescriptionStatus][]prescriptionEdge{
	PrescriptionPending: {
		{PrescriptionDoctorApproved, ReviewerDoctor},
		{PrescriptionRejected, ReviewerDoctor},
	},
	PrescriptionDoctorApproved: {
		{PrescriptionApproved, ReviewerAdmin},
		{PrescriptionRejected, ReviewerAdmin},
	},
	PrescriptionApproved: {
		{PrescriptionAwaitingOTP, ReviewerAdmin},
	},
	PrescriptionAwaitingOTP: {
		{PrescriptionAwaitingOTP, ReviewerAdmin},
		{PrescriptionDelivered, ReviewerOTP},
	},
}

// CanTransition reports whether the given reviewer may move from s to `to`
func (s PrescriptionStatus) CanTransition(to PrescriptionStatus, by Reviewer) bool {
	for _, e := range prescriptionTransitions[s] {
		if e.to == to && e.by == by {
			return true
		}
	}
	return false
}

// ParsePrescriptionStatus accepts a status name case-insensitively
func ParsePrescriptionStatus(s string) (PrescriptionStatus, bool) {
	for _, st := range PrescriptionStatuses() {
		if equalFold(string(st), s) {
			return st, true
		}
	}
	return "", false
}

// PrescriptionStatuses returns every status in review order
func PrescriptionStatuses() []PrescriptionStatus {
	return []PrescriptionStatus{
		PrescriptionPending, PrescriptionDoctorApproved, PrescriptionApproved,
		PrescriptionRejected, PrescriptionAwaitingOTP, PrescriptionDelivered,
	}
}

// Prescription Model
type Prescription struct {
	ID                  uint               `gorm:"primaryKey" json:"id"`                                            // Primary key
	UserID              uint               `gorm:"not null;index" json:"user_id"`                                   // Patient
	User                *User              `gorm:"foreignKey:UserID" json:"user,omitempty"`                         // Patient row
	FilePath            string             `gorm:"size:200;not null" json:"file_path"`                              // Uploaded file key
	Status              PrescriptionStatus `gorm:"size:50;not null;default:Pending;index" json:"status"`            // Review status
	DoctorID            *uint              `json:"doctor_id,omitempty"`                                             // Reviewing doctor
	Doctor              *User              `gorm:"foreignKey:DoctorID" json:"doctor,omitempty"`                     // Doctor row
	AdminID             *uint              `json:"admin_id,omitempty"`                                              // Approving admin
	Admin               *User              `gorm:"foreignKey:AdminID" json:"admin,omitempty"`                       // Admin row
	SubmittedAt         time.Time          `gorm:"autoCreateTime" json:"submitted_at"`                              // Upload time
	ReviewedAt          *time.Time         `json:"reviewed_at,omitempty"`                                           // Last review time
	RejectionReason     string             `gorm:"type:text" json:"rejection_reason,omitempty"`                     // Doctor's rejection reason
	Disease             string             `gorm:"size:200" json:"disease,omitempty"`                               // Patient reported disease
	Symptoms            string             `gorm:"type:text" json:"symptoms,omitempty"`                             // Patient reported symptoms
	PrescriptionDetails string             `gorm:"type:text" json:"prescription_details,omitempty"`                 // Free text details
	Address             string             `gorm:"type:text" json:"address,omitempty"`                              // Delivery address
	DoctorNotes         string             `gorm:"type:text" json:"doctor_notes,omitempty"`                         // Doctor approval notes
	Medicine            string             `gorm:"size:200" json:"medicine,omitempty"`                              // Prescribed medicine
	Dosage              string             `gorm:"size:100" json:"dosage,omitempty"`                                // Prescribed dosage
	DeliveryOTP         *string            `gorm:"column:delivery_otp;size:6" json:"-"`                             // Outstanding delivery OTP
	DeliveryOTPExpiry   *time.Time         `gorm:"column:delivery_otp_expiry" json:"delivery_otp_expiry,omitempty"` // Delivery OTP expiry (UTC)
}
