package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pharmacy_system/internal/domain"
	"pharmacy_system/internal/notify"
	"pharmacy_system/internal/otp"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PrescriptionInput is a patient's upload
type PrescriptionInput struct {
	FilePath string
	Disease  string
	Symptoms string
	Details  string
	Address  string
}

// PrescriptionUpdate is the outcome of an admin status request
type PrescriptionUpdate struct {
	Prescription *domain.Prescription
	OTPIssued    bool
}

// SubmitPrescription records an upload in Pending
func (s *Service) SubmitPrescription(ctx context.Context, userID uint, in PrescriptionInput) (*domain.Prescription, error) {
	if strings.TrimSpace(in.FilePath) == "" {
		return nil, ErrFileRequired
	}
	p := domain.Prescription{
		UserID:              userID,
		FilePath:            in.FilePath,
		Status:              domain.PrescriptionPending,
		SubmittedAt:         s.now(),
		Disease:             strings.TrimSpace(in.Disease),
		Symptoms:            strings.TrimSpace(in.Symptoms),
		PrescriptionDetails: strings.TrimSpace(in.Details),
		Address:             strings.TrimSpace(in.Address),
	}
	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		return nil, fmt.Errorf("failed to save prescription: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"prescription_id": p.ID,
		"user_id":         userID,
	}).Info("Prescription submitted")
	return &p, nil
}

// ManualPrescription is a prescription the admin records on a patient's behalf,
// typically one written by a doctor outside the upload flow
type ManualPrescription struct {
	PatientID uint
	DoctorID  uint
	Medicine  string
	Dosage    string
	Notes     string
	Disease   string
	Address   string
	FilePath  string     // Optional scan
	Date      *time.Time // Submission date; now when nil
}

// AdminCreatePrescription records a prescription that a doctor already signed
// off. It enters the review table at Doctor Approved and joins the admin queue.
func (s *Service) AdminCreatePrescription(ctx context.Context, adminID uint, in ManualPrescription) (*domain.Prescription, error) {
	medicine := strings.TrimSpace(in.Medicine)
	if medicine == "" {
		return nil, ErrMedicineRequired
	}
	db := s.db.WithContext(ctx)
	var patient, doctor domain.User
	for _, u := range []struct {
		dest *domain.User
		id   uint
	}{{&patient, in.PatientID}, {&doctor, in.DoctorID}} {
		if err := db.First(u.dest, u.id).Error; errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidParticipant
		} else if err != nil {
			return nil, fmt.Errorf("failed to load user %d: %w", u.id, err)
		}
	}
	if patient.IsAdmin || patient.IsDoctor || !doctor.IsDoctor {
		return nil, ErrInvalidParticipant
	}
	now := s.now()
	submitted := now
	if in.Date != nil {
		submitted = in.Date.UTC()
	}
	p := domain.Prescription{
		UserID:      patient.ID,
		FilePath:    strings.TrimSpace(in.FilePath),
		Status:      domain.PrescriptionDoctorApproved,
		DoctorID:    &doctor.ID,
		SubmittedAt: submitted,
		ReviewedAt:  &now,
		Disease:     strings.TrimSpace(in.Disease),
		Address:     strings.TrimSpace(in.Address),
		DoctorNotes: strings.TrimSpace(in.Notes),
		Medicine:    medicine,
		Dosage:      strings.TrimSpace(in.Dosage),
	}
	if err := db.Create(&p).Error; err != nil {
		return nil, fmt.Errorf("failed to save prescription: %w", err)
	}
	p.User, p.Doctor = &patient, &doctor
	logrus.WithFields(logrus.Fields{
		"prescription_id": p.ID,
		"user_id":         patient.ID,
		"doctor_id":       doctor.ID,
		"admin_id":        adminID,
	}).Info("Prescription recorded by admin")
	s.opts.Metrics.Transition("prescription", string(p.Status))
	return &p, nil
}

// DoctorApprove moves a Pending prescription to Doctor Approved
func (s *Service) DoctorApprove(ctx context.Context, doctorID, id uint, notes, medicine, dosage string) (*domain.Prescription, error) {
	p, err := s.loadPrescription(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	updates := map[string]any{
		"doctor_id":    doctorID,
		"reviewed_at":  now,
		"doctor_notes": strings.TrimSpace(notes),
	}
	if m := strings.TrimSpace(medicine); m != "" {
		updates["medicine"] = m
		p.Medicine = m
	}
	if d := strings.TrimSpace(dosage); d != "" {
		updates["dosage"] = d
		p.Dosage = d
	}
	if err := s.movePrescription(ctx, p, domain.PrescriptionDoctorApproved, domain.ReviewerDoctor, updates); err != nil {
		return nil, err
	}
	p.DoctorID, p.ReviewedAt, p.DoctorNotes = &doctorID, &now, strings.TrimSpace(notes)
	return p, nil
}

// DoctorReject refuses a Pending prescription and tells the patient why
func (s *Service) DoctorReject(ctx context.Context, doctorID, id uint, reason string) (*domain.Prescription, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}
	p, err := s.loadPrescription(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	err = s.movePrescription(ctx, p, domain.PrescriptionRejected, domain.ReviewerDoctor, map[string]any{
		"doctor_id":        doctorID,
		"reviewed_at":      now,
		"rejection_reason": reason,
	})
	if err != nil {
		return nil, err
	}
	p.DoctorID, p.ReviewedAt, p.RejectionReason = &doctorID, &now, reason
	if p.User != nil {
		s.enqueue(ctx, notify.PrescriptionRejectedByDoctor(p.User.Email, reason), logrus.Fields{"prescription_id": p.ID})
	}
	return p, nil
}

// AdminReview approves or rejects a Doctor Approved prescription
func (s *Service) AdminReview(ctx context.Context, adminID, id uint, approve bool) (*domain.Prescription, error) {
	p, err := s.loadPrescription(ctx, id)
	if err != nil {
		return nil, err
	}
	return p, s.adminReview(ctx, adminID, p, approve)
}

func (s *Service) adminReview(ctx context.Context, adminID uint, p *domain.Prescription, approve bool) error {
	to := domain.PrescriptionRejected
	if approve {
		to = domain.PrescriptionApproved
	}
	now := s.now()
	err := s.movePrescription(ctx, p, to, domain.ReviewerAdmin, map[string]any{
		"admin_id":    adminID,
		"reviewed_at": now,
	})
	if err != nil {
		return err
	}
	p.AdminID, p.ReviewedAt = &adminID, &now
	if p.User != nil {
		s.enqueue(ctx, notify.PrescriptionReviewed(p.User.Email, p.ID, approve), logrus.Fields{"prescription_id": p.ID})
	}
	return nil
}

// UpdatePrescriptionStatus is the single admin entry point for prescription
// status changes. Delivered and Awaiting OTP Verification both issue a code.
func (s *Service) UpdatePrescriptionStatus(ctx context.Context, adminID, id uint, status string) (*PrescriptionUpdate, error) {
	to, ok := domain.ParsePrescriptionStatus(status)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownStatus, status)
	}
	p, err := s.loadPrescription(ctx, id)
	if err != nil {
		return nil, err
	}
	switch to {
	case domain.PrescriptionApproved, domain.PrescriptionRejected:
		if err := s.adminReview(ctx, adminID, p, to == domain.PrescriptionApproved); err != nil {
			return nil, err
		}
		return &PrescriptionUpdate{Prescription: p}, nil
	case domain.PrescriptionAwaitingOTP, domain.PrescriptionDelivered:
		if err := s.issuePrescriptionOTP(ctx, adminID, p); err != nil {
			return nil, err
		}
		return &PrescriptionUpdate{Prescription: p, OTPIssued: true}, nil
	default:
		return nil, &TransitionError{Entity: "prescription", From: string(p.Status), To: string(to)}
	}
}

// issuePrescriptionOTP marks a prescription as handed over by adminID and mails the code
func (s *Service) issuePrescriptionOTP(ctx context.Context, adminID uint, p *domain.Prescription) error {
	now := s.now()
	code, err := otp.Issue(now, s.opts.DeliveryTTL)
	if err != nil {
		return err
	}
	err = s.movePrescription(ctx, p, domain.PrescriptionAwaitingOTP, domain.ReviewerAdmin, map[string]any{
		"admin_id":            adminID,
		"reviewed_at":         now,
		"delivery_otp":        code.Value,
		"delivery_otp_expiry": code.ExpiresAt,
	})
	if err != nil {
		return err
	}
	p.AdminID, p.ReviewedAt = &adminID, &now
	p.DeliveryOTP, p.DeliveryOTPExpiry = &code.Value, &code.ExpiresAt
	if p.User != nil {
		s.enqueue(ctx, notify.PrescriptionDeliveryOTP(p.User.Email, code.Value), logrus.Fields{"prescription_id": p.ID})
	}
	return nil
}

// ConfirmPrescriptionDelivery applies the same fail-closed rules as orders
func (s *Service) ConfirmPrescriptionDelivery(ctx context.Context, id uint, code string) (*domain.Prescription, error) {
	p, err := s.loadPrescription(ctx, id)
	if err != nil {
		return nil, err
	}
	fields := logrus.Fields{"prescription_id": p.ID}

	verr := otp.Verify(p.DeliveryOTP, p.DeliveryOTPExpiry, code, s.now())
	s.opts.Metrics.OTPVerification("prescription", otpResult(verr))
	if errors.Is(verr, otp.ErrExpired) {
		if err := s.clearOTP(ctx, &domain.Prescription{}, p.ID); err != nil {
			return nil, err
		}
		p.DeliveryOTP, p.DeliveryOTPExpiry = nil, nil
		logrus.WithFields(fields).Warn("Expired delivery OTP cleared")
		return p, verr
	}
	if verr != nil {
		return p, verr
	}
	if !p.Status.CanTransition(domain.PrescriptionDelivered, domain.ReviewerOTP) {
		return nil, &TransitionError{Entity: "prescription", From: string(p.Status), To: string(domain.PrescriptionDelivered)}
	}

	res := s.db.WithContext(ctx).Model(&domain.Prescription{}).
		Where("id = ? AND delivery_otp = ?", p.ID, code).
		Updates(map[string]any{
			"status":              string(domain.PrescriptionDelivered),
			"delivery_otp":        nil,
			"delivery_otp_expiry": nil,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to confirm delivery of prescription %d: %w", p.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return p, otp.ErrNotIssued
	}
	p.Status = domain.PrescriptionDelivered
	p.DeliveryOTP, p.DeliveryOTPExpiry = nil, nil
	s.opts.Metrics.Transition("prescription", string(domain.PrescriptionDelivered))
	logrus.WithFields(fields).Info("Prescription delivery confirmed")
	return p, nil
}

// AdminQueue lists prescriptions waiting for the admin, oldest first
func (s *Service) AdminQueue(ctx context.Context) ([]domain.Prescription, error) {
	var list []domain.Prescription
	err := s.db.WithContext(ctx).Preload("User").Preload("Doctor").
		Where("status = ?", string(domain.PrescriptionDoctorApproved)).
		Order("submitted_at asc").Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load admin queue: %w", err)
	}
	return list, nil
}

// DashboardFilter narrows the doctor dashboard
type DashboardFilter struct {
	Search string     // Patient email substring, case insensitive
	Status string     // Exact status; empty or "all" for every status
	Date   *time.Time // Submission day (UTC)
}

// DoctorDashboard is the doctor's worklist with headline counts
type DoctorDashboard struct {
	Prescriptions []domain.Prescription `json:"prescriptions"`
	Pending       int64                 `json:"pending_count"`
	Approved      int64                 `json:"approved_count"`
	Rejected      int64                 `json:"rejected_count"`
}

// approvedStatuses are the states a prescription reaches after doctor approval
var approvedStatuses = []string{
	string(domain.PrescriptionDoctorApproved),
	string(domain.PrescriptionApproved),
	string(domain.PrescriptionAwaitingOTP),
	string(domain.PrescriptionDelivered),
}

// Dashboard builds the doctor dashboard. Counts ignore the filter.
func (s *Service) Dashboard(ctx context.Context, f DashboardFilter) (*DoctorDashboard, error) {
	db := s.db.WithContext(ctx)
	out := &DoctorDashboard{Prescriptions: []domain.Prescription{}}
	count := func(dest *int64, statuses ...string) error {
		return db.Model(&domain.Prescription{}).Where("status IN ?", statuses).Count(dest).Error
	}
	if err := count(&out.Pending, string(domain.PrescriptionPending)); err != nil {
		return nil, fmt.Errorf("failed to count prescriptions: %w", err)
	}
	if err := count(&out.Approved, approvedStatuses...); err != nil {
		return nil, fmt.Errorf("failed to count prescriptions: %w", err)
	}
	if err := count(&out.Rejected, string(domain.PrescriptionRejected)); err != nil {
		return nil, fmt.Errorf("failed to count prescriptions: %w", err)
	}

	q := db.Model(&domain.Prescription{}).Select("prescriptions.*").Preload("User").Preload("Doctor")
	if search := strings.TrimSpace(f.Search); search != "" {
		q = q.Joins("JOIN users ON users.id = prescriptions.user_id").
			Where("LOWER(users.email) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	if f.Status != "" && !strings.EqualFold(f.Status, "all") {
		st, ok := domain.ParsePrescriptionStatus(f.Status)
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrUnknownStatus, f.Status)
		}
		q = q.Where("prescriptions.status = ?", string(st))
	}
	if f.Date != nil {
		day := time.Date(f.Date.Year(), f.Date.Month(), f.Date.Day(), 0, 0, 0, 0, time.UTC)
		q = q.Where("prescriptions.submitted_at >= ? AND prescriptions.submitted_at < ?", day, day.AddDate(0, 0, 1))
	}
	if err := q.Order("prescriptions.submitted_at desc").Find(&out.Prescriptions).Error; err != nil {
		return nil, fmt.Errorf("failed to load prescriptions: %w", err)
	}
	return out, nil
}

// CustomerHistory returns a customer's orders and prescriptions, newest first
func (s *Service) CustomerHistory(ctx context.Context, userID uint) ([]domain.Order, []domain.Prescription, error) {
	orders := []domain.Order{}
	err := s.db.WithContext(ctx).Preload("Medicine").Where("user_id = ?", userID).
		Order("ordered_at desc").Find(&orders).Error
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load orders of user %d: %w", userID, err)
	}
	prescriptions := []domain.Prescription{}
	err = s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("submitted_at desc").Find(&prescriptions).Error
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load prescriptions of user %d: %w", userID, err)
	}
	return orders, prescriptions, nil
}

func (s *Service) loadPrescription(ctx context.Context, id uint) (*domain.Prescription, error) {
	var p domain.Prescription
	if err := s.db.WithContext(ctx).Preload("User").First(&p, id).Error; err != nil {
		return nil, notFound(err, "prescription", id)
	}
	return &p, nil
}

// movePrescription checks the transition table for the actor and writes the
// new status together with updates, guarded by the status that was read.
func (s *Service) movePrescription(ctx context.Context, p *domain.Prescription, to domain.PrescriptionStatus, by domain.Reviewer, updates map[string]any) error {
	if !p.Status.CanTransition(to, by) {
		return &TransitionError{Entity: "prescription", From: string(p.Status), To: string(to)}
	}
	updates["status"] = string(to)
	res := s.db.WithContext(ctx).Model(&domain.Prescription{}).
		Where("id = ? AND status = ?", p.ID, string(p.Status)).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update prescription %d: %w", p.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return &TransitionError{Entity: "prescription", From: string(p.Status), To: string(to)}
	}
	logrus.WithFields(logrus.Fields{
		"prescription_id": p.ID,
		"from":            p.Status,
		"status":          to,
		"by":              by,
	}).Info("Prescription status updated")
	p.Status = to
	s.opts.Metrics.Transition("prescription", string(to))
	return nil
}
