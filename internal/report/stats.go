package report

import (
	"context"
	"fmt"

	"pharmacy_system/internal/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StatusFigures is the count and sales sum of one order status
type StatusFigures struct {
	Count int64           `json:"count"`
	Sales decimal.Decimal `json:"sales"`
}

// Dashboard is the admin landing page
type Dashboard struct {
	Medicines     int64                                `json:"total_medicines"`
	Orders        int64                                `json:"total_orders"`
	Users         int64                                `json:"total_users"`
	Prescriptions int64                                `json:"total_prescriptions"`
	ByStatus      map[domain.OrderStatus]StatusFigures `json:"orders_by_status"`
	Recent        []domain.Prescription                `json:"recent_doctor_approved"`
}

type statusRow struct {
	Status string
	Count  int64
	Sales  decimal.Decimal
}

// AdminDashboard gathers totals, per status order figures and the latest
// doctor approved prescriptions
func AdminDashboard(ctx context.Context, db *gorm.DB) (*Dashboard, error) {
	db = db.WithContext(ctx)
	out := &Dashboard{ByStatus: map[domain.OrderStatus]StatusFigures{}}

	counts := []struct {
		dest  *int64
		query *gorm.DB
	}{
		{&out.Medicines, db.Model(&domain.Medicine{})},
		{&out.Orders, db.Model(&domain.Order{})},
		{&out.Users, db.Model(&domain.User{}).Where("is_admin = ?", false)},
		{&out.Prescriptions, db.Model(&domain.Prescription{})},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dest).Error; err != nil {
			return nil, fmt.Errorf("failed to count: %w", err)
		}
	}

	for _, st := range domain.OrderStatuses() {
		out.ByStatus[st] = StatusFigures{Sales: decimal.Zero}
	}
	var rows []statusRow
	err := db.Model(&domain.Order{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(total), 0) AS sales").
		Group("status").Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate orders: %w", err)
	}
	for _, r := range rows {
		st, ok := domain.ParseOrderStatus(r.Status)
		if !ok {
			continue
		}
		out.ByStatus[st] = StatusFigures{Count: r.Count, Sales: r.Sales}
	}

	out.Recent = []domain.Prescription{}
	err = db.Preload("User").Preload("Doctor").
		Where("status = ?", string(domain.PrescriptionDoctorApproved)).
		Order("submitted_at desc").Limit(5).Find(&out.Recent).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load recent prescriptions: %w", err)
	}
	return out, nil
}
