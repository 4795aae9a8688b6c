// Package jobs holds scheduled background work.
package jobs

import (
	"context"
	"fmt"
	"time"

	"pharmacy_system/internal/domain"
	"pharmacy_system/internal/notify"

	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// LowStockReport mails the admin the medicines at or below a stock threshold
type LowStockReport struct {
	DB         *gorm.DB
	Notifier   notify.Dispatcher
	AdminEmail string
	Threshold  int
}

// Run sends one report. Nothing is sent when every medicine is above the
// threshold. It returns the number of medicines reported.
func (r *LowStockReport) Run(ctx context.Context) (int, error) {
	var meds []domain.Medicine
	err := r.DB.WithContext(ctx).Where("stock <= ?", r.Threshold).
		Order("stock asc, name asc").Find(&meds).Error
	if err != nil {
		return 0, fmt.Errorf("failed to query low stock: %w", err)
	}
	if len(meds) == 0 {
		return 0, nil
	}
	lines := make([]string, 0, len(meds))
	for _, m := range meds {
		lines = append(lines, fmt.Sprintf("#%d %s (%s): %d left", m.ID, m.Name, m.MedicineName, m.Stock))
	}
	if err := r.Notifier.Dispatch(ctx, notify.LowStock(r.AdminEmail, r.Threshold, lines)); err != nil {
		return 0, fmt.Errorf("failed to queue low stock report: %w", err)
	}
	return len(meds), nil
}

// Start schedules the report daily at the given UTC time of day (HH:MM)
func (r *LowStockReport) Start(at string) (*gocron.Scheduler, error) {
	scheduler := gocron.NewScheduler(time.UTC)
	_, err := scheduler.Every(1).Day().At(at).Do(func() {
		n, err := r.Run(context.Background())
		if err != nil {
			logrus.WithError(err).Error("Low stock report failed")
			return
		}
		logrus.WithField("medicines", n).Info("Low stock report done")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule low stock report at %q: %w", at, err)
	}
	scheduler.StartAsync()
	logrus.WithField("at", at).Info("Low stock report scheduled")
	return scheduler, nil
}
