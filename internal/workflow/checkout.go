package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"pharmacy_system/internal/domain"
	"pharmacy_system/internal/notify"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CheckoutInput carries the delivery details of a checkout
type CheckoutInput struct {
	UserID  uint
	Address string
	// Attach stores the optional prescription file and returns its key. It
	// runs only after the cart and address have been validated.
	Attach func(ctx context.Context) (string, error)
}

// CheckoutResult lists what the cart turned into
type CheckoutResult struct {
	Orders       []domain.Order  `json:"orders"`
	Skipped      []uint          `json:"skipped_medicine_ids"`
	GrandTotal   decimal.Decimal `json:"grand_total"`
	Prescription string          `json:"prescription,omitempty"`
}

// Checkout turns every satisfiable cart line into a Pending order in one
// transaction. Lines for unknown medicines, non-positive quantities or
// insufficient stock are skipped. The cart is cleared afterwards even when
// nothing was ordered.
func (s *Service) Checkout(ctx context.Context, in CheckoutInput) (*CheckoutResult, error) {
	items, err := s.carts.Items(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrCartEmpty
	}
	address := strings.TrimSpace(in.Address)
	if address == "" {
		return nil, ErrAddressRequired
	}
	var user domain.User
	if err := s.db.WithContext(ctx).First(&user, in.UserID).Error; err != nil {
		return nil, notFound(err, "user", in.UserID)
	}

	result := &CheckoutResult{Orders: []domain.Order{}, Skipped: []uint{}, GrandTotal: decimal.Zero}
	if in.Attach != nil {
		key, err := in.Attach(ctx)
		if err != nil {
			return nil, err
		}
		result.Prescription = key
	}

	ids := make([]uint, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var summary []string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, id := range ids {
			qty := items[id]
			order, line, err := s.placeLine(tx, user.ID, id, qty, address, result.Prescription)
			if err != nil {
				return err // Rollback every line
			}
			if order == nil {
				result.Skipped = append(result.Skipped, id)
				continue
			}
			result.Orders = append(result.Orders, *order)
			result.GrandTotal = result.GrandTotal.Add(order.Total)
			summary = append(summary, line)
		}
		return nil
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"user_id": user.ID,
			"error":   err.Error(),
		}).Error("Checkout failed")
		return nil, fmt.Errorf("checkout failed: %w", err)
	}

	for range result.Orders {
		s.opts.Metrics.CheckoutLine("ordered")
	}
	for range result.Skipped {
		s.opts.Metrics.CheckoutLine("skipped")
	}
	if err := s.carts.Clear(ctx, user.ID); err != nil {
		logrus.WithFields(logrus.Fields{
			"user_id": user.ID,
			"error":   err.Error(),
		}).Error("Failed to clear cart after checkout")
	}
	logrus.WithFields(logrus.Fields{
		"user_id":     user.ID,
		"orders":      len(result.Orders),
		"skipped":     result.Skipped,
		"grand_total": result.GrandTotal.StringFixed(2),
	}).Info("Checkout completed")

	if len(result.Orders) > 0 && s.opts.AdminEmail != "" {
		body := fmt.Sprintf("Address: %s\nGrand Total: %s\nItems:\n%s",
			address, result.GrandTotal.StringFixed(2), strings.Join(summary, "\n"))
		if result.Prescription != "" {
			body += "\nPrescription: " + result.Prescription
		}
		s.enqueue(ctx, notify.NewOrder(s.opts.AdminEmail, user.Email, body), logrus.Fields{"user_id": user.ID})
	}
	return result, nil
}

// placeLine materializes one cart line. A nil order with a nil error means
// the line was skipped.
func (s *Service) placeLine(tx *gorm.DB, userID, medicineID uint, qty int, address, prescription string) (*domain.Order, string, error) {
	if qty <= 0 {
		return nil, "", nil
	}
	var med domain.Medicine
	if err := tx.First(&med, medicineID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("failed to load medicine %d: %w", medicineID, err)
	}
	if med.Stock < qty {
		return nil, "", nil
	}

	// Conditional decrement; a concurrent checkout that drained the stock
	// leaves zero rows affected and the line is skipped.
	res := tx.Model(&domain.Medicine{}).
		Where("id = ? AND stock >= ?", med.ID, qty).
		Update("stock", gorm.Expr("CASE WHEN stock >= ? THEN stock - ? ELSE 0 END", qty, qty))
	if res.Error != nil {
		return nil, "", fmt.Errorf("failed to reserve stock of medicine %d: %w", med.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, "", nil
	}

	total := domain.LineTotal(med.Price, med.Discount, qty)
	order := domain.Order{
		UserID:       userID,
		MedicineID:   med.ID,
		Quantity:     qty,
		Status:       domain.OrderPending,
		OrderedAt:    s.now(),
		Address:      address,
		Prescription: prescription,
		Total:        total,
	}
	if err := tx.Create(&order).Error; err != nil {
		return nil, "", fmt.Errorf("failed to create order for medicine %d: %w", med.ID, err)
	}
	med.Stock -= qty
	order.Medicine = &med

	original := med.Price.Mul(decimal.NewFromInt(int64(qty)))
	line := fmt.Sprintf("%s x%d - %s (Original: %s, Discount: %d%%)",
		med.Name, qty, total.StringFixed(2), original.StringFixed(2), med.Discount)
	return &order, line, nil
}
