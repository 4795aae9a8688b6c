package domain

import "github.com/shopspring/decimal"

// Medicine Model
type Medicine struct {
	ID           uint            `gorm:"primaryKey" json:"id"`                          // Primary key
	MedicineName string          `gorm:"size:100;not null" json:"medicine_name"`        // Generic name
	Name         string          `gorm:"size:100;not null;index" json:"name"`           // Brand name
	Type         string          `gorm:"size:50;not null" json:"type"`                  // Tablet, syrup, ...
	AgeGroup     string          `gorm:"size:50;not null" json:"age_group"`             // Target age group
	Category     string          `gorm:"size:50;not null;index" json:"category"`        // Catalog category
	Price        decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`      // Unit price
	Discount     int             `gorm:"not null;default:0" json:"discount"`            // Discount percentage
	Stock        int             `gorm:"not null;default:0" json:"stock"`               // Units in stock
	Image        string          `gorm:"size:200" json:"image"`                         // Image object key
	Description  string          `gorm:"type:text" json:"description"`                  // Free text description
}

// DiscountedPrice is price × (1 − discount/100)
func (m Medicine) DiscountedPrice() decimal.Decimal {
	return DiscountedPrice(m.Price, m.Discount)
}

// DiscountedPrice applies an integer percentage discount to a price
func DiscountedPrice(price decimal.Decimal, discount int) decimal.Decimal {
	factor := decimal.NewFromInt(100 - int64(discount)).Div(decimal.NewFromInt(100)) // 1 - discount/100
	return price.Mul(factor)
}

// LineTotal is the discounted price multiplied by quantity
func LineTotal(price decimal.Decimal, discount, quantity int) decimal.Decimal {
	return DiscountedPrice(price, discount).Mul(decimal.NewFromInt(int64(quantity)))
}
