package domain

import "time"

// Offer Model, display only
type Offer struct {
	ID          uint      `gorm:"primaryKey" json:"id"`                  // Primary key
	Title       string    `gorm:"size:200;not null" json:"title"`        // Headline
	Description string    `gorm:"type:text;not null" json:"description"` // Body text
	Discount    int       `gorm:"not null" json:"discount"`              // Advertised percentage
	ValidUntil  time.Time `gorm:"not null" json:"valid_until"`           // Last day of validity
}
