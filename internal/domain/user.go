package domain

import "time"

// User Model
type User struct {
	ID         uint       `gorm:"primaryKey" json:"id"`                  // Primary key
	Email      string     `gorm:"size:120;unique;not null" json:"email"` // Unique login email
	Phone      string     `gorm:"size:20;unique;not null" json:"phone"`  // Unique phone number
	Password   string     `gorm:"size:200;not null" json:"-"`            // Hashed password
	IsAdmin    bool       `gorm:"default:false" json:"is_admin"`         // Back office access
	IsDoctor   bool       `gorm:"default:false" json:"is_doctor"`        // Prescription review access
	IsVerified bool       `gorm:"default:false" json:"is_verified"`      // Email verified through OTP
	OTP        *string    `gorm:"column:otp;size:6" json:"-"`            // Registration / reset OTP
	OTPExpiry  *time.Time `gorm:"column:otp_expiry" json:"-"`            // Registration / reset OTP expiry
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`      // Registration timestamp
}

// Role returns the highest role of the user
func (u User) Role() string {
	switch {
	case u.IsAdmin:
		return "admin"
	case u.IsDoctor:
		return "doctor"
	default:
		return "user"
	}
}
