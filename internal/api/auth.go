package api

import (
	"errors"   // Sentinel comparison
	"net/http" // HTTP status codes
	"strconv"  // Reset token owner
	"strings"  // String manipulation
	"time"     // Time for OTP expiry

	"pharmacy_system/internal/domain" // Importing domain models
	"pharmacy_system/internal/notify" // Email builders
	"pharmacy_system/internal/otp"    // One-time codes
	"pharmacy_system/internal/utils"  // Utility functions

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/google/uuid"       // Reset token IDs
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
	"golang.org/x/crypto/bcrypt"   // Password hashing
	"gorm.io/gorm"                 // GORM ORM library
)

// ResetTokenTTL is the lifetime of the token returned by VerifyResetHandler
const ResetTokenTTL = 15 * time.Minute

// Request and Response structs
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`    // Login email
	Phone    string `json:"phone" binding:"required"`          // Phone number
	Password string `json:"password" binding:"required,min=8"` // Password, at least 8 characters
}

// Request struct for OTP verification
type VerifyOTPRequest struct {
	Email string `json:"email" binding:"required,email"` // Account email
	OTP   string `json:"otp" binding:"required"`         // Six digit code
}

// Request struct for login
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`    // Email must be provided
	Password string `json:"password" binding:"required"` // Password must be provided
}

// Request struct for forgot password
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"` // Account email
}

// Request struct for password reset
type ResetPasswordRequest struct {
	Password string `json:"password" binding:"required,min=8"` // New password
}

// Response struct for authentication
type AuthResponse struct {
	Token string `json:"token"` // JWT token
	Role  string `json:"role"`  // admin, doctor or user
}

// normalizeEmail lowercases and trims an email address
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RegisterHandler creates an unverified account and mails the verification OTP.
// The account is removed again when the email cannot be sent.
func RegisterHandler(db *gorm.DB, rdb *redis.Client, mailer notify.Sender, otpTTL time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			// If binding fails, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		email := normalizeEmail(req.Email)    // Canonical email
		phone := strings.TrimSpace(req.Phone) // Canonical phone
		var count int64
		// Check email uniqueness
		if err := db.Model(&domain.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			respondError(c, err, "user", logrus.Fields{"email": email})
			return
		} else if count > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already registered!"})
			return
		}
		// Check phone uniqueness
		if err := db.Model(&domain.User{}).Where("phone = ?", phone).Count(&count).Error; err != nil {
			respondError(c, err, "user", logrus.Fields{"email": email})
			return
		} else if count > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "Phone number already used!"})
			return
		}
		// Hash the password
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			// If hashing fails, return internal server error
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
			return
		}
		code, err := otp.Issue(time.Now(), otpTTL) // Registration OTP
		if err != nil {
			respondError(c, err, "user", logrus.Fields{"email": email})
			return
		}
		user := domain.User{
			Email:     email,           // Login email
			Phone:     phone,           // Phone number
			Password:  string(hash),    // Hashed password
			OTP:       &code.Value,     // Pending verification code
			OTPExpiry: &code.ExpiresAt, // Code expiry
		}
		// Attempt to create the user in the database
		if err := db.Create(&user).Error; err != nil {
			// A concurrent registration won the unique index
			c.JSON(http.StatusConflict, gin.H{"error": "Email already registered!"})
			return
		}
		// Send the OTP synchronously; registration fails without it
		if err := mailer.Send(c.Request.Context(), notify.RegistrationOTP(email, code.Value)); err != nil {
			db.Unscoped().Delete(&user) // Roll back the registration
			logrus.WithFields(logrus.Fields{
				"email": email,       // Account email
				"error": err.Error(), // Error message
			}).Error("Registration OTP email failed")
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to send OTP email. Please try again."})
			return
		}
		invalidateUsers(c, rdb)                                      // Drop cached user listings
		logrus.WithField("user_id", user.ID).Info("User registered") // Log registration
		// Return success response
		c.JSON(http.StatusCreated, gin.H{"message": "OTP sent to your email. Please verify your account."})
	}
}

// checkUserOTP loads the user and verifies an account OTP
func checkUserOTP(db *gorm.DB, email, code string) (*domain.User, error) {
	var user domain.User
	if err := db.Where("email = ?", normalizeEmail(email)).First(&user).Error; err != nil {
		return nil, err
	}
	if err := otp.Verify(user.OTP, user.OTPExpiry, strings.TrimSpace(code), time.Now()); err != nil {
		return nil, err
	}
	return &user, nil
}

// clearUserOTP nulls the account OTP columns, optionally with extra updates
func clearUserOTP(db *gorm.DB, userID uint, extra map[string]any) error {
	updates := map[string]any{"otp": nil, "otp_expiry": nil}
	for k, v := range extra {
		updates[k] = v
	}
	return db.Model(&domain.User{}).Where("id = ?", userID).Updates(updates).Error
}

// VerifyRegistrationHandler marks the account verified when the OTP matches
func VerifyRegistrationHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req VerifyOTPRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		user, err := checkUserOTP(db, req.Email, req.OTP)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired OTP."})
			return
		}
		if err := clearUserOTP(db, user.ID, map[string]any{"is_verified": true}); err != nil {
			respondError(c, err, "user", logrus.Fields{"user_id": user.ID})
			return
		}
		invalidateUsers(c, rdb)                                    // Drop cached user listings
		logrus.WithField("user_id", user.ID).Info("User verified") // Log verification
		c.JSON(http.StatusOK, gin.H{"message": "Account verified! You can now log in."})
	}
}

// LoginHandler authenticates a verified user and returns a JWT token
func LoginHandler(db *gorm.DB, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			// If binding fails, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		var user domain.User // Fetch user from database
		if err := db.Where("email = ?", normalizeEmail(req.Email)).First(&user).Error; err != nil {
			// If user not found, return unauthorized
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		// Compare provided password with stored hash
		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		// Unverified accounts cannot sign in
		if !user.IsVerified {
			c.JSON(http.StatusForbidden, gin.H{"error": "Please verify your email before logging in."})
			return
		}
		// Generate JWT token
		token, err := utils.GenerateJWT(user.ID, jwtSecret)
		if err != nil {
			// If token generation fails, return internal server error
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
			return
		}
		// Return the token in the response
		c.JSON(http.StatusOK, AuthResponse{Token: token, Role: user.Role()})
	}
}

// ForgotPasswordHandler mails a reset OTP. A failed email leaves no OTP behind.
func ForgotPasswordHandler(db *gorm.DB, mailer notify.Sender, otpTTL time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ForgotPasswordRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		var user domain.User // Fetch user from database
		if err := db.Where("email = ?", normalizeEmail(req.Email)).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Email not found!"})
				return
			}
			respondError(c, err, "user", nil)
			return
		}
		code, err := otp.Issue(time.Now(), otpTTL) // Reset OTP
		if err != nil {
			respondError(c, err, "user", logrus.Fields{"user_id": user.ID})
			return
		}
		// Store the code
		if err := db.Model(&user).Updates(map[string]any{"otp": code.Value, "otp_expiry": code.ExpiresAt}).Error; err != nil {
			respondError(c, err, "user", logrus.Fields{"user_id": user.ID})
			return
		}
		// Send the OTP synchronously
		if err := mailer.Send(c.Request.Context(), notify.PasswordResetOTP(user.Email, code.Value)); err != nil {
			// Drop the unsent code
			if cerr := clearUserOTP(db, user.ID, nil); cerr != nil {
				logrus.WithFields(logrus.Fields{
					"user_id": user.ID,      // User ID
					"error":   cerr.Error(), // Error message
				}).Error("Failed to clear unsent reset OTP")
			}
			logrus.WithFields(logrus.Fields{
				"user_id": user.ID,     // User ID
				"error":   err.Error(), // Error message
			}).Error("Password reset OTP email failed")
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to send OTP email. Please try again."})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "OTP sent to your email."})
	}
}

// VerifyResetHandler exchanges a reset OTP for a short lived, single use reset token
func VerifyResetHandler(db *gorm.DB, rdb *redis.Client, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req VerifyOTPRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		user, err := checkUserOTP(db, req.Email, req.OTP)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired OTP."})
			return
		}
		// The code is single use
		if err := clearUserOTP(db, user.ID, nil); err != nil {
			respondError(c, err, "user", logrus.Fields{"user_id": user.ID})
			return
		}
		tokenID := uuid.NewString() // Consumed by ResetPasswordHandler
		owner := strconv.FormatUint(uint64(user.ID), 10)
		if err := rdb.Set(c.Request.Context(), utils.ResetPrefix+tokenID, owner, ResetTokenTTL).Err(); err != nil {
			respondError(c, err, "user", logrus.Fields{"user_id": user.ID})
			return
		}
		token, err := utils.GeneratePurposeJWT(user.ID, utils.PurposePasswordReset, tokenID, ResetTokenTTL, jwtSecret)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"reset_token": token})
	}
}

// ResetPasswordHandler stores a new password for the holder of a reset token.
// The token ID is taken from Redis before the write, so a token resets once.
func ResetPasswordHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c) // Set by the reset token middleware
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var req ResetPasswordRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be at least 8 characters"})
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
			return
		}
		tokenID := c.GetString("resetTokenID") // Set by the reset token middleware
		owner, found, err := utils.TakeCache(c.Request.Context(), rdb, utils.ResetPrefix+tokenID)
		if err != nil {
			respondError(c, err, "user", logrus.Fields{"user_id": userID})
			return
		}
		if !found || owner != strconv.FormatUint(uint64(userID), 10) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired reset token"})
			return
		}
		if err := clearUserOTP(db, userID, map[string]any{"password": string(hash)}); err != nil {
			respondError(c, err, "user", logrus.Fields{"user_id": userID})
			return
		}
		logrus.WithField("user_id", userID).Info("Password reset") // Log reset
		c.JSON(http.StatusOK, gin.H{"message": "Password reset successful! Please log in."})
	}
}

// invalidateUsers drops cached admin user listings after an account change
func invalidateUsers(c *gin.Context, rdb *redis.Client) {
	if err := utils.DeleteCachePrefix(c.Request.Context(), rdb, utils.UsersPrefix); err != nil {
		logrus.WithError(err).Warn("Failed to invalidate user cache")
	}
}
