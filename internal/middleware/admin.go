package middleware

import (
	"net/http" // HTTP status codes

	"pharmacy_system/internal/domain" // Importing domain models

	"github.com/gin-gonic/gin" // Gin web framework
	"gorm.io/gorm"             // GORM ORM library
)

// RequireRole checks the user's role from the database on each request and
// stores the loaded user in the context under "user"
func RequireRole(db *gorm.DB, allowed func(domain.User) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID") // Get userID from context
		// Check if userID exists in context
		if !exists {
			// If not, abort with unauthorized status
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var user domain.User // Fetch user from database
		if err := db.WithContext(c.Request.Context()).First(&user, userID).Error; err != nil {
			// If user not found or any error, abort with unauthorized status
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		// Check the role
		if !allowed(user) {
			// If not allowed, abort with forbidden status
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			return
		}
		c.Set("user", user) // Loaded user for handlers
		c.Next()            // Proceed to the next handler
	}
}

// AdminOnlyMiddleware lets only admins through
func AdminOnlyMiddleware(db *gorm.DB) gin.HandlerFunc {
	return RequireRole(db, func(u domain.User) bool { return u.IsAdmin })
}

// DoctorOnlyMiddleware lets only doctors through
func DoctorOnlyMiddleware(db *gorm.DB) gin.HandlerFunc {
	return RequireRole(db, func(u domain.User) bool { return u.IsDoctor })
}

// CustomerMiddleware loads any signed in user
func CustomerMiddleware(db *gorm.DB) gin.HandlerFunc {
	return RequireRole(db, func(domain.User) bool { return true })
}
