package api

import (
	"errors"   // Sentinel comparison
	"net/http" // HTTP status codes
	"strconv"  // String conversion
	"strings"  // String manipulation

	"pharmacy_system/internal/cart"     // Cart errors
	"pharmacy_system/internal/domain"   // Importing domain models
	"pharmacy_system/internal/otp"      // OTP errors
	"pharmacy_system/internal/storage"  // Upload errors
	"pharmacy_system/internal/workflow" // Workflow errors

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// errorResponse translates a service error into a status code and message.
// entity names the record in not found and OTP messages.
func errorResponse(err error, entity string) (int, string) {
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		return http.StatusNotFound, titleCase(entity) + " not found"
	case errors.Is(err, workflow.ErrIllegalTransition):
		var te *workflow.TransitionError
		if errors.As(err, &te) {
			return http.StatusConflict, te.Error()
		}
		return http.StatusConflict, "Illegal status transition"
	case errors.Is(err, workflow.ErrUnknownStatus):
		return http.StatusBadRequest, "Invalid status"
	case errors.Is(err, workflow.ErrCartEmpty):
		return http.StatusBadRequest, "Cart is empty!"
	case errors.Is(err, workflow.ErrAddressRequired):
		return http.StatusBadRequest, "Please provide a delivery address!"
	case errors.Is(err, workflow.ErrReasonRequired):
		return http.StatusBadRequest, "Please provide a rejection reason!"
	case errors.Is(err, workflow.ErrFileRequired):
		return http.StatusBadRequest, "Please upload a prescription file!"
	case errors.Is(err, workflow.ErrMedicineRequired):
		return http.StatusBadRequest, "Please provide the prescribed medicine!"
	case errors.Is(err, workflow.ErrInvalidParticipant):
		return http.StatusBadRequest, "Please choose a registered patient and doctor!"
	case errors.Is(err, otp.ErrNotIssued):
		return http.StatusBadRequest, "No OTP found for this " + entity + "."
	case errors.Is(err, otp.ErrExpired):
		return http.StatusBadRequest, "OTP has expired."
	case errors.Is(err, otp.ErrMismatch):
		return http.StatusBadRequest, "Invalid OTP. Please try again."
	case errors.Is(err, storage.ErrUnsupportedType):
		return http.StatusBadRequest, "Unsupported file type"
	case errors.Is(err, cart.ErrInvalidQuantity):
		return http.StatusBadRequest, "Quantity must be positive"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// respondError writes the translated error; internal failures are logged
func respondError(c *gin.Context, err error, entity string, fields logrus.Fields) {
	status, msg := errorResponse(err, entity)
	if status == http.StatusInternalServerError {
		if fields == nil {
			fields = logrus.Fields{}
		}
		fields["path"] = c.FullPath() // Route template
		fields["error"] = err.Error() // Error message
		logrus.WithFields(fields).Error("Request failed")
	}
	c.JSON(status, gin.H{"error": msg})
}

// currentUserID reads the id stored by the JWT middleware
func currentUserID(c *gin.Context) (uint, bool) {
	v, exists := c.Get("userID") // Get userID from context
	if !exists {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

// currentUser reads the user loaded by the role middleware
func currentUser(c *gin.Context) (domain.User, bool) {
	v, exists := c.Get("user") // Get user from context
	if !exists {
		return domain.User{}, false
	}
	u, ok := v.(domain.User)
	return u, ok
}

// idParam parses a positive numeric path parameter
func idParam(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return uint(v), true
}

// pageParams reads page and page_size with the usual bounds
func pageParams(c *gin.Context) (page, pageSize int) {
	page = 1      // Default page number
	pageSize = 20 // Default page size
	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v // Set page if valid
		}
	}
	// Check and set page size within limits
	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v // Set page size
		}
	}
	return page, pageSize
}

// totalPages rounds up
func totalPages(total int64, pageSize int) int {
	return (int(total) + pageSize - 1) / pageSize
}

func titleCase(s string) string {
	if s == "" {
		return "Record"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
