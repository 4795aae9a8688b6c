package api

import (
	"bytes"    // Export buffers
	"net/http" // HTTP status codes
	"strings"  // String manipulation
	"time"     // Time durations

	"pharmacy_system/internal/domain"   // Importing domain models
	"pharmacy_system/internal/report"   // Dashboard and exports
	"pharmacy_system/internal/utils"    // Utility functions
	"pharmacy_system/internal/workflow" // Order and prescription workflows

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
	"gorm.io/gorm"                 // GORM ORM library
)

// StatusRequest asks for a status change
type StatusRequest struct {
	Status string `json:"status" binding:"required"` // Target status name
}

// OTPRequest carries a delivery OTP read out by the customer
type OTPRequest struct {
	OTP string `json:"otp" binding:"required"` // Six digit code
}

// ReviewRequest is the admin decision on a doctor approved prescription
type ReviewRequest struct {
	Action string `json:"action" binding:"required,oneof=approve reject"` // approve or reject
}

// PrescriptionRecordRequest records a doctor's prescription on a patient's behalf
type PrescriptionRecordRequest struct {
	PatientID uint   `json:"patient_id" binding:"required"` // Customer account
	DoctorID  uint   `json:"doctor_id" binding:"required"`  // Prescribing doctor
	Medicine  string `json:"medicine" binding:"required"`   // Prescribed medicine
	Dosage    string `json:"dosage"`                        // Prescribed dosage
	Notes     string `json:"notes"`                         // Doctor notes
	Disease   string `json:"disease"`                       // Diagnosis
	Address   string `json:"address"`                       // Delivery address
	Date      string `json:"date"`                          // YYYY-MM-DD, today when empty
}

// UserAdminResponse represents the user data returned to admin
type UserAdminResponse struct {
	ID         uint      `json:"id"`          // User ID
	Email      string    `json:"email"`       // Email
	Phone      string    `json:"phone"`       // Phone number
	Role       string    `json:"role"`        // User role
	IsVerified bool      `json:"is_verified"` // Email verified
	CreatedAt  time.Time `json:"created_at"`  // Registration time
}

// userPage is the cached shape of a user listing
type userPage struct {
	Users      []UserAdminResponse `json:"users"`       // List of users
	Page       int                 `json:"page"`        // Current page
	PageSize   int                 `json:"page_size"`   // Page size
	Total      int64               `json:"total"`       // Total number of users
	TotalPages int                 `json:"total_pages"` // Total pages
	Cached     bool                `json:"cached"`      // Served from cache
}

// ListUsersHandler returns customers (role=user, default) or doctors (role=doctor)
func ListUsersHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()             // Request context for Redis
		role := c.DefaultQuery("role", "user") // Which accounts to list
		if role != "user" && role != "doctor" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "role must be user or doctor"})
			return
		}
		page, pageSize := pageParams(c) // Pagination
		// Create a cache key based on the filters
		cacheKey := utils.UsersPrefix + "role=" + role + ":page=" + c.DefaultQuery("page", "1") + ":size=" + c.DefaultQuery("page_size", "20")
		var cached userPage
		// If cached data found, return it
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &cached); err == nil && found {
			cached.Cached = true // Indicate response is from cache
			c.JSON(http.StatusOK, cached)
			return
		}
		query := db.Model(&domain.User{}).Where("is_admin = ?", false) // Never list admins
		if role == "doctor" {
			query = query.Where("is_doctor = ?", true) // Doctors only
		} else {
			query = query.Where("is_doctor = ?", false) // Customers only
		}
		var total int64 // Total user count
		if err := query.Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count users"}) // Return on error
			return
		}
		var users []domain.User // Slice to hold users
		if err := query.Order("id asc").Offset((page - 1) * pageSize).Limit(pageSize).Find(&users).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"}) // Return on error
			return
		}
		resp := userPage{
			Users:      make([]UserAdminResponse, len(users)), // List of users
			Page:       page,                                  // Current page
			PageSize:   pageSize,                              // Page size
			Total:      total,                                 // Total number of users
			TotalPages: totalPages(total, pageSize),           // Total pages
		}
		// Map users to response format
		for i, u := range users {
			resp.Users[i] = UserAdminResponse{
				ID:         u.ID,         // User ID
				Email:      u.Email,      // Email
				Phone:      u.Phone,      // Phone number
				Role:       u.Role(),     // User role
				IsVerified: u.IsVerified, // Email verified
				CreatedAt:  u.CreatedAt,  // Registration time
			}
		}
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, 60*time.Second) // Cache the response
		c.JSON(http.StatusOK, resp)                                  // Return the response
	}
}

// DashboardHandler returns totals, order figures per status and recent approvals
func DashboardHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		dash, err := report.AdminDashboard(c.Request.Context(), db)
		if err != nil {
			respondError(c, err, "dashboard", nil)
			return
		}
		c.JSON(http.StatusOK, dash)
	}
}

// ListOrdersHandler returns orders newest first, with optional filtering by status, user or date
func ListOrdersHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, pageSize := pageParams(c)    // Pagination
		query := db.Model(&domain.Order{}) // Start building the query
		if status := c.Query("status"); status != "" {
			st, ok := domain.ParseOrderStatus(status)
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
				return
			}
			query = query.Where("status = ?", string(st)) // Filter by status
		}
		if userID := c.Query("user_id"); userID != "" {
			query = query.Where("user_id = ?", userID) // Filter by customer
		}
		if from := c.Query("from"); from != "" {
			query = query.Where("ordered_at >= ?", from) // Filter by start date
		}
		if to := c.Query("to"); to != "" {
			query = query.Where("ordered_at <= ?", to) // Filter by end date
		}
		var total int64 // Total order count
		if err := query.Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count orders"})
			return
		}
		orders := []domain.Order{} // Slice to hold orders
		if err := query.Preload("User").Preload("Medicine").
			Order("ordered_at desc").Offset((page - 1) * pageSize).Limit(pageSize).
			Find(&orders).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch orders"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"orders":      orders,                      // List of orders
			"page":        page,                        // Current page
			"page_size":   pageSize,                    // Page size
			"total":       total,                       // Total number of orders
			"total_pages": totalPages(total, pageSize), // Total pages
		})
	}
}

// UpdateOrderStatusHandler moves an order; Delivered issues a delivery OTP instead
func UpdateOrderStatusHandler(wf *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id") // Order ID
		if !ok {
			return
		}
		var req StatusRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		upd, err := wf.UpdateOrderStatus(c.Request.Context(), id, req.Status)
		if err != nil {
			respondError(c, err, "order", logrus.Fields{"order_id": id})
			return
		}
		if upd.OTPIssued {
			c.JSON(http.StatusAccepted, gin.H{"message": "OTP sent to customer's email for delivery confirmation.", "order": upd.Order})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Order status updated to " + string(upd.Order.Status), "order": upd.Order})
	}
}

// ConfirmOrderOTPHandler confirms delivery of an order
func ConfirmOrderOTPHandler(wf *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id") // Order ID
		if !ok {
			return
		}
		var req OTPRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Please provide the OTP"})
			return
		}
		order, err := wf.ConfirmOrderDelivery(c.Request.Context(), id, strings.TrimSpace(req.OTP))
		if err != nil {
			respondError(c, err, "order", logrus.Fields{"order_id": id})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Order delivered successfully! OTP verified.", "order": order})
	}
}

// ListPrescriptionsHandler returns every prescription, newest first
func ListPrescriptionsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		list := []domain.Prescription{}
		if err := db.Preload("User").Preload("Doctor").Preload("Admin").
			Order("submitted_at desc").Find(&list).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch prescriptions"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"prescriptions": list})
	}
}

// CreatePrescriptionHandler records a doctor approved prescription for a patient
func CreatePrescriptionHandler(wf *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		admin, ok := currentUser(c) // Set by the admin middleware
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var req PrescriptionRecordRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "patient_id, doctor_id and medicine are required"})
			return
		}
		in := workflow.ManualPrescription{
			PatientID: req.PatientID, // Customer account
			DoctorID:  req.DoctorID,  // Prescribing doctor
			Medicine:  req.Medicine,  // Prescribed medicine
			Dosage:    req.Dosage,    // Prescribed dosage
			Notes:     req.Notes,     // Doctor notes
			Disease:   req.Disease,   // Diagnosis
			Address:   req.Address,   // Delivery address
		}
		if req.Date != "" {
			day, err := time.Parse("2006-01-02", req.Date) // Submission day
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
				return
			}
			in.Date = &day
		}
		p, err := wf.AdminCreatePrescription(c.Request.Context(), admin.ID, in)
		if err != nil {
			respondError(c, err, "prescription", logrus.Fields{"admin_id": admin.ID, "patient_id": req.PatientID})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "Prescription added!", "prescription": p})
	}
}

// PrescriptionQueueHandler lists prescriptions awaiting the admin decision
func PrescriptionQueueHandler(wf *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := wf.AdminQueue(c.Request.Context())
		if err != nil {
			respondError(c, err, "prescription", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"prescriptions": list})
	}
}

// ReviewPrescriptionHandler approves or rejects a doctor approved prescription
func ReviewPrescriptionHandler(wf *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		admin, ok := currentUser(c) // Set by the admin middleware
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		id, ok := idParam(c, "id") // Prescription ID
		if !ok {
			return
		}
		var req ReviewRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "action must be approve or reject"})
			return
		}
		approve := req.Action == "approve"
		p, err := wf.AdminReview(c.Request.Context(), admin.ID, id, approve)
		if err != nil {
			respondError(c, err, "prescription", logrus.Fields{"prescription_id": id, "admin_id": admin.ID})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Prescription " + strings.ToLower(string(p.Status)) + " and user notified.", "prescription": p})
	}
}

// UpdatePrescriptionStatusHandler is the admin status endpoint; Delivered issues an OTP
func UpdatePrescriptionStatusHandler(wf *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		admin, ok := currentUser(c) // Set by the admin middleware
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		id, ok := idParam(c, "id") // Prescription ID
		if !ok {
			return
		}
		var req StatusRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		upd, err := wf.UpdatePrescriptionStatus(c.Request.Context(), admin.ID, id, req.Status)
		if err != nil {
			respondError(c, err, "prescription", logrus.Fields{"prescription_id": id, "admin_id": admin.ID})
			return
		}
		if upd.OTPIssued {
			c.JSON(http.StatusAccepted, gin.H{"message": "OTP sent to patient's email for delivery confirmation.", "prescription": upd.Prescription})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Prescription status updated to " + string(upd.Prescription.Status), "prescription": upd.Prescription})
	}
}

// ConfirmPrescriptionOTPHandler confirms delivery of prescription medicines
func ConfirmPrescriptionOTPHandler(wf *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id") // Prescription ID
		if !ok {
			return
		}
		var req OTPRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Please provide the OTP"})
			return
		}
		p, err := wf.ConfirmPrescriptionDelivery(c.Request.Context(), id, strings.TrimSpace(req.OTP))
		if err != nil {
			respondError(c, err, "prescription", logrus.Fields{"prescription_id": id})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Prescription delivered successfully! OTP verified.", "prescription": p})
	}
}

// ExportPrescriptionsHandler downloads the prescription register as XLSX
func ExportPrescriptionsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var list []domain.Prescription
		if err := db.Preload("User").Preload("Doctor").Order("submitted_at desc").Find(&list).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch prescriptions"})
			return
		}
		var buf bytes.Buffer // Build in memory so failures still yield JSON
		if err := report.PrescriptionsXLSX(&buf, list); err != nil {
			respondError(c, err, "prescription", nil)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="prescriptions.xlsx"`)
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
	}
}
