package api

import (
	"errors"   // Sentinel comparison
	"io"       // Empty bodies
	"net/http" // HTTP status codes
	"time"     // Date filter

	"pharmacy_system/internal/workflow" // Prescription workflow

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// DoctorApproveRequest carries the doctor's notes; every field is optional
type DoctorApproveRequest struct {
	Notes    string `json:"notes"`    // Doctor notes
	Medicine string `json:"medicine"` // Prescribed medicine
	Dosage   string `json:"dosage"`   // Prescribed dosage
}

// DoctorRejectRequest carries the reason sent to the patient
type DoctorRejectRequest struct {
	Reason string `json:"reason"` // Rejection reason
}

// DoctorDashboardHandler lists prescriptions with optional search, status and date filters
func DoctorDashboardHandler(wf *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := workflow.DashboardFilter{
			Search: c.Query("search"),               // Patient email substring
			Status: c.DefaultQuery("status", "all"), // Status filter
		}
		if d := c.Query("date"); d != "" {
			day, err := time.Parse("2006-01-02", d) // Submission day
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Date must be YYYY-MM-DD"})
				return
			}
			filter.Date = &day
		}
		dash, err := wf.Dashboard(c.Request.Context(), filter)
		if err != nil {
			respondError(c, err, "prescription", nil)
			return
		}
		c.JSON(http.StatusOK, dash)
	}
}

// DoctorApproveHandler moves a pending prescription to Doctor Approved
func DoctorApproveHandler(wf *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		doctor, ok := currentUser(c) // Set by the doctor middleware
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		id, ok := idParam(c, "id") // Prescription ID
		if !ok {
			return
		}
		var req DoctorApproveRequest // Body is optional
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		p, err := wf.DoctorApprove(c.Request.Context(), doctor.ID, id, req.Notes, req.Medicine, req.Dosage)
		if err != nil {
			respondError(c, err, "prescription", logrus.Fields{"prescription_id": id, "doctor_id": doctor.ID})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Prescription approved successfully!", "prescription": p})
	}
}

// DoctorRejectHandler rejects a pending prescription and emails the patient
func DoctorRejectHandler(wf *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		doctor, ok := currentUser(c) // Set by the doctor middleware
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		id, ok := idParam(c, "id") // Prescription ID
		if !ok {
			return
		}
		var req DoctorRejectRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		p, err := wf.DoctorReject(c.Request.Context(), doctor.ID, id, req.Reason)
		if err != nil {
			respondError(c, err, "prescription", logrus.Fields{"prescription_id": id, "doctor_id": doctor.ID})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Prescription rejected and email sent to user.", "prescription": p})
	}
}
