package api

import (
	"context"        // Context for storage
	"errors"         // Sentinel comparison
	"mime/multipart" // Uploaded files
	"net/http"       // HTTP status codes

	"pharmacy_system/internal/storage"  // Upload storage
	"pharmacy_system/internal/workflow" // Order workflows

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// saveUpload stores a multipart file under kind and returns its key
func saveUpload(ctx context.Context, store storage.Store, kind string, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open() // Open the uploaded file
	if err != nil {
		return "", err
	}
	defer f.Close()
	return store.Save(ctx, kind, fh.Filename, f, fh.Size, fh.Header.Get("Content-Type"))
}

// optionalFile returns the named upload, or nil when none was sent
func optionalFile(c *gin.Context, field string) (*multipart.FileHeader, error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil // No file is fine
	}
	return fh, err
}

// CheckoutHandler turns the cart into orders. Form fields: address, and an
// optional prescription file.
func CheckoutHandler(wf *workflow.Service, store storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c) // Get userID from context
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		fh, err := optionalFile(c, "prescription") // Optional prescription
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid prescription upload"})
			return
		}
		in := workflow.CheckoutInput{
			UserID:  userID,                // Customer
			Address: c.PostForm("address"), // Delivery address
		}
		if fh != nil {
			// Stored only once the cart and address are known to be valid
			in.Attach = func(ctx context.Context) (string, error) {
				return saveUpload(ctx, store, "prescriptions", fh)
			}
		}
		result, err := wf.Checkout(c.Request.Context(), in) // Materialize the cart
		if err != nil {
			respondError(c, err, "order", logrus.Fields{"user_id": userID})
			return
		}
		ids := make([]uint, len(result.Orders)) // Placed order IDs
		for i, o := range result.Orders {
			ids[i] = o.ID
		}
		msg := "Your order(s) have been placed successfully!"
		if len(ids) == 0 {
			msg = "None of the items in your cart could be ordered."
		}
		c.JSON(http.StatusCreated, gin.H{
			"message":              msg,                 // Summary
			"order_ids":            ids,                 // Placed order IDs
			"orders":               result.Orders,       // Placed orders
			"skipped_medicine_ids": result.Skipped,      // Lines that could not be ordered
			"grand_total":          result.GrandTotal,   // Sum of order totals
			"prescription":         result.Prescription, // Stored prescription key
		})
	}
}

// MyOrdersHandler returns the caller's orders and prescriptions, newest first
func MyOrdersHandler(wf *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c) // Get userID from context
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		orders, prescriptions, err := wf.CustomerHistory(c.Request.Context(), userID)
		if err != nil {
			respondError(c, err, "order", logrus.Fields{"user_id": userID})
			return
		}
		c.JSON(http.StatusOK, gin.H{"orders": orders, "prescriptions": prescriptions})
	}
}

// UploadPrescriptionHandler stores a prescription for doctor review. Form
// fields: prescription (file), disease, symptoms, prescription_details, address.
func UploadPrescriptionHandler(wf *workflow.Service, store storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c) // Get userID from context
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		fh, err := optionalFile(c, "prescription") // Required in practice
		if err != nil || fh == nil {
			respondError(c, workflow.ErrFileRequired, "prescription", nil)
			return
		}
		key, err := saveUpload(c.Request.Context(), store, "prescriptions", fh) // Store the file
		if err != nil {
			respondError(c, err, "prescription", logrus.Fields{"user_id": userID})
			return
		}
		p, err := wf.SubmitPrescription(c.Request.Context(), userID, workflow.PrescriptionInput{
			FilePath: key,                                // Stored file key
			Disease:  c.PostForm("disease"),              // Reported disease
			Symptoms: c.PostForm("symptoms"),             // Reported symptoms
			Details:  c.PostForm("prescription_details"), // Free text
			Address:  c.PostForm("address"),              // Delivery address
		})
		if err != nil {
			respondError(c, err, "prescription", logrus.Fields{"user_id": userID})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "Prescription uploaded successfully!", "prescription": p})
	}
}
