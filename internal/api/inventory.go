package api

import (
	"bytes"    // Export buffers
	"errors"   // Sentinel comparison
	"net/http" // HTTP status codes
	"strconv"  // String conversion
	"strings"  // String manipulation
	"time"     // Offer validity

	"pharmacy_system/internal/domain"  // Importing domain models
	"pharmacy_system/internal/report"  // CSV export
	"pharmacy_system/internal/storage" // Upload storage

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/redis/go-redis/v9"  // Redis client
	"github.com/shopspring/decimal" // Money
	"github.com/sirupsen/logrus"    // Logging library
	"gorm.io/gorm"                  // GORM ORM library
)

// MedicineRequest creates or replaces a medicine
type MedicineRequest struct {
	MedicineName string          `json:"medicine_name" binding:"required"` // Generic name
	Name         string          `json:"name" binding:"required"`          // Brand name
	Type         string          `json:"type" binding:"required"`          // Tablet, syrup, ...
	AgeGroup     string          `json:"age_group" binding:"required"`     // Target age group
	Category     string          `json:"category" binding:"required"`      // Catalog category
	Price        decimal.Decimal `json:"price"`                            // Unit price, must be positive
	Discount     int             `json:"discount" binding:"gte=0,lte=100"` // Discount percentage
	Stock        int             `json:"stock" binding:"gte=0"`            // Units in stock
	Description  string          `json:"description"`                      // Free text
	Ingredients  string          `json:"ingredients"`                      // Appended to the description
	Usage        string          `json:"usage"`                            // Appended to the description
}

// BulkDeleteRequest lists medicines to delete
type BulkDeleteRequest struct {
	IDs []uint `json:"ids" binding:"required,min=1"` // Medicine IDs
}

// OfferRequest creates or replaces an offer
type OfferRequest struct {
	Title       string `json:"title" binding:"required"`                 // Headline
	Description string `json:"description" binding:"required"`           // Body text
	Discount    int    `json:"discount" binding:"required,gt=0,lte=100"` // Advertised percentage
	ValidUntil  string `json:"valid_until" binding:"required"`           // YYYY-MM-DD
}

// apply copies the request onto a medicine
func (r MedicineRequest) apply(m *domain.Medicine) {
	desc := strings.TrimSpace(r.Description) // Combine description, ingredients and usage
	if r.Ingredients != "" {
		desc += "\n\nIngredients: " + strings.TrimSpace(r.Ingredients)
	}
	if r.Usage != "" {
		desc += "\n\nUsage: " + strings.TrimSpace(r.Usage)
	}
	m.MedicineName = strings.TrimSpace(r.MedicineName) // Generic name
	m.Name = strings.TrimSpace(r.Name)                 // Brand name
	m.Type = strings.TrimSpace(r.Type)                 // Form
	m.AgeGroup = strings.TrimSpace(r.AgeGroup)         // Age group
	m.Category = strings.TrimSpace(r.Category)         // Category
	m.Price = r.Price                                  // Unit price
	m.Discount = r.Discount                            // Discount percentage
	m.Stock = r.Stock                                  // Units in stock
	m.Description = desc                               // Full description
}

// bindMedicine binds and validates a medicine request
func bindMedicine(c *gin.Context) (MedicineRequest, bool) {
	var req MedicineRequest // Bind JSON request to struct
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return req, false
	}
	if !req.Price.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Price must be positive"})
		return req, false
	}
	return req, true
}

// CreateMedicineHandler adds a medicine to the catalog
func CreateMedicineHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := bindMedicine(c)
		if !ok {
			return
		}
		var med domain.Medicine
		req.apply(&med)
		if err := db.Create(&med).Error; err != nil {
			respondError(c, err, "medicine", logrus.Fields{"name": med.Name})
			return
		}
		invalidateCatalog(c, rdb)                                                      // Drop cached listings
		logrus.WithFields(logrus.Fields{"medicine_id": med.ID}).Info("Medicine added") // Log creation
		c.JSON(http.StatusCreated, gin.H{"message": "Medicine added!", "medicine": med})
	}
}

// UpdateMedicineHandler replaces a medicine's details
func UpdateMedicineHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id") // Medicine ID
		if !ok {
			return
		}
		req, ok := bindMedicine(c)
		if !ok {
			return
		}
		var med domain.Medicine
		if err := db.First(&med, id).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Medicine not found"})
			return
		}
		req.apply(&med)
		if err := db.Save(&med).Error; err != nil {
			respondError(c, err, "medicine", logrus.Fields{"medicine_id": id})
			return
		}
		invalidateCatalog(c, rdb) // Drop cached listings
		c.JSON(http.StatusOK, gin.H{"message": "Medicine updated successfully!", "medicine": med})
	}
}

// errHasOrders refuses deleting a medicine that orders reference
var errHasOrders = errors.New("medicine has orders")

// deleteMedicine removes a medicine unless an order references it
func deleteMedicine(db *gorm.DB, id uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var med domain.Medicine
		if err := tx.Select("id").First(&med, id).Error; err != nil {
			return err
		}
		var count int64
		if err := tx.Model(&domain.Order{}).Where("medicine_id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return errHasOrders
		}
		return tx.Delete(&med).Error
	})
}

// DeleteMedicineHandler removes a medicine with no orders
func DeleteMedicineHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id") // Medicine ID
		if !ok {
			return
		}
		err := deleteMedicine(db, id)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Medicine not found"})
			return
		case errors.Is(err, errHasOrders):
			c.JSON(http.StatusConflict, gin.H{"error": "Cannot delete medicine as it has associated orders."})
			return
		case err != nil:
			respondError(c, err, "medicine", logrus.Fields{"medicine_id": id})
			return
		}
		invalidateCatalog(c, rdb) // Drop cached listings
		c.JSON(http.StatusOK, gin.H{"message": "Medicine deleted!"})
	}
}

// BulkDeleteMedicinesHandler deletes every listed medicine that has no orders
func BulkDeleteMedicinesHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req BulkDeleteRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No medicines selected for deletion."})
			return
		}
		deleted := 0        // Medicines removed
		skipped := []uint{} // Medicines kept because of orders or absence
		for _, id := range req.IDs {
			err := deleteMedicine(db, id)
			switch {
			case err == nil:
				deleted++
			case errors.Is(err, errHasOrders), errors.Is(err, gorm.ErrRecordNotFound):
				skipped = append(skipped, id)
			default:
				respondError(c, err, "medicine", logrus.Fields{"medicine_id": id})
				return
			}
		}
		if deleted > 0 {
			invalidateCatalog(c, rdb) // Drop cached listings
		}
		c.JSON(http.StatusOK, gin.H{
			"message": strconv.Itoa(deleted) + " medicine(s) deleted successfully.", // Summary
			"deleted": deleted,                                                      // Count removed
			"skipped": skipped,                                                      // IDs kept
		})
	}
}

// UploadMedicineImageHandler stores the "image" form file and records its key
func UploadMedicineImageHandler(db *gorm.DB, rdb *redis.Client, store storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id") // Medicine ID
		if !ok {
			return
		}
		fh, err := c.FormFile("image") // Uploaded image
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Please upload an image"})
			return
		}
		var med domain.Medicine
		if err := db.First(&med, id).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Medicine not found"})
			return
		}
		key, err := saveUpload(c.Request.Context(), store, "medicines", fh) // Store the image
		if err != nil {
			respondError(c, err, "medicine", logrus.Fields{"medicine_id": id})
			return
		}
		if err := db.Model(&med).Update("image", key).Error; err != nil {
			respondError(c, err, "medicine", logrus.Fields{"medicine_id": id})
			return
		}
		invalidateCatalog(c, rdb) // Drop cached listings
		c.JSON(http.StatusOK, gin.H{"message": "Image uploaded!", "image": key})
	}
}

// ExportMedicinesHandler downloads the inventory as CSV, optionally limited by ?ids=1,2,3
func ExportMedicinesHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := db.Order("id asc") // All medicines by default
		if raw := c.Query("ids"); raw != "" {
			var ids []uint
			for _, part := range strings.Split(raw, ",") {
				v, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
				if err != nil {
					c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ids"})
					return
				}
				ids = append(ids, uint(v))
			}
			query = query.Where("id IN ?", ids) // Restrict to selection
		}
		var meds []domain.Medicine
		if err := query.Find(&meds).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch medicines"})
			return
		}
		var buf bytes.Buffer
		if err := report.MedicinesCSV(&buf, meds); err != nil {
			respondError(c, err, "medicine", nil)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="medicines.csv"`)
		c.Data(http.StatusOK, "text/csv", buf.Bytes())
	}
}

// bindOffer binds and validates an offer request
func bindOffer(c *gin.Context) (OfferRequest, time.Time, bool) {
	var req OfferRequest // Bind JSON request to struct
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return req, time.Time{}, false
	}
	until, err := time.Parse("2006-01-02", req.ValidUntil) // Last valid day
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "valid_until must be YYYY-MM-DD"})
		return req, time.Time{}, false
	}
	return req, until, true
}

// CreateOfferHandler adds an offer
func CreateOfferHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, until, ok := bindOffer(c)
		if !ok {
			return
		}
		offer := domain.Offer{Title: req.Title, Description: req.Description, Discount: req.Discount, ValidUntil: until}
		if err := db.Create(&offer).Error; err != nil {
			respondError(c, err, "offer", nil)
			return
		}
		invalidateCatalog(c, rdb) // Drop cached offers
		c.JSON(http.StatusCreated, gin.H{"message": "Offer added!", "offer": offer})
	}
}

// UpdateOfferHandler replaces an offer
func UpdateOfferHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id") // Offer ID
		if !ok {
			return
		}
		req, until, ok := bindOffer(c)
		if !ok {
			return
		}
		var offer domain.Offer
		if err := db.First(&offer, id).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Offer not found"})
			return
		}
		offer.Title, offer.Description, offer.Discount, offer.ValidUntil = req.Title, req.Description, req.Discount, until
		if err := db.Save(&offer).Error; err != nil {
			respondError(c, err, "offer", logrus.Fields{"offer_id": id})
			return
		}
		invalidateCatalog(c, rdb) // Drop cached offers
		c.JSON(http.StatusOK, gin.H{"message": "Offer updated successfully!", "offer": offer})
	}
}

// DeleteOfferHandler removes an offer
func DeleteOfferHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id") // Offer ID
		if !ok {
			return
		}
		res := db.Delete(&domain.Offer{}, id)
		if res.Error != nil {
			respondError(c, res.Error, "offer", logrus.Fields{"offer_id": id})
			return
		}
		if res.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "Offer not found"})
			return
		}
		invalidateCatalog(c, rdb) // Drop cached offers
		c.JSON(http.StatusOK, gin.H{"message": "Offer deleted!"})
	}
}
