package api

import (
	"net/http" // HTTP status codes
	"strconv"  // String conversion
	"strings"  // String manipulation
	"time"     // Time durations

	"pharmacy_system/internal/domain" // Importing domain models
	"pharmacy_system/internal/utils"  // Utility functions

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/redis/go-redis/v9"  // Redis client
	"github.com/shopspring/decimal" // Money
	"gorm.io/gorm"                  // GORM ORM library
)

// catalogTTL is how long storefront responses stay cached
const catalogTTL = 60 * time.Second

// MedicineResponse adds the discounted price to a medicine
type MedicineResponse struct {
	domain.Medicine
	DiscountedPrice decimal.Decimal `json:"discounted_price"` // Price after discount
}

// medicineResponses maps medicines to their response form
func medicineResponses(meds []domain.Medicine) []MedicineResponse {
	resp := make([]MedicineResponse, len(meds))
	for i, m := range meds {
		resp[i] = MedicineResponse{Medicine: m, DiscountedPrice: m.DiscountedPrice()}
	}
	return resp
}

// catalogPage is the cached shape of a medicine listing
type catalogPage struct {
	Medicines  []MedicineResponse `json:"medicines"`   // Matching medicines
	Page       int                `json:"page"`        // Current page
	PageSize   int                `json:"page_size"`   // Page size
	Total      int64              `json:"total"`       // Total matches
	TotalPages int                `json:"total_pages"` // Total pages
	Cached     bool               `json:"cached"`      // Served from cache
}

// ListMedicinesHandler searches the catalog by name or generic name, category and brand
func ListMedicinesHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		listMedicines(c, db, rdb, c.Query("category"))
	}
}

// CategoryHandler lists the medicines of one category
func CategoryHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		listMedicines(c, db, rdb, c.Param("category"))
	}
}

// listMedicines serves a filtered, paginated and cached listing
func listMedicines(c *gin.Context, db *gorm.DB, rdb *redis.Client, category string) {
	ctx := c.Request.Context()                                      // Request context for Redis
	search := strings.ToLower(strings.TrimSpace(c.Query("search"))) // Name or generic name
	brand := strings.ToLower(strings.TrimSpace(c.Query("brand")))   // Brand name
	category = strings.ToLower(strings.TrimSpace(category))         // Category
	page, pageSize := pageParams(c)                                 // Pagination
	// Create a cache key based on every filter
	cacheKey := utils.CatalogPrefix + "medicines:search=" + search + ":category=" + category +
		":brand=" + brand + ":page=" + strconv.Itoa(page) + ":size=" + strconv.Itoa(pageSize)
	var cached catalogPage
	// If cached data found, return it
	if found, err := utils.GetCache(ctx, rdb, cacheKey, &cached); err == nil && found {
		cached.Cached = true // Indicate response is from cache
		c.JSON(http.StatusOK, cached)
		return
	}
	query := db.Model(&domain.Medicine{}) // Start building the query
	if search != "" {
		query = query.Where("(LOWER(name) LIKE ? OR LOWER(medicine_name) LIKE ?)", "%"+search+"%", "%"+search+"%") // Filter by names
	}
	if category != "" {
		query = query.Where("LOWER(category) LIKE ?", "%"+category+"%") // Filter by category
	}
	if brand != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+brand+"%") // Filter by brand
	}
	var total int64 // Total medicine count
	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count medicines"})
		return
	}
	var meds []domain.Medicine // Slice to hold medicines
	if err := query.Order("name asc").Offset((page - 1) * pageSize).Limit(pageSize).Find(&meds).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch medicines"})
		return
	}
	resp := catalogPage{
		Medicines:  medicineResponses(meds),     // Matching medicines
		Page:       page,                        // Current page
		PageSize:   pageSize,                    // Page size
		Total:      total,                       // Total matches
		TotalPages: totalPages(total, pageSize), // Total pages
	}
	_ = utils.SetCache(ctx, rdb, cacheKey, resp, catalogTTL) // Cache the response
	c.JSON(http.StatusOK, resp)                              // Return the response
}

// GetMedicineHandler returns one medicine
func GetMedicineHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id") // Medicine ID
		if !ok {
			return
		}
		var med domain.Medicine
		if err := db.First(&med, id).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Medicine not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"medicine": MedicineResponse{Medicine: med, DiscountedPrice: med.DiscountedPrice()}})
	}
}

// ListOffersHandler returns every offer, newest first
func ListOffersHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()                 // Request context for Redis
		cacheKey := utils.CatalogPrefix + "offers" // Cache key for offers
		var offers []domain.Offer
		// If cached data found, return it
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &offers); err == nil && found {
			c.JSON(http.StatusOK, gin.H{"offers": offers, "cached": true})
			return
		}
		if err := db.Order("id desc").Find(&offers).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch offers"})
			return
		}
		_ = utils.SetCache(ctx, rdb, cacheKey, offers, catalogTTL)      // Cache the offers
		c.JSON(http.StatusOK, gin.H{"offers": offers, "cached": false}) // Return offers
	}
}

// invalidateCatalog drops every cached storefront response after an admin write
func invalidateCatalog(c *gin.Context, rdb *redis.Client) {
	_ = utils.DeleteCachePrefix(c.Request.Context(), rdb, utils.CatalogPrefix)
}
