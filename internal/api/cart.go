package api

import (
	"net/http" // HTTP status codes
	"sort"     // Stable line order

	"pharmacy_system/internal/cart"   // Redis cart
	"pharmacy_system/internal/domain" // Importing domain models

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Money
	"github.com/sirupsen/logrus"    // Logging library
	"gorm.io/gorm"                  // GORM ORM library
)

// AddToCartRequest adds units of a medicine to the cart
type AddToCartRequest struct {
	MedicineID uint `json:"medicine_id" binding:"required"`   // Medicine to add
	Quantity   int  `json:"quantity" binding:"required,gt=0"` // Units to add
}

// SetQuantityRequest overwrites the quantity of a cart line
type SetQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required,gte=0"` // Zero removes the line
}

// CartLine is one priced cart entry
type CartLine struct {
	Medicine  MedicineResponse `json:"medicine"`  // Medicine details
	Quantity  int              `json:"quantity"`  // Units in cart
	Subtotal  decimal.Decimal  `json:"subtotal"`  // Discounted price x quantity
	Available bool             `json:"available"` // Enough stock right now
}

// GetCartHandler returns the priced cart of the current user
func GetCartHandler(db *gorm.DB, carts *cart.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c) // Get userID from context
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		items, err := carts.Items(c.Request.Context(), userID) // Cart lines
		if err != nil {
			respondError(c, err, "cart", logrus.Fields{"user_id": userID})
			return
		}
		ids := make([]uint, 0, len(items)) // Medicine IDs in cart
		for id := range items {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		var meds []domain.Medicine // Medicines in cart
		if len(ids) > 0 {
			if err := db.Where("id IN ?", ids).Find(&meds).Error; err != nil {
				respondError(c, err, "cart", logrus.Fields{"user_id": userID})
				return
			}
		}
		byID := make(map[uint]domain.Medicine, len(meds))
		for _, m := range meds {
			byID[m.ID] = m
		}
		lines := []CartLine{} // Priced lines
		total := decimal.Zero // Cart total
		for _, id := range ids {
			m, found := byID[id]
			if !found {
				continue // Medicine no longer in the catalog
			}
			qty := items[id]
			subtotal := domain.LineTotal(m.Price, m.Discount, qty)
			lines = append(lines, CartLine{
				Medicine:  MedicineResponse{Medicine: m, DiscountedPrice: m.DiscountedPrice()},
				Quantity:  qty,
				Subtotal:  subtotal,
				Available: m.Stock >= qty,
			})
			total = total.Add(subtotal)
		}
		c.JSON(http.StatusOK, gin.H{"items": lines, "total": total})
	}
}

// AddToCartHandler increments a cart line
func AddToCartHandler(db *gorm.DB, carts *cart.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c) // Get userID from context
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var req AddToCartRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		var med domain.Medicine // Medicine must exist
		if err := db.Select("id").First(&med, req.MedicineID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Medicine not found"})
			return
		}
		qty, err := carts.Add(c.Request.Context(), userID, req.MedicineID, req.Quantity)
		if err != nil {
			respondError(c, err, "cart", logrus.Fields{"user_id": userID})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Item added to cart!", "medicine_id": req.MedicineID, "quantity": qty})
	}
}

// UpdateCartItemHandler overwrites a cart line quantity
func UpdateCartItemHandler(carts *cart.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c) // Get userID from context
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		medicineID, ok := idParam(c, "medicine_id") // Cart line
		if !ok {
			return
		}
		var req SetQuantityRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		if err := carts.Set(c.Request.Context(), userID, medicineID, *req.Quantity); err != nil {
			respondError(c, err, "cart", logrus.Fields{"user_id": userID})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Cart updated!"})
	}
}

// RemoveCartItemHandler drops a cart line
func RemoveCartItemHandler(carts *cart.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c) // Get userID from context
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		medicineID, ok := idParam(c, "medicine_id") // Cart line
		if !ok {
			return
		}
		if err := carts.Remove(c.Request.Context(), userID, medicineID); err != nil {
			respondError(c, err, "cart", logrus.Fields{"user_id": userID})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Item removed from cart!"})
	}
}

// ClearCartHandler empties the cart
func ClearCartHandler(carts *cart.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c) // Get userID from context
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		if err := carts.Clear(c.Request.Context(), userID); err != nil {
			respondError(c, err, "cart", logrus.Fields{"user_id": userID})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Cart cleared!"})
	}
}
