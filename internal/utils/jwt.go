package utils

import (
	"errors" // Error values
	"time"   // Time for token expiration

	"github.com/golang-jwt/jwt/v5" // JWT library
)

// PurposePasswordReset marks tokens that only authorize a password reset
const PurposePasswordReset = "password_reset"

// ErrWrongPurpose is returned when a token is used outside its purpose
var ErrWrongPurpose = errors.New("token not valid for this purpose")

// JWT Claims
type Claims struct {
	UserID               uint   `json:"user_id"`           // Custom claim for user ID
	Purpose              string `json:"purpose,omitempty"` // Empty for session tokens
	jwt.RegisteredClaims        // Standard JWT claims
}

// GenerateJWT creates a 24h session token for a given user ID
func GenerateJWT(userID uint, secret string) (string, error) {
	return signClaims(userID, "", "", 24*time.Hour, secret)
}

// GeneratePurposeJWT creates a short lived token restricted to one purpose.
// tokenID lands in the jti claim so the holder can consume the token once.
func GeneratePurposeJWT(userID uint, purpose, tokenID string, ttl time.Duration, secret string) (string, error) {
	return signClaims(userID, purpose, tokenID, ttl, secret)
}

// signClaims signs the claims with HS256
func signClaims(userID uint, purpose, tokenID string, ttl time.Duration, secret string) (string, error) {
	now := time.Now() // Issue time
	claims := Claims{
		UserID:  userID,  // Custom claim for user ID
		Purpose: purpose, // Token purpose
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)), // Token expiry
			IssuedAt:  jwt.NewNumericDate(now),          // Issued at current time
			ID:        tokenID,                          // Token ID, empty for sessions
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims) // Create token with claims
	return token.SignedString([]byte(secret))                  // Sign the token with the secret
}

// ParseJWT parses a session token; purpose tokens are refused
func ParseJWT(tokenStr, secret string) (*Claims, error) {
	return ParsePurposeJWT(tokenStr, "", secret)
}

// ParsePurposeJWT parses and validates a token issued for the given purpose
func ParsePurposeJWT(tokenStr, purpose, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil // Return the secret key for validation
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	// Check for parsing errors
	if err != nil {
		return nil, err // Return error if parsing fails
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrSignatureInvalid // Return error if token is invalid
	}
	if claims.Purpose != purpose {
		return nil, ErrWrongPurpose // Session and reset tokens are not interchangeable
	}
	return claims, nil
}
