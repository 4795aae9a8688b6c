package main

import (
	"flag"    // Command line flags
	"fmt"     // Usage output
	"os"      // Exit codes
	"strings" // Input normalization

	"pharmacy_system/internal/config" // Custom import path (Config)
	"pharmacy_system/internal/db"     // Custom import path (Database)
	"pharmacy_system/internal/domain" // Importing domain models

	"github.com/sirupsen/logrus" // Logrus for structured logging
	"golang.org/x/crypto/bcrypt" // For password hashing
)

// Main entry point for creating verified admin and doctor accounts
func main() {
	var (
		email    = flag.String("email", "", "Account email")
		phone    = flag.String("phone", "", "Account phone number")
		password = flag.String("password", "", "Account password (at least 8 characters)")
		role     = flag.String("role", "admin", "Account role: admin or doctor")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Create a verified back office account\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  createuser --email <e> --phone <p> --password <pw> [--role admin|doctor]\n")
	}
	flag.Parse()

	*email = strings.ToLower(strings.TrimSpace(*email))
	if *email == "" || strings.TrimSpace(*phone) == "" || len(*password) < 8 {
		flag.Usage()
		os.Exit(2)
	}
	if *role != "admin" && *role != "doctor" {
		fmt.Fprintf(os.Stderr, "Error: unknown role %q\n", *role)
		os.Exit(2)
	}

	cfg := config.LoadConfig()    // Load configuration
	database, err := db.Open(cfg) // Connect with the configured driver
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost) // Hash the password
	if err != nil {
		logrus.Fatalf("failed to hash password: %v", err)
	}
	user := domain.User{
		Email:      *email,                    // Login email
		Phone:      strings.TrimSpace(*phone), // Phone number
		Password:   string(hashed),            // Hashed password
		IsAdmin:    *role == "admin",          // Back office access
		IsDoctor:   *role == "doctor",         // Prescription review access
		IsVerified: true,                      // No OTP round trip for staff
	}
	if err := database.Create(&user).Error; err != nil {
		logrus.Fatalf("failed to create user: %v", err)
	}
	logrus.WithFields(logrus.Fields{"user_id": user.ID, "email": user.Email, "role": user.Role()}).Info("Account created")
}
