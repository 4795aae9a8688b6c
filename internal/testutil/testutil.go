// Package testutil builds throwaway backends for package tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"pharmacy_system/internal/db"
	"pharmacy_system/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var seq atomic.Int64

// DB returns a migrated in-memory SQLite database private to the test
func DB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:test%d?mode=memory&cache=shared", seq.Add(1))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.Migrate(gdb))
	return gdb
}

// Redis returns a client bound to a fresh miniredis server
func Redis(t testing.TB) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, mr
}

// User inserts a verified account with the given password
func User(t testing.TB, gdb *gorm.DB, email, password string, mutate ...func(*domain.User)) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u := &domain.User{
		Email:      email,
		Phone:      fmt.Sprintf("9%09d", seq.Add(1)),
		Password:   string(hash),
		IsVerified: true,
	}
	for _, m := range mutate {
		m(u)
	}
	require.NoError(t, gdb.Create(u).Error)
	return u
}

// Medicine inserts a catalog entry
func Medicine(t testing.TB, gdb *gorm.DB, id uint, name string, price int64, discount, stock int) *domain.Medicine {
	t.Helper()
	m := &domain.Medicine{
		ID:           id,
		MedicineName: name + " generic",
		Name:         name,
		Type:         "Tablet",
		AgeGroup:     "Adult",
		Category:     "General",
		Price:        decimal.NewFromInt(price),
		Discount:     discount,
		Stock:        stock,
	}
	require.NoError(t, gdb.Create(m).Error)
	return m
}

// Admin marks a user as admin
func Admin(u *domain.User) { u.IsAdmin = true }

// Doctor marks a user as doctor
func Doctor(u *domain.User) { u.IsDoctor = true }

// Unverified leaves the account unverified
func Unverified(u *domain.User) { u.IsVerified = false }
