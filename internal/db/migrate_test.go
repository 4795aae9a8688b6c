package db

import (
	"testing"

	"pharmacy_system/internal/config"
	"pharmacy_system/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestMigrateCreatesTables(t *testing.T) {
	gdb, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, Migrate(gdb))

	for _, model := range Models() {
		assert.True(t, gdb.Migrator().HasTable(model))
	}
	assert.True(t, gdb.Migrator().HasColumn(&domain.Order{}, "delivery_otp"))
	assert.True(t, gdb.Migrator().HasColumn(&domain.Prescription{}, "delivery_otp_expiry"))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(&config.Config{DBDriver: "oracle"})
	assert.Error(t, err)
}
