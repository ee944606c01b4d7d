package database

import (
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/studentos/chat_backend/models"
)

// Connect opens the Postgres connection. The handle is returned to the
// caller and injected into the store; there is no package-level singleton.
func Connect(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{})
}

// Migrate creates or updates the schema for the chat tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.Room{}, &models.RoomMember{}, &models.Message{})
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
