package services

import (
	"path/filepath"
	"testing"
	"time"

	"backend/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.HealthRecord{},
		&models.HealthEvent{},
		&models.ConnectedSource{},
		&models.Conversation{},
		&models.Message{},
		&models.UploadedFile{},
		&models.Alert{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func mustCreate(t *testing.T, db *gorm.DB, value interface{}) {
	t.Helper()
	if err := db.Create(value).Error; err != nil {
		t.Fatalf("create %T: %v", value, err)
	}
}

func connectTestSource(t *testing.T, db *gorm.DB, userID uint, app, appType string, lastSync time.Time) {
	t.Helper()
	src := models.ConnectedSource{
		UserID:   userID,
		AppName:  app,
		AppType:  appType,
		IsActive: true,
	}
	if !lastSync.IsZero() {
		src.LastSync = &lastSync
	}
	mustCreate(t, db, &src)
}
