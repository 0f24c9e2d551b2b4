package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"backend/models"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

// AppSettings is everything env-driven that isn't a credential for a
// specific client.
type AppSettings struct {
	CORSOrigins        []string
	RateLimitWindowSec int
	RateLimitMax       int
}

var App AppSettings

func InitDB() {
	err := godotenv.Load()
	if err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	loadAppSettings()

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
	)

	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	err = DB.AutoMigrate(
		&models.User{},
		&models.HealthRecord{},
		&models.HealthEvent{},
		&models.ConnectedSource{},
		&models.Conversation{},
		&models.Message{},
		&models.UploadedFile{},
		&models.Alert{},
	)
	if err != nil {
		log.Fatalf("AutoMigrate failed: %v", err)
	}
}

func loadAppSettings() {
	App = AppSettings{
		CORSOrigins:        []string{"*"},
		RateLimitWindowSec: 60,
		RateLimitMax:       120,
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		if len(origins) > 0 {
			App.CORSOrigins = origins
		}
	}
	if n, err := strconv.Atoi(os.Getenv("RATE_LIMIT_WINDOW_SEC")); err == nil && n > 0 {
		App.RateLimitWindowSec = n
	}
	if n, err := strconv.Atoi(os.Getenv("RATE_LIMIT_MAX")); err == nil && n > 0 {
		App.RateLimitMax = n
	}
}
