package services

import (
	"fmt"
	"time"

	"backend/models"

	"gorm.io/gorm"
)

type alertDeps struct {
	db *gorm.DB
	rt *RealtimeHub
}

var _alert alertDeps

func InitAlertDeps(db *gorm.DB, rt *RealtimeHub) {
	_alert = alertDeps{db: db, rt: rt}
}

// EmitAlert persists a notice and pushes it to any connected clients.
// Safe to call from anywhere, including before init (no-op then).
func EmitAlert(userID uint, typ, message string) {
	if _alert.db == nil {
		return
	}
	a := &models.Alert{UserID: userID, Type: typ, Message: message, CreatedAt: time.Now()}
	_ = _alert.db.Create(a).Error

	if _alert.rt != nil {
		_alert.rt.Broadcast(userID, "alert.created", a)
	}
}

// EmitSyncAlert summarizes a finished sync batch.
func EmitSyncAlert(userID uint, appName string, res *SyncBatchResult) {
	msg := fmt.Sprintf("Sync from %s finished: %d records stored", appName, res.Stored)
	if len(res.Skipped) > 0 {
		msg += fmt.Sprintf(", %d skipped", len(res.Skipped))
	}
	if res.Dedup != nil && (res.Dedup.Promoted > 0 || res.Dedup.Demoted > 0) {
		msg += fmt.Sprintf(" (%d promoted, %d demoted)", res.Dedup.Promoted, res.Dedup.Demoted)
	}
	EmitAlert(userID, "sync", msg)
}

// EmitExtractionAlert summarizes a processed upload.
func EmitExtractionAlert(userID uint, filename string, file *models.UploadedFile) {
	EmitAlert(userID, "extraction",
		fmt.Sprintf("Processed %s: categories [%s], confidence %.2f",
			filename, file.DataCategories, file.ExtractionConfidence))
}
