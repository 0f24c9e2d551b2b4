package services

import (
	"context"
	"time"

	"backend/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SyncService owns connected-source lifecycle and the sync-batch path:
// raw records in, normalized rows upserted, dedup pass re-run.
type SyncService struct {
	db    *gorm.DB
	dedup *DedupService
}

func NewSyncService(db *gorm.DB, dedup *DedupService) *SyncService {
	return &SyncService{db: db, dedup: dedup}
}

// ConnectSource upserts by (user_id, app_name); reconnecting an app updates
// the row rather than duplicating it.
func (s *SyncService) ConnectSource(ctx context.Context, userID uint, appName, appType, credentials string) (*models.ConnectedSource, error) {
	src := models.ConnectedSource{
		UserID:      userID,
		AppName:     appName,
		AppType:     appType,
		Credentials: credentials,
		IsActive:    true,
	}
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND app_name = ?", userID, appName).
		Assign(map[string]interface{}{
			"app_type":    appType,
			"credentials": credentials,
			"is_active":   true,
		}).
		FirstOrCreate(&src).Error
	if err != nil {
		return nil, &ExternalServiceError{Service: "database", Op: "connect source", Err: err}
	}
	return &src, nil
}

func (s *SyncService) ListSources(ctx context.Context, userID uint) ([]models.ConnectedSource, error) {
	var sources []models.ConnectedSource
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("app_name ASC").
		Find(&sources).Error
	if err != nil {
		return nil, &ExternalServiceError{Service: "database", Op: "list sources", Err: err}
	}
	return sources, nil
}

func (s *SyncService) DisconnectSource(ctx context.Context, userID uint, appName string) error {
	res := s.db.WithContext(ctx).
		Model(&models.ConnectedSource{}).
		Where("user_id = ? AND app_name = ?", userID, appName).
		Update("is_active", false)
	if res.Error != nil {
		return &ExternalServiceError{Service: "database", Op: "disconnect source", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return &NotFoundError{Resource: "connected source"}
	}
	return nil
}

// SyncBatchResult reports a partial-success sync: stored row count, skipped
// raw records, and the dedup outcome for the touched metrics.
type SyncBatchResult struct {
	Stored  int             `json:"stored"`
	Skipped []SkippedRecord `json:"skipped,omitempty"`
	Dedup   *DedupResult    `json:"dedup,omitempty"`
}

// IngestBatch normalizes a sync batch from one source, upserts each record on
// (user_id, metric_type, recorded_at, source_app), stamps the source's
// last_sync, and re-runs dedup for the metrics the batch touched.
func (s *SyncService) IngestBatch(ctx context.Context, userID uint, appName string, raws []RawRecord) (*SyncBatchResult, error) {
	var src models.ConnectedSource
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND app_name = ? AND is_active = ?", userID, appName, true).
		First(&src).Error; err != nil {
		return nil, &NotFoundError{Resource: "connected source"}
	}

	batch := NormalizeBatch(raws, src.AppType)
	out := &SyncBatchResult{Skipped: batch.Skipped}

	touched := map[string]bool{}
	for _, rec := range batch.Records {
		rec.UserID = userID
		rec.SourceApp = appName
		if err := s.upsertRecord(ctx, rec); err != nil {
			out.Skipped = append(out.Skipped, SkippedRecord{
				Field:  rec.MetricType,
				Reason: err.Error(),
			})
			continue
		}
		touched[rec.MetricType] = true
		out.Stored++
	}

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).
		Model(&models.ConnectedSource{}).
		Where("id = ?", src.ID).
		Update("last_sync", now).Error; err != nil {
		return out, &ExternalServiceError{Service: "database", Op: "update last_sync", Err: err}
	}

	if len(touched) > 0 {
		metrics := make([]string, 0, len(touched))
		for m := range touched {
			metrics = append(metrics, m)
		}
		dedup, err := s.dedup.RunDeduplicationCheck(ctx, userID, appName, metrics)
		if err != nil {
			return out, err
		}
		out.Dedup = dedup
	}
	return out, nil
}

func (s *SyncService) upsertRecord(ctx context.Context, rec *models.HealthRecord) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "user_id"}, {Name: "metric_type"},
				{Name: "recorded_at"}, {Name: "source_app"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"value", "unit", "quality_score", "description", "metadata", "updated_at",
			}),
		}).
		Create(rec).Error
}
