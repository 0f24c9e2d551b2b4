package services

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"backend/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const MaxUploadBytes = 10 << 20 // 10MB

var allowedMimeTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"image/webp":      true,
	"text/plain":      true,
	"text/csv":        true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
}

// BlobStore is the raw-upload storage the pipeline writes to and, on a
// downstream failure, deletes from again.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
}

// IngestionService runs upload → validate → store blob → extract → persist.
// Either the full extracted record set lands or none of it does; the blob is
// removed again when anything after the upload fails (compensating action,
// not a transaction).
type IngestionService struct {
	db        *gorm.DB
	store     BlobStore
	extractor Extractor
}

func NewIngestionService(db *gorm.DB, store BlobStore, extractor Extractor) *IngestionService {
	return &IngestionService{db: db, store: store, extractor: extractor}
}

// Ingest validates and processes one uploaded document. Size and MIME checks
// run before any I/O.
func (s *IngestionService) Ingest(ctx context.Context, data []byte, filename, mimeType string, userID uint) (*models.UploadedFile, error) {
	if len(data) == 0 {
		return nil, &ValidationError{Field: "file", Reason: "empty file"}
	}
	if len(data) > MaxUploadBytes {
		return nil, &ValidationError{Field: "file", Reason: fmt.Sprintf("file exceeds %dMB limit", MaxUploadBytes>>20)}
	}
	baseMime := strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])
	if !allowedMimeTypes[baseMime] {
		return nil, &ValidationError{Field: "file", Reason: fmt.Sprintf("unsupported file type %q", baseMime)}
	}

	key := fmt.Sprintf("users/%d/uploads/%s%s", userID, uuid.NewString(), filepath.Ext(filename))
	if err := s.store.Put(ctx, key, data, baseMime); err != nil {
		return nil, &ExternalServiceError{Service: "storage", Op: "store upload", Err: err}
	}

	extracted, err := s.extractor.Extract(ctx, data, filename, baseMime)
	if err != nil {
		s.cleanupBlob(key)
		return nil, err
	}

	file, err := s.persist(ctx, userID, filename, baseMime, key, int64(len(data)), extracted)
	if err != nil {
		s.cleanupBlob(key)
		return nil, err
	}
	return file, nil
}

func (s *IngestionService) persist(ctx context.Context, userID uint, filename, mimeType, key string, size int64, extracted *ExtractedHealthData) (*models.UploadedFile, error) {
	file := &models.UploadedFile{
		UserID:               userID,
		FileName:             filename,
		MimeType:             mimeType,
		SizeBytes:            size,
		StoragePath:          key,
		ExtractionConfidence: extracted.Confidence,
		DataCategories:       strings.Join(extracted.Categories(), ","),
		DateRangeStart:       extracted.DateRangeStart,
		DateRangeEnd:         extracted.DateRangeEnd,
		ExtractedData:        extractedToMap(extracted),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(file).Error; err != nil {
			return err
		}
		for _, m := range extracted.Metrics {
			rec, err := s.normalizeExtracted(m, extracted.Confidence)
			if err != nil {
				// unmapped categories are logged and skipped, not fatal
				log.Printf("ingestion: skipping extracted metric %q: %v", m.Category, err)
				continue
			}
			rec.UserID = userID
			rec.Metadata["uploaded_file_id"] = file.ID
			if err := tx.Create(rec).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, &ExternalServiceError{Service: "database", Op: "persist extraction", Err: err}
	}
	return file, nil
}

func (s *IngestionService) normalizeExtracted(m ExtractedMetric, confidence float64) (*models.HealthRecord, error) {
	recordedAt, err := parseExtractedTime(m.RecordedAt)
	if err != nil {
		return nil, err
	}
	raw := RawRecord{
		Source:       "file_upload",
		AppFieldName: m.Category,
		Value:        m.Value,
		Unit:         m.Unit,
		RecordedAt:   recordedAt,
		Description:  m.Description,
		Metadata:     map[string]interface{}{"extraction_confidence": confidence},
	}
	return Normalize(raw, "estimate")
}

func parseExtractedTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, &ValidationError{Field: "recorded_at", Reason: "missing date"}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, &ValidationError{Field: "recorded_at", Reason: "unparseable date " + s}
}

func extractedToMap(d *ExtractedHealthData) models.JSONMap {
	metrics := make([]interface{}, 0, len(d.Metrics))
	for _, m := range d.Metrics {
		metrics = append(metrics, map[string]interface{}{
			"category":    m.Category,
			"value":       m.Value,
			"unit":        m.Unit,
			"recorded_at": m.RecordedAt,
			"description": m.Description,
		})
	}
	return models.JSONMap{
		"summary": d.Summary,
		"metrics": metrics,
	}
}

// cleanupBlob uses a fresh context so the compensating delete still runs when
// the request context is already canceled.
func (s *IngestionService) cleanupBlob(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.store.Delete(ctx, key); err != nil {
		log.Printf("ingestion: failed to clean up blob %s: %v", key, err)
	}
}

// ListFiles returns the caller's upload history, newest first.
func (s *IngestionService) ListFiles(ctx context.Context, userID uint) ([]models.UploadedFile, error) {
	var files []models.UploadedFile
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&files).Error
	if err != nil {
		return nil, &ExternalServiceError{Service: "database", Op: "list files", Err: err}
	}
	return files, nil
}
