package services

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"backend/models"
)

type fakeBlobStore struct {
	puts    []string
	deletes []string
	putErr  error
}

func (f *fakeBlobStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.puts = append(f.puts, key)
	return nil
}

func (f *fakeBlobStore) Delete(ctx context.Context, key string) error {
	f.deletes = append(f.deletes, key)
	return nil
}

type fakeExtractor struct {
	result *ExtractedHealthData
	err    error
	calls  int
}

func (f *fakeExtractor) Extract(ctx context.Context, data []byte, filename, mimeType string) (*ExtractedHealthData, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func labExtraction() *ExtractedHealthData {
	return &ExtractedHealthData{
		Confidence: 0.9,
		Summary:    "routine blood panel",
		Metrics: []ExtractedMetric{
			{Category: "blood_glucose", Value: 92, Unit: "mg/dL", RecordedAt: "2026-08-15"},
			{Category: "tsh", Value: 2.1, Unit: "mIU/L", RecordedAt: "2026-08-15"},
		},
		DateRangeStart: "2026-08-15",
		DateRangeEnd:   "2026-08-15",
	}
}

func TestIngestRejectsOversizeBeforeAnyIO(t *testing.T) {
	db := newTestDB(t)
	store := &fakeBlobStore{}
	ext := &fakeExtractor{result: labExtraction()}
	svc := NewIngestionService(db, store, ext)

	big := bytes.Repeat([]byte("x"), MaxUploadBytes+1)
	_, err := svc.Ingest(context.Background(), big, "labs.pdf", "application/pdf", 1)
	if !IsValidation(err) {
		t.Fatalf("Ingest() error = %v, want validation error", err)
	}
	if len(store.puts) != 0 {
		t.Error("blob stored despite size rejection")
	}
	if ext.calls != 0 {
		t.Error("extractor called despite size rejection")
	}
}

func TestIngestRejectsUnsupportedType(t *testing.T) {
	db := newTestDB(t)
	store := &fakeBlobStore{}
	ext := &fakeExtractor{result: labExtraction()}
	svc := NewIngestionService(db, store, ext)

	tests := []struct {
		name string
		data []byte
		mime string
	}{
		{"empty file", nil, "application/pdf"},
		{"executable", []byte("MZ"), "application/x-msdownload"},
		{"video", []byte("data"), "video/mp4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Ingest(context.Background(), tt.data, "f", tt.mime, 1)
			if !IsValidation(err) {
				t.Errorf("Ingest() error = %v, want validation error", err)
			}
		})
	}
	if len(store.puts) != 0 || ext.calls != 0 {
		t.Error("rejected uploads must not reach storage or extraction")
	}
}

// If extraction fails after the blob was written, the blob must be removed so
// storage does not accumulate orphans the database never references.
func TestIngestCleansUpBlobOnExtractionFailure(t *testing.T) {
	db := newTestDB(t)
	store := &fakeBlobStore{}
	ext := &fakeExtractor{err: &ExternalServiceError{Service: "openai", Op: "extract", Err: errors.New("timeout")}}
	svc := NewIngestionService(db, store, ext)

	_, err := svc.Ingest(context.Background(), []byte("report"), "labs.pdf", "application/pdf", 1)
	var extErr *ExternalServiceError
	if !errors.As(err, &extErr) {
		t.Fatalf("Ingest() error = %v, want ExternalServiceError", err)
	}

	if len(store.puts) != 1 {
		t.Fatalf("puts = %d, want 1", len(store.puts))
	}
	// cleanup runs on a detached context; the fake is synchronous so the
	// delete is recorded before Ingest returns
	if len(store.deletes) != 1 || store.deletes[0] != store.puts[0] {
		t.Errorf("deletes = %v, want the stored key %q", store.deletes, store.puts[0])
	}

	var n int64
	db.Model(&models.UploadedFile{}).Count(&n)
	if n != 0 {
		t.Error("file row persisted despite extraction failure")
	}
}

func TestIngestCleansUpBlobOnLowConfidence(t *testing.T) {
	db := newTestDB(t)
	store := &fakeBlobStore{}
	ext := &fakeExtractor{err: &LowConfidenceError{Confidence: 0.3, Threshold: 0.5}}
	svc := NewIngestionService(db, store, ext)

	_, err := svc.Ingest(context.Background(), []byte("blurry scan"), "scan.jpg", "image/jpeg", 1)
	var lce *LowConfidenceError
	if !errors.As(err, &lce) {
		t.Fatalf("Ingest() error = %v, want LowConfidenceError", err)
	}
	if len(store.deletes) != 1 {
		t.Errorf("deletes = %d, want 1", len(store.deletes))
	}
}

func TestIngestPersistsFileAndRecords(t *testing.T) {
	db := newTestDB(t)
	store := &fakeBlobStore{}
	ext := &fakeExtractor{result: labExtraction()}
	svc := NewIngestionService(db, store, ext)

	file, err := svc.Ingest(context.Background(), []byte("report"), "labs.pdf", "application/pdf; charset=binary", 1)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if file.ID == 0 {
		t.Fatal("file row not persisted")
	}
	if file.MimeType != "application/pdf" {
		t.Errorf("MimeType = %q, want parameters stripped", file.MimeType)
	}
	if file.DataCategories != "blood_glucose,tsh" {
		t.Errorf("DataCategories = %q", file.DataCategories)
	}
	if len(store.deletes) != 0 {
		t.Error("blob deleted on success path")
	}

	var records []models.HealthRecord
	if err := db.Where("user_id = 1").Order("metric_type").Find(&records).Error; err != nil {
		t.Fatalf("load records: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	glucose := records[0]
	if glucose.MetricType != MetricBloodGlucose {
		t.Errorf("metric = %s, want %s", glucose.MetricType, MetricBloodGlucose)
	}
	if glucose.SourceApp != "file_upload" {
		t.Errorf("SourceApp = %s", glucose.SourceApp)
	}
	if glucose.QualityScore != QualityForSourceType("estimate") {
		t.Errorf("QualityScore = %v, want estimate tier", glucose.QualityScore)
	}
	if got, ok := glucose.Metadata["uploaded_file_id"]; !ok || got == nil {
		t.Error("record not linked back to uploaded file")
	}
	wantDay := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	if !glucose.RecordedAt.Equal(wantDay) {
		t.Errorf("RecordedAt = %v, want %v", glucose.RecordedAt, wantDay)
	}
}

// An extracted category the registry cannot map is skipped; the rest of the
// document still lands.
func TestIngestSkipsUnmappedCategories(t *testing.T) {
	db := newTestDB(t)
	store := &fakeBlobStore{}
	ext := &fakeExtractor{result: &ExtractedHealthData{
		Confidence: 0.8,
		Metrics: []ExtractedMetric{
			{Category: "cholesterol_ldl", Value: 110, Unit: "mg/dL", RecordedAt: "2026-08-15"},
			{Category: "weight", Value: 82.5, Unit: "kg", RecordedAt: "2026-08-15"},
		},
	}}
	svc := NewIngestionService(db, store, ext)

	if _, err := svc.Ingest(context.Background(), []byte("report"), "labs.pdf", "application/pdf", 1); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	var records []models.HealthRecord
	db.Where("user_id = 1").Find(&records)
	if len(records) != 1 || records[0].MetricType != MetricWeight {
		t.Errorf("records = %+v, want just the weight record", records)
	}
}
