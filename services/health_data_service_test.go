package services

import (
	"context"
	"testing"
	"time"

	"backend/models"
)

func TestValidateEventMetrics(t *testing.T) {
	tests := []struct {
		name      string
		eventType string
		metrics   map[string]interface{}
		wantErr   bool
	}{
		{
			name:      "valid workout",
			eventType: "workout",
			metrics:   map[string]interface{}{"activity": "running", "duration_min": 45.0, "distance_km": 8.2},
		},
		{
			name:      "valid meal",
			eventType: "meal",
			metrics:   map[string]interface{}{"calories": 620, "protein_g": 35.0},
		},
		{
			name:      "valid sleep",
			eventType: "sleep",
			metrics:   map[string]interface{}{"duration_hours": 7.5, "quality": "good"},
		},
		{
			name:      "unknown event type",
			eventType: "meditation",
			metrics:   map[string]interface{}{},
			wantErr:   true,
		},
		{
			name:      "field from wrong schema",
			eventType: "meal",
			metrics:   map[string]interface{}{"duration_min": 30.0},
			wantErr:   true,
		},
		{
			name:      "number field with string value",
			eventType: "workout",
			metrics:   map[string]interface{}{"duration_min": "forty-five"},
			wantErr:   true,
		},
		{
			name:      "string field with number value",
			eventType: "sleep",
			metrics:   map[string]interface{}{"duration_hours": 7.5, "quality": 8},
			wantErr:   true,
		},
		{
			name:      "missing required field",
			eventType: "workout",
			metrics:   map[string]interface{}{"activity": "yoga"},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEventMetrics(tt.eventType, tt.metrics)
			if tt.wantErr && !IsValidation(err) {
				t.Errorf("ValidateEventMetrics() = %v, want validation error", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidateEventMetrics() = %v, want nil", err)
			}
		})
	}
}

func TestCreateEvent(t *testing.T) {
	db := newTestDB(t)
	svc := NewHealthDataService(db)
	start := time.Date(2026, 8, 20, 7, 0, 0, 0, time.UTC)
	end := start.Add(45 * time.Minute)

	ev, err := svc.CreateEvent(context.Background(), 1, EventInput{
		EventType: "workout",
		StartTime: start,
		EndTime:   &end,
		Title:     "Morning run",
		Metrics:   map[string]interface{}{"activity": "running", "duration_min": 45.0},
		SourceApp: "manual",
		AppType:   "manual",
	})
	if err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}
	if ev.ID == 0 {
		t.Fatal("event not persisted")
	}
	if ev.QualityScore != 0.7 {
		t.Errorf("QualityScore = %v, want manual tier 0.7", ev.QualityScore)
	}

	// end before start
	bad := start.Add(-time.Minute)
	_, err = svc.CreateEvent(context.Background(), 1, EventInput{
		EventType: "workout",
		StartTime: start,
		EndTime:   &bad,
		Metrics:   map[string]interface{}{"duration_min": 45.0},
	})
	if !IsValidation(err) {
		t.Errorf("inverted range error = %v, want validation", err)
	}

	// missing start
	_, err = svc.CreateEvent(context.Background(), 1, EventInput{
		EventType: "workout",
		Metrics:   map[string]interface{}{"duration_min": 45.0},
	})
	if !IsValidation(err) {
		t.Errorf("missing start error = %v, want validation", err)
	}
}

func TestListRecordsFilters(t *testing.T) {
	db := newTestDB(t)
	svc := NewHealthDataService(db)
	base := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		mustCreate(t, db, &models.HealthRecord{
			UserID: 1, MetricType: MetricWeight, Value: 80 + float64(i), Unit: "kg",
			RecordedAt: base.AddDate(0, 0, i), SourceApp: "manual",
			QualityScore: 0.7, IsCanonical: i%2 == 0,
		})
	}
	mustCreate(t, db, &models.HealthRecord{
		UserID: 2, MetricType: MetricWeight, Value: 70, Unit: "kg",
		RecordedAt: base, SourceApp: "manual", QualityScore: 0.7, IsCanonical: true,
	})

	records, err := svc.ListRecords(context.Background(), 1, RecordQuery{
		Metrics:       []string{MetricWeight},
		From:          base.AddDate(0, 0, 1),
		To:            base.AddDate(0, 0, 3),
		CanonicalOnly: true,
	})
	if err != nil {
		t.Fatalf("ListRecords() error = %v", err)
	}
	if len(records) != 1 || records[0].Value != 82 {
		t.Errorf("records = %+v, want the single canonical row in range", records)
	}

	if _, err := svc.ListRecords(context.Background(), 1, RecordQuery{Metrics: []string{"nope"}}); !IsValidation(err) {
		t.Errorf("unknown metric error = %v, want validation", err)
	}
}

func TestSnapshotLatestCanonicalPerMetric(t *testing.T) {
	db := newTestDB(t)
	svc := NewHealthDataService(db)
	now := time.Date(2026, 8, 20, 8, 0, 0, 0, time.UTC)

	mustCreate(t, db, &models.HealthRecord{
		UserID: 1, MetricType: MetricWeight, Value: 83, Unit: "kg",
		RecordedAt: now.AddDate(0, 0, -2), SourceApp: "manual",
		QualityScore: 0.7, IsCanonical: true,
	})
	mustCreate(t, db, &models.HealthRecord{
		UserID: 1, MetricType: MetricWeight, Value: 82.5, Unit: "kg",
		RecordedAt: now, SourceApp: "apple_health",
		QualityScore: 1.0, IsCanonical: true,
	})
	// demoted row must never surface
	mustCreate(t, db, &models.HealthRecord{
		UserID: 1, MetricType: MetricSteps, Value: 9000, Unit: "count",
		RecordedAt: now, SourceApp: "fitbit",
		QualityScore: 1.0, IsCanonical: false,
	})

	snap := svc.Snapshot(context.Background(), 1)
	w, ok := snap[MetricWeight]
	if !ok {
		t.Fatal("weight missing from snapshot")
	}
	if w.Value != 82.5 || w.SourceApp != "apple_health" {
		t.Errorf("weight entry = %+v, want newest canonical", w)
	}
	if _, ok := snap[MetricSteps]; ok {
		t.Error("non-canonical steps row surfaced in snapshot")
	}
	if _, ok := snap[MetricBloodGlucose]; ok {
		t.Error("metric without data surfaced in snapshot")
	}
}

func TestDeleteUserDataScopedToUser(t *testing.T) {
	db := newTestDB(t)
	svc := NewHealthDataService(db)
	now := time.Now().UTC()

	for _, userID := range []uint{1, 2} {
		mustCreate(t, db, &models.HealthRecord{
			UserID: userID, MetricType: MetricWeight, Value: 80, Unit: "kg",
			RecordedAt: now, SourceApp: "manual", QualityScore: 0.7, IsCanonical: true,
		})
		connectTestSource(t, db, userID, "manual", "manual", now)
		conv := &models.Conversation{UserID: userID, Title: "t"}
		mustCreate(t, db, conv)
		mustCreate(t, db, &models.Message{ConversationID: conv.ID, Role: "user", Content: "hi"})
	}

	counts, err := svc.DeleteUserData(context.Background(), 1)
	if err != nil {
		t.Fatalf("DeleteUserData() error = %v", err)
	}
	if counts["health_records"] != 1 || counts["conversations"] != 1 {
		t.Errorf("counts = %v", counts)
	}

	var remaining int64
	db.Model(&models.HealthRecord{}).Count(&remaining)
	if remaining != 1 {
		t.Errorf("records remaining = %d, want user 2's single row", remaining)
	}
	var msgs int64
	db.Model(&models.Message{}).Count(&msgs)
	if msgs != 1 {
		t.Errorf("messages remaining = %d, want 1", msgs)
	}
}
