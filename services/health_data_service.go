package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"backend/models"

	"gorm.io/gorm"
)

// HealthDataService is the read/write surface for canonical records and
// discrete events.
type HealthDataService struct {
	db *gorm.DB
}

func NewHealthDataService(db *gorm.DB) *HealthDataService { return &HealthDataService{db: db} }

type RecordQuery struct {
	Metrics       []string
	From          time.Time
	To            time.Time
	CanonicalOnly bool
	Limit         int
}

func (s *HealthDataService) ListRecords(ctx context.Context, userID uint, q RecordQuery) ([]models.HealthRecord, error) {
	for _, m := range q.Metrics {
		if !KnownMetric(m) {
			return nil, &ValidationError{Field: "metric_type", Reason: "unknown metric " + m}
		}
	}
	db := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if len(q.Metrics) > 0 {
		db = db.Where("metric_type IN ?", q.Metrics)
	}
	if !q.From.IsZero() {
		db = db.Where("recorded_at >= ?", q.From)
	}
	if !q.To.IsZero() {
		db = db.Where("recorded_at <= ?", q.To)
	}
	if q.CanonicalOnly {
		db = db.Where("is_canonical = ?", true)
	}
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	var records []models.HealthRecord
	if err := db.Order("recorded_at DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, &ExternalServiceError{Service: "database", Op: "list records", Err: err}
	}
	return records, nil
}

// eventSchemas is the closed set of per-event-type payload shapes. Keys not
// listed are rejected, so the metrics bag stays a tagged union rather than an
// open dictionary.
var eventSchemas = map[string]map[string]string{ // field → "number" | "string"
	"workout": {
		"activity":        "string",
		"duration_min":    "number",
		"distance_km":     "number",
		"active_calories": "number",
		"avg_heart_rate":  "number",
	},
	"meal": {
		"calories":  "number",
		"protein_g": "number",
		"carbs_g":   "number",
		"fat_g":     "number",
	},
	"sleep": {
		"duration_hours": "number",
		"quality":        "string",
	},
}

// requiredEventFields must be present for the event to mean anything.
var requiredEventFields = map[string][]string{
	"workout": {"duration_min"},
	"sleep":   {"duration_hours"},
}

// ValidateEventMetrics checks an event payload against the schema for its
// event type.
func ValidateEventMetrics(eventType string, metrics map[string]interface{}) error {
	schema, ok := eventSchemas[eventType]
	if !ok {
		return &ValidationError{Field: "event_type", Reason: "unknown event type " + eventType}
	}
	for key, val := range metrics {
		kind, ok := schema[key]
		if !ok {
			return &ValidationError{Field: "metrics." + key, Reason: "not a valid field for " + eventType}
		}
		switch kind {
		case "number":
			switch val.(type) {
			case float64, int, int64:
			default:
				return &ValidationError{Field: "metrics." + key, Reason: "must be a number"}
			}
		case "string":
			if _, ok := val.(string); !ok {
				return &ValidationError{Field: "metrics." + key, Reason: "must be a string"}
			}
		}
	}
	for _, req := range requiredEventFields[eventType] {
		if _, ok := metrics[req]; !ok {
			return &ValidationError{Field: "metrics." + req, Reason: "required for " + eventType}
		}
	}
	return nil
}

type EventInput struct {
	EventType   string                 `json:"event_type"`
	StartTime   time.Time              `json:"start_time"`
	EndTime     *time.Time             `json:"end_time,omitempty"`
	Title       string                 `json:"title"`
	Description string                 `json:"description,omitempty"`
	Metrics     map[string]interface{} `json:"metrics,omitempty"`
	SourceApp   string                 `json:"source_app"`
	AppType     string                 `json:"app_type"`
}

func (s *HealthDataService) CreateEvent(ctx context.Context, userID uint, in EventInput) (*models.HealthEvent, error) {
	if in.StartTime.IsZero() {
		return nil, &ValidationError{Field: "start_time", Reason: "timestamp required"}
	}
	if in.EndTime != nil && in.EndTime.Before(in.StartTime) {
		return nil, &ValidationError{Field: "end_time", Reason: "must be on or after start_time"}
	}
	if err := ValidateEventMetrics(in.EventType, in.Metrics); err != nil {
		return nil, err
	}
	ev := &models.HealthEvent{
		UserID:       userID,
		EventType:    in.EventType,
		StartTime:    in.StartTime.UTC(),
		EndTime:      in.EndTime,
		Title:        in.Title,
		Description:  in.Description,
		Metrics:      models.JSONMap(in.Metrics),
		SourceApp:    in.SourceApp,
		QualityScore: QualityForSourceType(in.AppType),
	}
	if err := s.db.WithContext(ctx).Create(ev).Error; err != nil {
		return nil, &ExternalServiceError{Service: "database", Op: "create event", Err: err}
	}
	return ev, nil
}

func (s *HealthDataService) ListEvents(ctx context.Context, userID uint, eventType string, from, to time.Time) ([]models.HealthEvent, error) {
	db := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if eventType != "" {
		db = db.Where("event_type = ?", eventType)
	}
	if !from.IsZero() {
		db = db.Where("start_time >= ?", from)
	}
	if !to.IsZero() {
		db = db.Where("start_time <= ?", to)
	}
	var events []models.HealthEvent
	if err := db.Order("start_time DESC").Limit(200).Find(&events).Error; err != nil {
		return nil, &ExternalServiceError{Service: "database", Op: "list events", Err: err}
	}
	return events, nil
}

// SnapshotEntry is the latest canonical value for one metric.
type SnapshotEntry struct {
	Value      float64   `json:"value"`
	Unit       string    `json:"unit"`
	RecordedAt time.Time `json:"recorded_at"`
	SourceApp  string    `json:"source_app"`
}

// Snapshot fetches the latest canonical value per metric concurrently; a
// failed metric is simply absent from the result, the rest still land.
func (s *HealthDataService) Snapshot(ctx context.Context, userID uint) map[string]SnapshotEntry {
	metrics := AllMetricTypes()
	type keyed struct {
		metric string
		entry  SnapshotEntry
		ok     bool
	}
	results := make(chan keyed, len(metrics))

	var wg sync.WaitGroup
	for _, metric := range metrics {
		wg.Add(1)
		go func(metric string) {
			defer wg.Done()
			var rec models.HealthRecord
			err := s.db.WithContext(ctx).
				Where("user_id = ? AND metric_type = ? AND is_canonical = ?", userID, metric, true).
				Order("recorded_at DESC").
				First(&rec).Error
			if err != nil {
				results <- keyed{metric: metric}
				return
			}
			results <- keyed{metric: metric, ok: true, entry: SnapshotEntry{
				Value:      rec.Value,
				Unit:       rec.Unit,
				RecordedAt: rec.RecordedAt,
				SourceApp:  rec.SourceApp,
			}}
		}(metric)
	}
	wg.Wait()
	close(results)

	out := map[string]SnapshotEntry{}
	for r := range results {
		if r.ok {
			out[r.metric] = r.entry
		}
	}
	return out
}

// DeleteUserData removes every health row a user owns; called from account
// deletion. Returns counts per table for the audit response.
func (s *HealthDataService) DeleteUserData(ctx context.Context, userID uint) (map[string]int64, error) {
	counts := map[string]int64{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for name, model := range map[string]interface{}{
			"health_records":    &models.HealthRecord{},
			"health_events":     &models.HealthEvent{},
			"connected_sources": &models.ConnectedSource{},
			"uploaded_files":    &models.UploadedFile{},
			"alerts":            &models.Alert{},
		} {
			res := tx.Where("user_id = ?", userID).Delete(model)
			if res.Error != nil {
				return fmt.Errorf("delete %s: %w", name, res.Error)
			}
			counts[name] = res.RowsAffected
		}
		var convIDs []uint
		if err := tx.Model(&models.Conversation{}).
			Where("user_id = ?", userID).
			Pluck("id", &convIDs).Error; err != nil {
			return err
		}
		if len(convIDs) > 0 {
			if err := tx.Where("conversation_id IN ?", convIDs).Delete(&models.Message{}).Error; err != nil {
				return err
			}
		}
		res := tx.Where("user_id = ?", userID).Delete(&models.Conversation{})
		if res.Error != nil {
			return res.Error
		}
		counts["conversations"] = res.RowsAffected
		return nil
	})
	if err != nil {
		return nil, &ExternalServiceError{Service: "database", Op: "delete user data", Err: err}
	}
	return counts, nil
}
