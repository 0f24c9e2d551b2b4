package services

import (
	"context"
	"time"

	"backend/models"

	"gorm.io/gorm"
)

// DedupService re-resolves which record is canonical for every
// (user, metric_type, time-bucket) where several sources contributed.
// Runs after each sync batch; relies on per-row update atomicity, no
// application-level lock.
type DedupService struct {
	db *gorm.DB
}

func NewDedupService(db *gorm.DB) *DedupService { return &DedupService{db: db} }

type DedupResult struct {
	Promoted int             `json:"promoted"`
	Demoted  int             `json:"demoted"`
	Failed   []MetricFailure `json:"failed,omitempty"`
}

type MetricFailure struct {
	MetricType string `json:"metric_type"`
	Reason     string `json:"reason"`
}

// RunDeduplicationCheck walks each metric type independently so a failure in
// one does not abort the others. sourceApp non-empty scopes the pass to
// buckets that source contributed to; metricTypes empty means the full
// taxonomy. Idempotent: a second run over unchanged data flips nothing.
func (s *DedupService) RunDeduplicationCheck(ctx context.Context, userID uint, sourceApp string, metricTypes []string) (*DedupResult, error) {
	if len(metricTypes) == 0 {
		metricTypes = AllMetricTypes()
	}

	lastSync, err := s.sourceSyncTimes(ctx, userID)
	if err != nil {
		return nil, &ExternalServiceError{Service: "database", Op: "load connected sources", Err: err}
	}

	out := &DedupResult{}
	for _, metric := range metricTypes {
		if !KnownMetric(metric) {
			out.Failed = append(out.Failed, MetricFailure{MetricType: metric, Reason: "unknown metric type"})
			continue
		}
		promoted, demoted, err := s.dedupMetric(ctx, userID, sourceApp, metric, lastSync)
		if err != nil {
			out.Failed = append(out.Failed, MetricFailure{MetricType: metric, Reason: err.Error()})
			continue
		}
		out.Promoted += promoted
		out.Demoted += demoted
	}
	return out, nil
}

func (s *DedupService) dedupMetric(ctx context.Context, userID uint, sourceApp, metric string, lastSync map[string]time.Time) (promoted, demoted int, err error) {
	var records []models.HealthRecord
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND metric_type = ?", userID, metric).
		Order("recorded_at ASC, id ASC").
		Find(&records).Error; err != nil {
		return 0, 0, err
	}

	buckets := map[string][]models.HealthRecord{}
	touched := map[string]bool{}
	for _, r := range records {
		key := BucketKey(metric, r.RecordedAt)
		buckets[key] = append(buckets[key], r)
		if sourceApp == "" || r.SourceApp == sourceApp {
			touched[key] = true
		}
	}

	for key, group := range buckets {
		if !touched[key] {
			continue
		}
		winner := ResolveCanonical(group, lastSync)
		for i, r := range group {
			want := i == winner
			if r.IsCanonical == want {
				continue
			}
			if err := s.db.WithContext(ctx).
				Model(&models.HealthRecord{}).
				Where("id = ?", r.ID).
				Update("is_canonical", want).Error; err != nil {
				return promoted, demoted, err
			}
			if want {
				promoted++
			} else {
				demoted++
			}
		}
	}
	return promoted, demoted, nil
}

// BucketKey collapses a timestamp to the metric's dedup granularity, in UTC.
func BucketKey(metric string, t time.Time) string {
	t = t.UTC()
	if bucketForMetric(metric) == BucketDay {
		return t.Format("2006-01-02")
	}
	return t.Truncate(time.Minute).Format("2006-01-02T15:04")
}

// ResolveCanonical picks the index of the winning record in a bucket.
// Tie-break order: higher quality score, then most recently synced source,
// then lowest source_app name (arbitrary but deterministic).
func ResolveCanonical(group []models.HealthRecord, lastSync map[string]time.Time) int {
	winner := 0
	for i := 1; i < len(group); i++ {
		if beats(group[i], group[winner], lastSync) {
			winner = i
		}
	}
	return winner
}

func beats(a, b models.HealthRecord, lastSync map[string]time.Time) bool {
	if a.QualityScore != b.QualityScore {
		return a.QualityScore > b.QualityScore
	}
	as, bs := lastSync[a.SourceApp], lastSync[b.SourceApp]
	if !as.Equal(bs) {
		return as.After(bs)
	}
	return a.SourceApp < b.SourceApp
}

func (s *DedupService) sourceSyncTimes(ctx context.Context, userID uint) (map[string]time.Time, error) {
	var sources []models.ConnectedSource
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&sources).Error; err != nil {
		return nil, err
	}
	out := make(map[string]time.Time, len(sources))
	for _, src := range sources {
		if src.LastSync != nil {
			out[src.AppName] = *src.LastSync
		}
	}
	return out, nil
}
