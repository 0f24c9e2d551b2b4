package services

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"backend/models"

	"github.com/pkoukk/tiktoken-go"
	"gorm.io/gorm"
)

const (
	maxContextRecords = 100
	maxContextEvents  = 25
	contextTokenBudget = 1500
	defaultWindowDays = 30
)

// HealthContext is the bounded slice of a user's history injected into the
// model prompt. Absence of data is a valid context, not an error.
type HealthContext struct {
	HasHealthData bool     `json:"hasHealthData"`
	DataTypes     []string `json:"dataTypes"`
	TimeRange     struct {
		From time.Time `json:"from"`
		To   time.Time `json:"to"`
	} `json:"timeRange"`
	RecordCount int    `json:"recordCount"`
	Summary     string `json:"summary"`
}

// RAGService turns a free-text question into relevant canonical records and
// a compact textual context block.
type RAGService struct {
	db *gorm.DB
}

func NewRAGService(db *gorm.DB) *RAGService { return &RAGService{db: db} }

// RetrieveContext classifies the query, fetches matching canonical rows, and
// serializes them. Degrades gracefully: no matching data yields
// HasHealthData=false with an empty summary block.
func (s *RAGService) RetrieveContext(ctx context.Context, userID uint, query string) (*HealthContext, error) {
	metrics := ClassifyMetrics(query)
	from, to := ClassifyWindow(query, time.Now().UTC())

	out := &HealthContext{}
	out.TimeRange.From = from
	out.TimeRange.To = to

	q := s.db.WithContext(ctx).
		Where("user_id = ? AND is_canonical = ? AND recorded_at >= ? AND recorded_at <= ?",
			userID, true, from, to)
	if len(metrics) > 0 {
		q = q.Where("metric_type IN ?", metrics)
	}
	var records []models.HealthRecord
	if err := q.Order("recorded_at DESC").Limit(maxContextRecords).Find(&records).Error; err != nil {
		return nil, &ExternalServiceError{Service: "database", Op: "fetch health records", Err: err}
	}

	var events []models.HealthEvent
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND start_time >= ? AND start_time <= ?", userID, from, to).
		Order("start_time DESC").
		Limit(maxContextEvents).
		Find(&events).Error; err != nil {
		return nil, &ExternalServiceError{Service: "database", Op: "fetch health events", Err: err}
	}

	if len(records) == 0 && len(events) == 0 {
		return out, nil
	}

	out.HasHealthData = true
	out.RecordCount = len(records) + len(events)
	out.DataTypes = dataTypes(records, events)
	out.Summary = serializeContext(records, events, from, to)
	return out, nil
}

// ClassifyMetrics matches the query against the registry vocabulary. An empty
// result means no specific metric was implied and all types are in scope.
func ClassifyMetrics(query string) []string {
	q := strings.ToLower(query)
	seen := map[string]bool{}
	var out []string
	for metric, keywords := range queryVocabulary {
		for _, kw := range keywords {
			if strings.Contains(q, kw) {
				if !seen[metric] {
					seen[metric] = true
					out = append(out, metric)
				}
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

var lastNDaysRe = regexp.MustCompile(`(?:last|past)\s+(\d{1,3})\s+days?`)

// ClassifyWindow derives the implied time window; default 30 days.
func ClassifyWindow(query string, now time.Time) (from, to time.Time) {
	q := strings.ToLower(query)
	to = now

	if m := lastNDaysRe.FindStringSubmatch(q); m != nil {
		days := 0
		fmt.Sscanf(m[1], "%d", &days)
		if days > 0 {
			return now.AddDate(0, 0, -days), to
		}
	}

	switch {
	case strings.Contains(q, "today"):
		from = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	case strings.Contains(q, "yesterday"):
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
		return start, start.AddDate(0, 0, 1)
	case strings.Contains(q, "last week"), strings.Contains(q, "past week"), strings.Contains(q, "this week"):
		from = now.AddDate(0, 0, -7)
	case strings.Contains(q, "last month"), strings.Contains(q, "past month"), strings.Contains(q, "this month"):
		from = now.AddDate(0, -1, 0)
	case strings.Contains(q, "last year"), strings.Contains(q, "past year"):
		from = now.AddDate(-1, 0, 0)
	default:
		from = now.AddDate(0, 0, -defaultWindowDays)
	}
	return from, to
}

func dataTypes(records []models.HealthRecord, events []models.HealthEvent) []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range records {
		if !seen[r.MetricType] {
			seen[r.MetricType] = true
			out = append(out, r.MetricType)
		}
	}
	for _, e := range events {
		key := "event:" + e.EventType
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

// serializeContext renders records as compact lines (not raw JSON), grouped by
// metric, newest first, trimmed to the token budget.
func serializeContext(records []models.HealthRecord, events []models.HealthEvent, from, to time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Health data from %s to %s:\n", from.Format("2006-01-02"), to.Format("2006-01-02"))

	byMetric := map[string][]models.HealthRecord{}
	var order []string
	for _, r := range records {
		if len(byMetric[r.MetricType]) == 0 {
			order = append(order, r.MetricType)
		}
		byMetric[r.MetricType] = append(byMetric[r.MetricType], r)
	}
	sort.Strings(order)

	var lines []string
	for _, metric := range order {
		lines = append(lines, fmt.Sprintf("%s (%s):", metric, CanonicalUnit(metric)))
		for _, r := range byMetric[metric] {
			lines = append(lines, fmt.Sprintf("- %s: %.2f %s [%s]",
				r.RecordedAt.Format("2006-01-02 15:04"), r.Value, r.Unit, r.SourceApp))
		}
	}
	for _, e := range events {
		line := fmt.Sprintf("- %s %s: %s", e.StartTime.Format("2006-01-02"), e.EventType, e.Title)
		if e.Description != "" {
			line += " (" + e.Description + ")"
		}
		lines = append(lines, line)
	}

	budget := contextTokenBudget - tokenCount(b.String())
	for _, line := range lines {
		cost := tokenCount(line)
		if cost > budget {
			b.WriteString("(older entries omitted)\n")
			break
		}
		b.WriteString(line)
		b.WriteByte('\n')
		budget -= cost
	}
	return b.String()
}

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

// tokenCount measures prompt size with the cl100k_base encoding, falling back
// to a bytes/4 estimate when the encoding is unavailable.
func tokenCount(s string) int {
	encOnce.Do(func() {
		enc, _ = tiktoken.GetEncoding("cl100k_base")
	})
	if enc == nil {
		return len(s) / 4
	}
	return len(enc.Encode(s, nil, nil))
}
