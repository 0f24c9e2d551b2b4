package services

import (
	"time"

	"backend/models"
)

// RawRecord is a source observation exactly as a connected app reported it.
type RawRecord struct {
	Source       string                 `json:"source"`
	AppFieldName string                 `json:"app_field_name"`
	Value        float64                `json:"value"`
	Unit         string                 `json:"unit"`
	RecordedAt   time.Time              `json:"recorded_at"`
	SourceDevice string                 `json:"source_device,omitempty"`
	Description  string                 `json:"description,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// Normalize converts one raw record into the canonical schema. Pure: the
// caller persists. Conversion into the canonical unit happens here and only
// here; stored values are never converted again. A value of exactly 0 is
// valid data, not a missing reading.
func Normalize(raw RawRecord, sourceAppType string) (*models.HealthRecord, error) {
	if raw.RecordedAt.IsZero() {
		return nil, &ValidationError{Field: "recorded_at", Reason: "timestamp required"}
	}

	info, err := ResolveMetric(raw.Source, raw.AppFieldName)
	if err != nil {
		return nil, err
	}

	conv, err := ConversionFor(info.Type, raw.Unit)
	if err != nil {
		return nil, err
	}

	rec := &models.HealthRecord{
		MetricType:   info.Type,
		Value:        conv.Apply(raw.Value),
		Unit:         info.CanonicalUnit,
		RecordedAt:   raw.RecordedAt.UTC(),
		SourceApp:    raw.Source,
		SourceDevice: raw.SourceDevice,
		QualityScore: QualityForSourceType(sourceAppType),
		// Provisional; the dedup pass decides the final flag.
		IsCanonical: true,
		Description: raw.Description,
		Metadata:    models.JSONMap(raw.Metadata),
	}
	return rec, nil
}

// BatchResult reports a partial-success normalization pass. A record the
// registry cannot map is skipped and noted; it never aborts the batch.
type BatchResult struct {
	Records []*models.HealthRecord
	Skipped []SkippedRecord
}

type SkippedRecord struct {
	Index  int    `json:"index"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func NormalizeBatch(raws []RawRecord, sourceAppType string) BatchResult {
	var out BatchResult
	for i, raw := range raws {
		rec, err := Normalize(raw, sourceAppType)
		if err != nil {
			out.Skipped = append(out.Skipped, SkippedRecord{
				Index:  i,
				Field:  raw.AppFieldName,
				Reason: err.Error(),
			})
			continue
		}
		out.Records = append(out.Records, rec)
	}
	return out
}
