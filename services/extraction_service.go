package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
)

// ExtractedHealthData is the structured result of running a document through
// the extraction model.
type ExtractedHealthData struct {
	Confidence     float64           `json:"confidence"`
	Summary        string            `json:"summary"`
	Metrics        []ExtractedMetric `json:"metrics"`
	DateRangeStart string            `json:"date_range_start"` // YYYY-MM-DD
	DateRangeEnd   string            `json:"date_range_end"`
}

type ExtractedMetric struct {
	Category    string  `json:"category"` // registry "file_upload" vocabulary
	Value       float64 `json:"value"`
	Unit        string  `json:"unit"`
	RecordedAt  string  `json:"recorded_at"` // YYYY-MM-DD or RFC3339
	Description string  `json:"description,omitempty"`
}

// Categories lists the distinct metric categories found, sorted as seen.
func (d *ExtractedHealthData) Categories() []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range d.Metrics {
		if !seen[m.Category] {
			seen[m.Category] = true
			out = append(out, m.Category)
		}
	}
	return out
}

// Extractor is the document-understanding capability the ingestion pipeline
// delegates to. It is the pipeline's only non-deterministic, high-latency
// step; implementations must distinguish transport failures
// (ExternalServiceError) from usable-but-uncertain answers
// (LowConfidenceError).
type Extractor interface {
	Extract(ctx context.Context, data []byte, filename, mimeType string) (*ExtractedHealthData, error)
}

// ExtractionService sends the document to a multimodal model and asks for the
// health facts back as JSON.
type ExtractionService struct {
	llm           llms.Model
	minConfidence float64
	timeout       time.Duration
}

func NewExtractionService() (*ExtractionService, error) {
	opts := []openai.Option{
		openai.WithToken(os.Getenv("OPENAI_API_KEY")),
	}
	if model := os.Getenv("EXTRACTION_MODEL"); model != "" {
		opts = append(opts, openai.WithModel(model))
	}
	if base := os.Getenv("OPENAI_BASE_URL"); base != "" {
		opts = append(opts, openai.WithBaseURL(base))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}
	return &ExtractionService{llm: llm, minConfidence: 0.5, timeout: 60 * time.Second}, nil
}

const extractionPrompt = `You are a medical document reader. Extract every numeric health measurement from the attached document.

Respond with only a JSON object:
{
  "confidence": 0.0-1.0,
  "summary": "one sentence describing the document",
  "date_range_start": "YYYY-MM-DD or empty",
  "date_range_end": "YYYY-MM-DD or empty",
  "metrics": [
    {"category": "weight|heart_rate|blood_pressure_systolic|blood_pressure_diastolic|blood_glucose|tsh|body_temperature",
     "value": 0.0, "unit": "as printed", "recorded_at": "YYYY-MM-DD", "description": "context"}
  ]
}

Use only the listed category names. Omit measurements you cannot read confidently and lower "confidence" accordingly.`

func (s *ExtractionService) Extract(ctx context.Context, data []byte, filename, mimeType string) (*ExtractedHealthData, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	parts := []llms.ContentPart{llms.TextPart(extractionPrompt)}
	if strings.HasPrefix(mimeType, "text/") {
		parts = append(parts, llms.TextPart(fmt.Sprintf("Document %s:\n%s", filename, string(data))))
	} else {
		parts = append(parts, llms.BinaryPart(mimeType, data))
	}

	resp, err := s.llm.GenerateContent(ctx,
		[]llms.MessageContent{{Role: schema.ChatMessageTypeHuman, Parts: parts}},
		llms.WithTemperature(0),
	)
	if err != nil {
		return nil, &ExternalServiceError{Service: "extraction", Op: "analyze document", Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &ExternalServiceError{Service: "extraction", Op: "analyze document", Err: fmt.Errorf("empty completion")}
	}

	var out ExtractedHealthData
	if err := json.Unmarshal([]byte(stripCodeFence(resp.Choices[0].Content)), &out); err != nil {
		return nil, &ExternalServiceError{Service: "extraction", Op: "parse extraction result", Err: err}
	}
	if out.Confidence < s.minConfidence {
		return nil, &LowConfidenceError{Confidence: out.Confidence, Threshold: s.minConfidence}
	}
	return &out, nil
}

// models wrap JSON in markdown fences often enough that we strip them here
// rather than failing the parse.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
