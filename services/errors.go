package services

import (
	"errors"
	"fmt"
)

// Error taxonomy for the ingestion/normalization/dedup pipeline. Component
// functions return these instead of throwing across pipeline boundaries;
// controllers map them to HTTP statuses. Batch operations collect per-record
// errors and keep going.

// ValidationError is user-correctable bad input (shape, size, type).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// UnknownMetricError means the registry has no canonical mapping for a
// (source, field) pair. The record is skipped, never silently passed through.
type UnknownMetricError struct {
	Source string
	Field  string
}

func (e *UnknownMetricError) Error() string {
	return fmt.Sprintf("unknown metric: no mapping for field %q from source %q", e.Field, e.Source)
}

// UnitMismatchError means the declared unit has no converter for the
// resolved metric.
type UnitMismatchError struct {
	Metric string
	Unit   string
}

func (e *UnitMismatchError) Error() string {
	return fmt.Sprintf("unit mismatch: no conversion from %q for metric %q", e.Unit, e.Metric)
}

// ExternalServiceError wraps a failed database/storage/model/extraction call.
// Surfaces as a 500-class response; no automatic retry.
type ExternalServiceError struct {
	Service string // "database" | "storage" | "model" | "extraction"
	Op      string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Service, e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// LowConfidenceError means the extraction service answered but below the
// confidence floor; distinct from a transport failure so callers can tell
// "retry later" from "this document is not usable".
type LowConfidenceError struct {
	Confidence float64
	Threshold  float64
}

func (e *LowConfidenceError) Error() string {
	return fmt.Sprintf("extraction confidence %.2f below threshold %.2f", e.Confidence, e.Threshold)
}

// NotFoundError covers resources that are absent or not owned by the caller.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string { return e.Resource + " not found" }

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	var um *UnknownMetricError
	var mm *UnitMismatchError
	return errors.As(err, &ve) || errors.As(err, &um) || errors.As(err, &mm)
}
