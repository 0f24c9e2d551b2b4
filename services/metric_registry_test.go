package services

import (
	"errors"
	"math"
	"testing"
)

func TestResolveMetric(t *testing.T) {
	tests := []struct {
		source     string
		field      string
		wantMetric string
		wantUnit   string
	}{
		{"apple_health", "HKQuantityTypeIdentifierBodyMass", MetricWeight, "kg"},
		{"google_fit", "com.google.step_count.delta", MetricSteps, "count"},
		{"fitbit", "heart_rate", MetricHeartRate, "bpm"},
		{"manual", "blood_glucose", MetricBloodGlucose, "mg/dL"},
		{"file_upload", "tsh", MetricTSH, "mIU/L"},
	}

	for _, tt := range tests {
		t.Run(tt.source+"/"+tt.field, func(t *testing.T) {
			info, err := ResolveMetric(tt.source, tt.field)
			if err != nil {
				t.Fatalf("ResolveMetric() error = %v", err)
			}
			if info.Type != tt.wantMetric {
				t.Errorf("Type = %s, want %s", info.Type, tt.wantMetric)
			}
			if info.CanonicalUnit != tt.wantUnit {
				t.Errorf("CanonicalUnit = %s, want %s", info.CanonicalUnit, tt.wantUnit)
			}
		})
	}
}

func TestResolveMetricUnknown(t *testing.T) {
	tests := []struct {
		source string
		field  string
	}{
		{"apple_health", "HKQuantityTypeIdentifierNose"},
		{"unknown_vendor", "weight"},
		{"fitbit", ""},
	}

	for _, tt := range tests {
		_, err := ResolveMetric(tt.source, tt.field)
		var ume *UnknownMetricError
		if !errors.As(err, &ume) {
			t.Errorf("ResolveMetric(%q, %q) = %v, want UnknownMetricError", tt.source, tt.field, err)
		}
	}
}

func TestUnitConversionRoundTrip(t *testing.T) {
	tests := []struct {
		metric string
		unit   string
		value  float64
	}{
		{MetricWeight, "lbs", 181.9},
		{MetricWeight, "kg", 82.5},
		{MetricDistance, "mi", 3.1},
		{MetricBodyTemp, "fahrenheit", 98.6},
		{MetricBloodGlucose, "mmol/L", 5.4},
		{MetricSleepDuration, "minutes", 451},
	}

	const tol = 1e-6
	for _, tt := range tests {
		t.Run(tt.metric+"/"+tt.unit, func(t *testing.T) {
			conv, err := ConversionFor(tt.metric, tt.unit)
			if err != nil {
				t.Fatalf("ConversionFor() error = %v", err)
			}
			back := conv.Invert(conv.Apply(tt.value))
			if math.Abs(back-tt.value) > tol {
				t.Errorf("round trip %v → %v, diff %g", tt.value, back, math.Abs(back-tt.value))
			}
		})
	}
}

func TestConversionForUnknownUnit(t *testing.T) {
	_, err := ConversionFor(MetricWeight, "stone-ish")
	var mme *UnitMismatchError
	if !errors.As(err, &mme) {
		t.Fatalf("got %v, want UnitMismatchError", err)
	}
}

func TestBucketGranularity(t *testing.T) {
	tests := []struct {
		metric string
		want   string
	}{
		{MetricHeartRate, BucketMinute},
		{MetricWeight, BucketMinute},
		{MetricSteps, BucketDay},
		{MetricActiveCalories, BucketDay},
		{MetricWaterIntake, BucketDay},
	}
	for _, tt := range tests {
		if got := bucketForMetric(tt.metric); got != tt.want {
			t.Errorf("bucketForMetric(%s) = %s, want %s", tt.metric, got, tt.want)
		}
	}
}

func TestQualityForSourceType(t *testing.T) {
	tests := []struct {
		appType string
		want    float64
	}{
		{"device", 1.0},
		{"app", 0.95},
		{"manual", 0.7},
		{"estimate", 0.5},
		{"", 0.5},
	}
	for _, tt := range tests {
		if got := QualityForSourceType(tt.appType); got != tt.want {
			t.Errorf("QualityForSourceType(%q) = %v, want %v", tt.appType, got, tt.want)
		}
	}
}

func TestEveryMetricHasCanonicalUnitConversion(t *testing.T) {
	for _, metric := range AllMetricTypes() {
		unit := CanonicalUnit(metric)
		if unit == "" {
			t.Errorf("metric %s has no canonical unit", metric)
			continue
		}
		conv, err := ConversionFor(metric, unit)
		if err != nil {
			t.Errorf("metric %s has no identity conversion for %s", metric, unit)
			continue
		}
		if conv.Apply(42) != 42 {
			t.Errorf("canonical unit conversion for %s is not identity", metric)
		}
	}
}
