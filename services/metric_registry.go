package services

import (
	"strings"
)

// Canonical metric taxonomy. Every source vocabulary (HealthKit identifiers,
// Google Fit data types, Fitbit/Garmin field names, manual entry, file
// extraction categories) resolves into one of these before anything is stored.

const (
	MetricWeight        = "weight"            // kg
	MetricBodyFat       = "body_fat"          // percent
	MetricHeartRate     = "heart_rate"        // bpm
	MetricRestingHR     = "resting_heart_rate"// bpm
	MetricBloodPressureSys = "blood_pressure_systolic"  // mmHg
	MetricBloodPressureDia = "blood_pressure_diastolic" // mmHg
	MetricBloodGlucose  = "blood_glucose"     // mg/dL
	MetricBodyTemp      = "body_temperature"  // celsius
	MetricTSH           = "tsh"               // mIU/L
	MetricSteps         = "steps"             // count
	MetricDistance      = "distance"          // km
	MetricActiveCalories = "active_calories"  // kcal
	MetricSleepDuration = "sleep_duration"    // hours
	MetricWaterIntake   = "water_intake"      // ml
)

// Bucket granularity for deduplication: instantaneous metrics collapse at
// minute resolution, cumulative daily metrics at calendar-day resolution.
const (
	BucketMinute = "minute"
	BucketDay    = "day"
)

// UnitConversion maps a declared unit into the canonical unit:
// canonical = value*Scale + Offset. Affine so fahrenheit works too.
type UnitConversion struct {
	Scale  float64
	Offset float64
}

func (c UnitConversion) Apply(v float64) float64 { return v*c.Scale + c.Offset }

// Invert recovers the source-unit value; used by tests and display code.
func (c UnitConversion) Invert(v float64) float64 { return (v - c.Offset) / c.Scale }

// MetricInfo is what a registry lookup returns.
type MetricInfo struct {
	Type          string
	CanonicalUnit string
	Bucket        string
}

var metricUnits = map[string]string{
	MetricWeight:           "kg",
	MetricBodyFat:          "percent",
	MetricHeartRate:        "bpm",
	MetricRestingHR:        "bpm",
	MetricBloodPressureSys: "mmHg",
	MetricBloodPressureDia: "mmHg",
	MetricBloodGlucose:     "mg/dL",
	MetricBodyTemp:         "celsius",
	MetricTSH:              "mIU/L",
	MetricSteps:            "count",
	MetricDistance:         "km",
	MetricActiveCalories:   "kcal",
	MetricSleepDuration:    "hours",
	MetricWaterIntake:      "ml",
}

// Cumulative metrics bucket by calendar day; everything else by minute.
var dailyBucketMetrics = map[string]bool{
	MetricSteps:          true,
	MetricDistance:       true,
	MetricActiveCalories: true,
	MetricSleepDuration:  true,
	MetricWaterIntake:    true,
}

// unitConversions[metric][declared unit] → conversion into the canonical unit.
// The identity entry for the canonical unit itself is always present, so a
// record already in canonical units passes through unchanged. Conversion is
// applied exactly once, at normalization.
var unitConversions = map[string]map[string]UnitConversion{
	MetricWeight: {
		"kg":  {Scale: 1},
		"g":   {Scale: 0.001},
		"lbs": {Scale: 1.0 / 2.20462},
		"st":  {Scale: 6.35029},
	},
	MetricBodyFat: {
		"percent": {Scale: 1},
		"ratio":   {Scale: 100},
	},
	MetricHeartRate:        {"bpm": {Scale: 1}},
	MetricRestingHR:        {"bpm": {Scale: 1}},
	MetricBloodPressureSys: {"mmHg": {Scale: 1}},
	MetricBloodPressureDia: {"mmHg": {Scale: 1}},
	MetricBloodGlucose: {
		"mg/dL":  {Scale: 1},
		"mmol/L": {Scale: 18.0182},
	},
	MetricBodyTemp: {
		"celsius":    {Scale: 1},
		"fahrenheit": {Scale: 5.0 / 9.0, Offset: -32.0 * 5.0 / 9.0},
	},
	MetricTSH: {
		"mIU/L": {Scale: 1},
		"uIU/mL": {Scale: 1}, // numerically identical
	},
	MetricSteps: {"count": {Scale: 1}},
	MetricDistance: {
		"km": {Scale: 1},
		"m":  {Scale: 0.001},
		"mi": {Scale: 1.0 / 0.621371},
	},
	MetricActiveCalories: {
		"kcal": {Scale: 1},
		"kJ":   {Scale: 1.0 / 4.184},
	},
	MetricSleepDuration: {
		"hours":   {Scale: 1},
		"minutes": {Scale: 1.0 / 60.0},
	},
	MetricWaterIntake: {
		"ml":     {Scale: 1},
		"l":      {Scale: 1000},
		"oz":     {Scale: 29.5735},
		"glasses": {Scale: 250}, // 250ml glass
	},
}

// sourceFields maps (source system, source field) → canonical metric. Closed:
// anything not listed fails with UnknownMetricError.
var sourceFields = map[string]map[string]string{
	"apple_health": {
		"HKQuantityTypeIdentifierBodyMass":            MetricWeight,
		"HKQuantityTypeIdentifierBodyFatPercentage":   MetricBodyFat,
		"HKQuantityTypeIdentifierHeartRate":           MetricHeartRate,
		"HKQuantityTypeIdentifierRestingHeartRate":    MetricRestingHR,
		"HKQuantityTypeIdentifierBloodPressureSystolic":  MetricBloodPressureSys,
		"HKQuantityTypeIdentifierBloodPressureDiastolic": MetricBloodPressureDia,
		"HKQuantityTypeIdentifierBloodGlucose":        MetricBloodGlucose,
		"HKQuantityTypeIdentifierBodyTemperature":     MetricBodyTemp,
		"HKQuantityTypeIdentifierStepCount":           MetricSteps,
		"HKQuantityTypeIdentifierDistanceWalkingRunning": MetricDistance,
		"HKQuantityTypeIdentifierActiveEnergyBurned":  MetricActiveCalories,
		"HKCategoryTypeIdentifierSleepAnalysis":       MetricSleepDuration,
		"HKQuantityTypeIdentifierDietaryWater":        MetricWaterIntake,
	},
	"google_fit": {
		"com.google.weight":             MetricWeight,
		"com.google.body.fat.percentage": MetricBodyFat,
		"com.google.heart_rate.bpm":     MetricHeartRate,
		"com.google.blood_glucose":      MetricBloodGlucose,
		"com.google.body.temperature":   MetricBodyTemp,
		"com.google.step_count.delta":   MetricSteps,
		"com.google.distance.delta":     MetricDistance,
		"com.google.calories.expended":  MetricActiveCalories,
		"com.google.sleep.segment":      MetricSleepDuration,
		"com.google.hydration":          MetricWaterIntake,
	},
	"fitbit": {
		"weight":          MetricWeight,
		"fat":             MetricBodyFat,
		"heart_rate":      MetricHeartRate,
		"resting_heart_rate": MetricRestingHR,
		"steps":           MetricSteps,
		"distance":        MetricDistance,
		"calories_out":    MetricActiveCalories,
		"sleep_minutes":   MetricSleepDuration,
		"water":           MetricWaterIntake,
	},
	"garmin": {
		"weight":        MetricWeight,
		"heart_rate":    MetricHeartRate,
		"resting_hr":    MetricRestingHR,
		"steps":         MetricSteps,
		"distance":      MetricDistance,
		"active_kcal":   MetricActiveCalories,
		"sleep_seconds": MetricSleepDuration,
	},
	"manual": {
		"weight":         MetricWeight,
		"body_fat":       MetricBodyFat,
		"heart_rate":     MetricHeartRate,
		"blood_pressure_systolic":  MetricBloodPressureSys,
		"blood_pressure_diastolic": MetricBloodPressureDia,
		"blood_glucose":  MetricBloodGlucose,
		"body_temperature": MetricBodyTemp,
		"steps":          MetricSteps,
		"distance":       MetricDistance,
		"sleep_duration": MetricSleepDuration,
		"water_intake":   MetricWaterIntake,
	},
	// Categories the document extraction service emits.
	"file_upload": {
		"weight":        MetricWeight,
		"heart_rate":    MetricHeartRate,
		"blood_pressure_systolic":  MetricBloodPressureSys,
		"blood_pressure_diastolic": MetricBloodPressureDia,
		"blood_glucose": MetricBloodGlucose,
		"tsh":           MetricTSH,
		"body_temperature": MetricBodyTemp,
	},
}

// garmin reports sleep in seconds, not minutes
func init() {
	unitConversions[MetricSleepDuration]["seconds"] = UnitConversion{Scale: 1.0 / 3600.0}
}

// queryVocabulary drives the RAG classifier: lowercase keywords → metric.
var queryVocabulary = map[string][]string{
	MetricWeight:           {"weight", "weigh", "weighed", "kg", "lbs", "pounds", "kilograms"},
	MetricBodyFat:          {"body fat", "fat percentage"},
	MetricHeartRate:        {"heart rate", "pulse", "bpm"},
	MetricRestingHR:        {"resting heart"},
	MetricBloodPressureSys: {"blood pressure", "systolic", "hypertension"},
	MetricBloodPressureDia: {"blood pressure", "diastolic"},
	MetricBloodGlucose:     {"glucose", "blood sugar", "sugar level"},
	MetricBodyTemp:         {"temperature", "fever"},
	MetricTSH:              {"tsh", "thyroid"},
	MetricSteps:            {"steps", "walked", "walking", "step count"},
	MetricDistance:         {"distance", "ran", "running", "km", "miles"},
	MetricActiveCalories:   {"calories", "burned", "energy"},
	MetricSleepDuration:    {"sleep", "slept", "sleeping"},
	MetricWaterIntake:      {"water", "hydration", "drank"},
}

// ResolveMetric looks up the canonical metric for a source-specific field.
func ResolveMetric(source, field string) (MetricInfo, error) {
	fields, ok := sourceFields[strings.ToLower(strings.TrimSpace(source))]
	if !ok {
		return MetricInfo{}, &UnknownMetricError{Source: source, Field: field}
	}
	metric, ok := fields[strings.TrimSpace(field)]
	if !ok {
		return MetricInfo{}, &UnknownMetricError{Source: source, Field: field}
	}
	return MetricInfo{
		Type:          metric,
		CanonicalUnit: metricUnits[metric],
		Bucket:        bucketForMetric(metric),
	}, nil
}

// ConversionFor returns the converter from a declared unit into the metric's
// canonical unit.
func ConversionFor(metric, unit string) (UnitConversion, error) {
	convs, ok := unitConversions[metric]
	if !ok {
		return UnitConversion{}, &UnitMismatchError{Metric: metric, Unit: unit}
	}
	c, ok := convs[strings.TrimSpace(unit)]
	if !ok {
		return UnitConversion{}, &UnitMismatchError{Metric: metric, Unit: unit}
	}
	return c, nil
}

// CanonicalUnit returns the storage unit for a metric, "" if unknown.
func CanonicalUnit(metric string) string { return metricUnits[metric] }

// KnownMetric reports whether a metric type exists in the taxonomy.
func KnownMetric(metric string) bool {
	_, ok := metricUnits[metric]
	return ok
}

// AllMetricTypes lists the taxonomy; used by snapshot fetches and validation.
func AllMetricTypes() []string {
	out := make([]string, 0, len(metricUnits))
	for m := range metricUnits {
		out = append(out, m)
	}
	return out
}

func bucketForMetric(metric string) string {
	if dailyBucketMetrics[metric] {
		return BucketDay
	}
	return BucketMinute
}

// QualityForSourceType returns the tier score used to break dedup ties.
func QualityForSourceType(appType string) float64 {
	switch strings.ToLower(strings.TrimSpace(appType)) {
	case "device":
		return 1.0
	case "app", "specialized_app":
		return 0.95
	case "manual":
		return 0.7
	case "estimate":
		return 0.5
	default:
		return 0.5
	}
}
