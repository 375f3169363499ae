// Package prediction implements the crop price prediction pipeline: the
// canonical feature schema, the deterministic preprocessing transform
// (standardization + one-hot encoding), the random-forest regressor loaded
// from a trained artifact, and the serving layer that derives per-unit price
// and confidence statistics from the raw point estimate.
package prediction

import "kisaanconnect/internal/types"

// Canonical column names. These must match the column names under which the
// model was trained; the artifact loader rejects any column spec that refers
// to a name outside this set.
const (
	ColCropName    = "crop_name"
	ColQuantity    = "quantity"
	ColSeason      = "season"
	ColRegion      = "region"
	ColRainFall    = "rain_fall"
	ColTemperature = "temperature"
	ColSoilQuality = "soil_quality"
)

// Defaults substituted for absent optional fields before featurization.
const (
	DefaultRainFall    = 0.0
	DefaultTemperature = 0.0
	DefaultSoilQuality = "Medium"
)

// PredictionRequest is the inbound record for a price prediction. The three
// optional fields are pointers so that "absent" and "zero" remain
// distinguishable; the confidence level depends on which of them were absent
// in the original request.
type PredictionRequest struct {
	CropName    string   `json:"crop_name" validate:"required"`
	Quantity    float64  `json:"quantity" validate:"required,gt=0"`
	Season      string   `json:"season" validate:"required"`
	Region      string   `json:"region" validate:"required"`
	RainFall    *float64 `json:"rain_fall,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	SoilQuality *string  `json:"soil_quality,omitempty"`
}

// Validate enforces the boundary constraints: required string fields must be
// non-empty and quantity must be strictly positive. Optional fields are never
// validated; any subset may be absent.
func (r *PredictionRequest) Validate() error {
	for _, f := range []struct {
		name  string
		value string
	}{
		{ColCropName, r.CropName},
		{ColSeason, r.Season},
		{ColRegion, r.Region},
	} {
		if f.value == "" {
			return types.NewAppErrorWithDetails(
				types.ErrCodeValidationMissingField,
				f.name+" is required",
				nil,
				map[string]any{"field": f.name},
			)
		}
	}
	if r.Quantity <= 0 {
		return types.NewAppError(
			types.ErrCodeValidationQuantity,
			"quantity must be greater than zero",
			nil,
		)
	}
	return nil
}

// MissingOptionalCount returns how many of {rain_fall, temperature,
// soil_quality} were absent in the original request. The count is taken
// before default substitution so that normalization never inflates the
// reported confidence.
func (r *PredictionRequest) MissingOptionalCount() int {
	n := 0
	if r.RainFall == nil {
		n++
	}
	if r.Temperature == nil {
		n++
	}
	if r.SoilQuality == nil {
		n++
	}
	return n
}

// NormalizedRecord is a PredictionRequest with defaults substituted for any
// absent optional fields. It is created per request, immutable, and discarded
// after featurization.
type NormalizedRecord struct {
	CropName    string
	Quantity    float64
	Season      string
	Region      string
	RainFall    float64
	Temperature float64
	SoilQuality string
}

// Normalize fills the documented defaults for absent optional fields:
// rain_fall -> 0, temperature -> 0, soil_quality -> "Medium". No other
// transformation is applied. Pure function.
func Normalize(r *PredictionRequest) NormalizedRecord {
	rec := NormalizedRecord{
		CropName:    r.CropName,
		Quantity:    r.Quantity,
		Season:      r.Season,
		Region:      r.Region,
		RainFall:    DefaultRainFall,
		Temperature: DefaultTemperature,
		SoilQuality: DefaultSoilQuality,
	}
	if r.RainFall != nil {
		rec.RainFall = *r.RainFall
	}
	if r.Temperature != nil {
		rec.Temperature = *r.Temperature
	}
	if r.SoilQuality != nil {
		rec.SoilQuality = *r.SoilQuality
	}
	return rec
}

// NumericValue returns the value of a numeric column by its canonical name.
// The bool result is false for names that are not numeric columns.
func (rec *NormalizedRecord) NumericValue(column string) (float64, bool) {
	switch column {
	case ColQuantity:
		return rec.Quantity, true
	case ColRainFall:
		return rec.RainFall, true
	case ColTemperature:
		return rec.Temperature, true
	default:
		return 0, false
	}
}

// CategoricalValue returns the value of a categorical column by its canonical
// name. The bool result is false for names that are not categorical columns.
func (rec *NormalizedRecord) CategoricalValue(column string) (string, bool) {
	switch column {
	case ColCropName:
		return rec.CropName, true
	case ColSeason:
		return rec.Season, true
	case ColRegion:
		return rec.Region, true
	case ColSoilQuality:
		return rec.SoilQuality, true
	default:
		return "", false
	}
}
