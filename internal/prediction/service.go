package prediction

import (
	"context"
	"log/slog"
	"math"

	"kisaanconnect/internal/types"
)

// Confidence is the heuristic confidence level attached to a prediction.
type Confidence string

const (
	ConfidenceHigh   Confidence = "High"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceLow    Confidence = "Low"
)

// State tracks the service lifecycle. The service transitions Unloaded ->
// Serving on a successful artifact load, or Unloaded -> LoadFailed if loading
// fails. LoadFailed is terminal; the only recovery is a process restart.
type State int

const (
	StateUnloaded State = iota
	StateServing
	StateLoadFailed
)

// String returns the lifecycle state name for logs and the health endpoint.
func (s State) String() string {
	switch s {
	case StateServing:
		return "serving"
	case StateLoadFailed:
		return "load_failed"
	default:
		return "unloaded"
	}
}

// WeatherFactors echoes the original (pre-default) weather inputs. Fields are
// nullable: an absent input stays null in the response even though the model
// saw the substituted default.
type WeatherFactors struct {
	RainFall    *float64 `json:"rain_fall"`
	Temperature *float64 `json:"temperature"`
}

// Factors echoes the inputs that drove the prediction.
type Factors struct {
	CropType          string         `json:"crop_type"`
	Quantity          float64        `json:"quantity"`
	Season            string         `json:"season"`
	Region            string         `json:"region"`
	WeatherConditions WeatherFactors `json:"weather_conditions"`
	SoilQuality       string         `json:"soil_quality"`
}

// PredictionResult is the structured prediction response. All prices are
// rounded to 2 decimal places, half-up.
type PredictionResult struct {
	PredictedPrice float64    `json:"predicted_price"`
	PricePerKg     float64    `json:"price_per_kg"`
	MinPrice       float64    `json:"min_price"`
	MaxPrice       float64    `json:"max_price"`
	MedianPrice    float64    `json:"median_price"`
	Confidence     Confidence `json:"confidence"`
	Factors        Factors    `json:"factors"`
}

// Service owns the loaded model lifecycle and orchestrates
// normalize -> featurize -> predict -> derive statistics.
//
// The artifact is loaded once before serving begins and never mutated, so
// PredictPrice is safe for any number of concurrent callers without locking;
// each invocation allocates only request-local data.
type Service struct {
	state    State
	artifact *Artifact
	logger   *slog.Logger
}

// NewService loads the trained artifacts from the given paths and returns a
// ready service. Loading failures do not abort the process: the service
// enters its fail-closed LoadFailed state, every PredictPrice call fails
// immediately with a service-unavailable error, and the failure is logged
// once here. This avoids partial or undefined numeric results from a missing
// model.
func NewService(modelPath, columnsPath string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	artifact, err := LoadArtifacts(modelPath, columnsPath)
	if err != nil {
		logger.Error("price model load failed, prediction service disabled",
			"model_path", modelPath,
			"columns_path", columnsPath,
			"error", err,
		)
		return &Service{state: StateLoadFailed, logger: logger}
	}

	logger.Info("price model loaded",
		"trees", len(artifact.Forest.Trees),
		"features", artifact.Forest.NumFeatures,
		"numeric_columns", len(artifact.Numeric),
		"categorical_columns", len(artifact.Categorical),
	)
	return &Service{state: StateServing, artifact: artifact, logger: logger}
}

// NewServiceFromArtifact builds a serving service around an already-loaded
// artifact. Used by tests and by callers that manage artifact loading
// themselves.
func NewServiceFromArtifact(artifact *Artifact, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if artifact.vocabIndex == nil {
		artifact.buildIndex()
	}
	return &Service{state: StateServing, artifact: artifact, logger: logger}
}

// State returns the current lifecycle state.
func (s *Service) State() State {
	return s.state
}

// Loaded reports whether the model is loaded and the service is serving.
func (s *Service) Loaded() bool {
	return s.state == StateServing
}

// PredictPrice runs the full pipeline for one request. The ctx parameter is
// accepted for interface symmetry with the rest of the service layer; the
// pipeline itself performs no I/O and never blocks.
//
// Errors:
//   - service_unavailable_model_not_loaded if the artifact failed to load
//     (checked before anything else; the model is never invoked)
//   - validation_* for quantity <= 0 or missing required fields
//   - internal_inference_error for contract violations inside the pipeline
func (s *Service) PredictPrice(ctx context.Context, req *PredictionRequest) (*PredictionResult, error) {
	_ = ctx

	if s.state != StateServing {
		return nil, types.NewAppError(
			types.ErrCodeUnavailableModel,
			"price model is not loaded",
			nil,
		)
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	rec := Normalize(req)
	features := s.artifact.Featurize(&rec)

	predicted, err := s.artifact.Forest.Predict(features)
	if err != nil {
		// Shape mismatches are deterministic contract violations; retrying
		// the same input cannot change the outcome.
		s.logger.Error("inference failed", "error", err)
		return nil, types.NewAppError(
			types.ErrCodeInternalInference,
			"prediction failed",
			err,
		)
	}

	minPrice := predicted * 0.9
	maxPrice := predicted * 1.1
	// Algebraically this midpoint equals the point estimate. The formula is
	// the documented contract; keep it literal.
	medianPrice := (minPrice + maxPrice) / 2

	return &PredictionResult{
		PredictedPrice: round2(predicted),
		PricePerKg:     round2(predicted / req.Quantity),
		MinPrice:       round2(minPrice),
		MaxPrice:       round2(maxPrice),
		MedianPrice:    round2(medianPrice),
		Confidence:     confidenceFor(req.MissingOptionalCount()),
		Factors: Factors{
			CropType: req.CropName,
			Quantity: req.Quantity,
			Season:   req.Season,
			Region:   req.Region,
			WeatherConditions: WeatherFactors{
				RainFall:    req.RainFall,
				Temperature: req.Temperature,
			},
			SoilQuality: rec.SoilQuality,
		},
	}, nil
}

// confidenceFor maps the pre-normalization missing-field count to a
// confidence level: 0 absent -> High, 1 -> Medium, 2 or 3 -> Low.
func confidenceFor(missing int) Confidence {
	switch missing {
	case 0:
		return ConfidenceHigh
	case 1:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// round2 rounds to 2 decimal places with standard half-up rounding.
func round2(x float64) float64 {
	if x < 0 {
		return -math.Floor(-x*100+0.5) / 100
	}
	return math.Floor(x*100+0.5) / 100
}
