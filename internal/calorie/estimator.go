package calorie

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"ai-nutritionist/internal/profile"
)

// Estimator predicts a daily calorie target from an encoded profile.
type Estimator interface {
	Estimate(features FeatureVector) float64
}

// LinearModel is a pre-trained linear regression exported as JSON.
type LinearModel struct {
	Features     []string  `json:"features"`
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
}

// LoadLinearModel reads a model file and checks it against FeatureNames.
func LoadLinearModel(path string) (*LinearModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read calorie model %s: %w", path, err)
	}
	var m LinearModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode calorie model: %w", err)
	}
	if err := m.check(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *LinearModel) check() error {
	if !slices.Equal(m.Features, FeatureNames) {
		return fmt.Errorf("calorie model feature schema mismatch: got %d features, want %d", len(m.Features), len(FeatureNames))
	}
	if len(m.Coefficients) != len(FeatureNames) {
		return fmt.Errorf("calorie model has %d coefficients, want %d", len(m.Coefficients), len(FeatureNames))
	}
	return nil
}

// Estimate returns intercept + coefficients·features.
func (m *LinearModel) Estimate(features FeatureVector) float64 {
	sum := m.Intercept
	for i, c := range m.Coefficients {
		if i < len(features) {
			sum += c * features[i]
		}
	}
	return sum
}

// MinimumCalories floors every estimate from the built-in formula.
const MinimumCalories = 1200

var activityMultipliers = map[Activity]float64{
	Sedentary:  1.2,
	Light:      1.375,
	Moderate:   1.55,
	Active:     1.725,
	VeryActive: 1.9,
}

// MifflinStJeor estimates total daily energy expenditure with the
// Mifflin-St Jeor equation. It is used when no trained model is configured.
type MifflinStJeor struct{}

// Estimate decodes the vector written by Features.
func (MifflinStJeor) Estimate(v FeatureVector) float64 {
	if len(v) != len(FeatureNames) {
		return MinimumCalories
	}
	age, height, weight := v[0], v[1], v[2]

	bmr := 10*weight + 6.25*height - 5*age
	if v[3] == 1 {
		bmr += 5
	} else {
		bmr -= 161
	}

	multiplier := activityMultipliers[Moderate]
	for i, a := range activities {
		if v[4+i] == 1 {
			multiplier = activityMultipliers[a]
		}
	}
	tdee := bmr * multiplier

	for i, c := range profile.KnownConditions {
		if v[17+i] != 1 {
			continue
		}
		switch c {
		case profile.WeightLoss:
			tdee -= 500
		case profile.WeightGain:
			tdee += 500
		}
	}

	if tdee < MinimumCalories {
		return MinimumCalories
	}
	return tdee
}

// New returns the trained model at path, or the formula estimator when
// path is empty.
func New(path string) (Estimator, error) {
	if path == "" {
		return MifflinStJeor{}, nil
	}
	return LoadLinearModel(path)
}
