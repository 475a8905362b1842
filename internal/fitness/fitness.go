package fitness

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ErrInvalidInput is returned for inputs the classifier cannot score.
var ErrInvalidInput = errors.New("invalid fitness input")

// Input is the 13-feature vector the workout classifier was trained on.
// Height is in metres.
type Input struct {
	Age                  float64 `json:"age" validate:"gt=0,lt=130"`
	Height               float64 `json:"height" validate:"gt=0"`
	Weight               float64 `json:"weight" validate:"gt=0,lt=500"`
	WeightLoss           float64 `json:"weight_loss" validate:"min=0,max=1"`
	MuscleGain           float64 `json:"muscle_gain" validate:"min=0,max=1"`
	MaintainHealthy      float64 `json:"maintain_healthy_weight" validate:"min=0,max=1"`
	NormalDiabetes       float64 `json:"normal_diabetes" validate:"min=0,max=1"`
	HighDiabetes         float64 `json:"high_diabetes" validate:"min=0,max=1"`
	LiverDisease         float64 `json:"liver_disease" validate:"min=0,max=1"`
	ChronicKidneyDisease float64 `json:"chronic_kidney_disease" validate:"min=0,max=1"`
	Hypertension         float64 `json:"hypertension" validate:"min=0,max=1"`
	BMI                  float64 `json:"bmi" validate:"gte=0"`
	GenderMale           float64 `json:"gender_male" validate:"min=0,max=1"`
}

var validate = validator.New()

// Normalize converts a height given in centimetres and fills in the BMI.
func (in *Input) Normalize() error {
	if in.Height > 3 {
		in.Height /= 100
	}
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if in.BMI == 0 {
		in.BMI = in.Weight / (in.Height * in.Height)
	}
	return nil
}

// Vector returns the features in training order.
func (in Input) Vector() []float32 {
	vals := []float64{
		in.Age, in.Height, in.Weight,
		in.WeightLoss, in.MuscleGain, in.MaintainHealthy,
		in.NormalDiabetes, in.HighDiabetes, in.LiverDisease,
		in.ChronicKidneyDisease, in.Hypertension,
		in.BMI, in.GenderMale,
	}
	out := make([]float32, len(vals))
	for i, v := range vals {
		out[i] = float32(v)
	}
	return out
}

// Predictor scores one feature vector, returning a probability per label.
type Predictor interface {
	Predict(ctx context.Context, features []float32) ([]float64, error)
}

// DynamicThreshold picks a cut-off just above the largest drop between
// consecutive sorted probabilities.
func DynamicThreshold(probs []float64) float64 {
	if len(probs) == 0 {
		return 0.05
	}
	sorted := append([]float64(nil), probs...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	if sorted[0] < 0.1 {
		return 0.05
	}
	largest := 0.0
	threshold := 0.15
	for i := 0; i < len(sorted)-1; i++ {
		if gap := sorted[i] - sorted[i+1]; gap > largest {
			largest = gap
			threshold = sorted[i+1]
		}
	}
	return math.Max(0.05, threshold+0.01)
}

// Prediction is the classifier output for one input.
type Prediction struct {
	Probabilities  map[string]float64 `json:"probabilities"`
	PredictedTypes []string           `json:"predicted_types"`
	Threshold      float64            `json:"threshold"`
}

// Classifier maps predictor output onto fitness-type labels.
type Classifier struct {
	predictor Predictor
	labels    []string
	log       *zap.Logger
}

// NewClassifier creates a new Classifier.
func NewClassifier(p Predictor, labels []string, log *zap.Logger) *Classifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Classifier{predictor: p, labels: labels, log: log}
}

// LoadLabels reads one label per non-blank line.
func LoadLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open labels %s: %w", path, err)
	}
	defer f.Close()

	var labels []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if l := strings.TrimSpace(sc.Text()); l != "" {
			labels = append(labels, l)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read labels %s: %w", path, err)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("labels file %s is empty", path)
	}
	return labels, nil
}

// Classify scores in and keeps the labels at or above the dynamic
// threshold, in label order.
func (c *Classifier) Classify(ctx context.Context, in Input) (Prediction, error) {
	if err := in.Normalize(); err != nil {
		return Prediction{}, err
	}
	probs, err := c.predictor.Predict(ctx, in.Vector())
	if err != nil {
		return Prediction{}, fmt.Errorf("workout prediction failed: %w", err)
	}
	if len(probs) != len(c.labels) {
		return Prediction{}, fmt.Errorf("predictor returned %d scores for %d labels", len(probs), len(c.labels))
	}

	threshold := DynamicThreshold(probs)
	pred := Prediction{
		Probabilities:  make(map[string]float64, len(probs)),
		PredictedTypes: []string{},
		Threshold:      threshold,
	}
	for i, p := range probs {
		pred.Probabilities[c.labels[i]] = p
		if p >= threshold {
			pred.PredictedTypes = append(pred.PredictedTypes, c.labels[i])
		}
	}
	c.log.Debug("workout types predicted", zap.Strings("types", pred.PredictedTypes), zap.Float64("threshold", threshold))
	return pred, nil
}
