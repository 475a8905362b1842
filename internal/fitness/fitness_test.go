package fitness

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePredictor struct {
	probs []float64
	err   error
	got   []float32
}

func (f *fakePredictor) Predict(ctx context.Context, features []float32) ([]float64, error) {
	f.got = features
	return f.probs, f.err
}

func validInput() Input {
	return Input{Age: 30, Height: 175, Weight: 70, WeightLoss: 1, GenderMale: 1}
}

func TestDynamicThreshold(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		assert.Equal(t, 0.05, DynamicThreshold(nil))
	})
	t.Run("AllLow", func(t *testing.T) {
		assert.Equal(t, 0.05, DynamicThreshold([]float64{0.09, 0.02, 0.01}))
	})
	t.Run("LargestGap", func(t *testing.T) {
		// Gaps: 0.05, 0.6, 0.05. Cut sits just above 0.2.
		assert.InDelta(t, 0.21, DynamicThreshold([]float64{0.2, 0.85, 0.15, 0.8}), 1e-9)
	})
	t.Run("Floor", func(t *testing.T) {
		assert.Equal(t, 0.05, DynamicThreshold([]float64{0.9, 0.0}))
	})
}

func TestNormalize(t *testing.T) {
	in := validInput()
	require.NoError(t, in.Normalize())
	assert.InDelta(t, 1.75, in.Height, 1e-9)
	assert.InDelta(t, 70/(1.75*1.75), in.BMI, 1e-9)

	in = validInput()
	in.Height = 1.6
	in.BMI = 22
	require.NoError(t, in.Normalize())
	assert.Equal(t, 1.6, in.Height)
	assert.Equal(t, 22.0, in.BMI)

	bad := validInput()
	bad.WeightLoss = 2
	assert.ErrorIs(t, bad.Normalize(), ErrInvalidInput)

	bad = validInput()
	bad.Age = 0
	assert.ErrorIs(t, bad.Normalize(), ErrInvalidInput)
}

func TestClassify(t *testing.T) {
	ctx := context.Background()
	labels := []string{"Cardio", "Strength", "Yoga", "HIIT"}

	t.Run("PicksTypesAboveThreshold", func(t *testing.T) {
		p := &fakePredictor{probs: []float64{0.8, 0.15, 0.85, 0.2}}
		c := NewClassifier(p, labels, nil)

		pred, err := c.Classify(ctx, validInput())
		require.NoError(t, err)
		assert.Equal(t, []string{"Cardio", "Yoga"}, pred.PredictedTypes)
		assert.Len(t, pred.Probabilities, 4)
		assert.InDelta(t, 0.21, pred.Threshold, 1e-9)
		require.Len(t, p.got, 13)
		assert.InDelta(t, 1.75, float64(p.got[1]), 1e-6)
	})

	t.Run("LabelMismatch", func(t *testing.T) {
		c := NewClassifier(&fakePredictor{probs: []float64{0.5}}, labels, nil)
		_, err := c.Classify(ctx, validInput())
		assert.Error(t, err)
	})

	t.Run("PredictorError", func(t *testing.T) {
		c := NewClassifier(&fakePredictor{err: errors.New("down")}, labels, nil)
		_, err := c.Classify(ctx, validInput())
		assert.ErrorContains(t, err, "down")
	})

	t.Run("InvalidInput", func(t *testing.T) {
		p := &fakePredictor{}
		c := NewClassifier(p, labels, nil)
		_, err := c.Classify(ctx, Input{})
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.Nil(t, p.got)
	})
}

func TestRemotePredictor(t *testing.T) {
	var got predictRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"predictions":[[0.1,0.9]]}`))
	}))
	defer srv.Close()

	p := NewRemotePredictor(srv.URL, time.Second)
	probs, err := p.Predict(context.Background(), []float32{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.9}, probs)
	require.Len(t, got.Instances, 1)
	assert.Equal(t, []float32{1, 2, 3}, got.Instances[0])
}

func TestRemotePredictorErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fail":
			http.Error(w, "boom", http.StatusInternalServerError)
		case "/empty":
			w.Write([]byte(`{"predictions":[]}`))
		default:
			w.Write([]byte(`{"error":"bad input"}`))
		}
	}))
	defer srv.Close()

	for _, path := range []string{"/fail", "/empty", "/model"} {
		_, err := NewRemotePredictor(srv.URL+path, time.Second).Predict(context.Background(), []float32{1})
		assert.Error(t, err, path)
	}
}

func TestLoadLabels(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "labels.txt")
	require.NoError(t, os.WriteFile(path, []byte("Cardio\n\n  Strength  \nYoga\n"), 0o644))

	labels, err := LoadLabels(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Cardio", "Strength", "Yoga"}, labels)

	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("\n"), 0o644))
	_, err = LoadLabels(empty)
	assert.Error(t, err)

	_, err = LoadLabels(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}

func TestWorkoutLibrary(t *testing.T) {
	dir := t.TempDir()
	csv := "\ufeffDay,Exercise\nMonday,Squats\nTuesday,Rowing\nMonday,Lunges\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Weight_Training_Easy.csv"), []byte(csv), 0o644))

	lib := NewWorkoutLibrary(dir)
	plans, err := lib.Plans([]string{"Weight Training", "Yoga"}, "easy")
	require.NoError(t, err)
	require.Len(t, plans, 2)

	assert.Equal(t, "Weight Training", plans[0].Type)
	assert.Empty(t, plans[0].Error)
	assert.Equal(t, []DayPlan{
		{Day: "Monday", Exercises: []string{"Squats", "Lunges"}},
		{Day: "Tuesday", Exercises: []string{"Rowing"}},
	}, plans[0].Days)

	assert.Equal(t, "Workout plan not found", plans[1].Error)
	assert.Nil(t, plans[1].Days)

	_, err = lib.Plans([]string{"Yoga"}, "expert")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
