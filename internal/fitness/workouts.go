package fitness

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Levels are the workout difficulty levels, easiest first.
var Levels = []string{"Easy", "Intermediate", "Advanced"}

// ParseLevel matches a level case-insensitively.
func ParseLevel(s string) (string, bool) {
	for _, l := range Levels {
		if strings.EqualFold(strings.TrimSpace(s), l) {
			return l, true
		}
	}
	return "", false
}

// DayPlan is one day's exercises.
type DayPlan struct {
	Day       string   `json:"day"`
	Exercises []string `json:"exercises"`
}

// WorkoutPlan is a weekly plan for one fitness type. Error is set when no
// plan file exists for the type and level.
type WorkoutPlan struct {
	Type  string    `json:"type"`
	Days  []DayPlan `json:"days,omitempty"`
	Error string    `json:"error,omitempty"`
}

// WorkoutLibrary reads plans from <Type_With_Underscores>_<Level>.csv files.
type WorkoutLibrary struct {
	dir string
}

// NewWorkoutLibrary creates a library rooted at dir.
func NewWorkoutLibrary(dir string) *WorkoutLibrary {
	return &WorkoutLibrary{dir: dir}
}

func planFile(fitnessType, level string) string {
	return strings.ReplaceAll(fitnessType, " ", "_") + "_" + level + ".csv"
}

// Plans returns one plan per type, in the order given.
func (l *WorkoutLibrary) Plans(types []string, level string) ([]WorkoutPlan, error) {
	lvl, ok := ParseLevel(level)
	if !ok {
		return nil, fmt.Errorf("%w: unknown level %q", ErrInvalidInput, level)
	}
	out := make([]WorkoutPlan, 0, len(types))
	for _, t := range types {
		days, err := l.read(filepath.Join(l.dir, planFile(t, lvl)))
		if err != nil {
			out = append(out, WorkoutPlan{Type: t, Error: "Workout plan not found"})
			continue
		}
		out = append(out, WorkoutPlan{Type: t, Days: days})
	}
	return out, nil
}

// read groups Exercise values by Day, keeping first-seen day order.
func (l *WorkoutLibrary) read(path string) ([]DayPlan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	dayCol, exCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "day":
			dayCol = i
		case "exercise":
			exCol = i
		}
	}
	if dayCol < 0 || exCol < 0 {
		return nil, fmt.Errorf("%s needs Day and Exercise columns", path)
	}

	var days []DayPlan
	pos := map[string]int{}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if dayCol >= len(rec) || exCol >= len(rec) {
			continue
		}
		day, ex := strings.TrimSpace(rec[dayCol]), strings.TrimSpace(rec[exCol])
		if day == "" || ex == "" {
			continue
		}
		i, ok := pos[day]
		if !ok {
			i = len(days)
			pos[day] = i
			days = append(days, DayPlan{Day: day})
		}
		days[i].Exercises = append(days[i].Exercises, ex)
	}
	return days, nil
}
