package rating

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ai-nutritionist/internal/shared"
	"ai-nutritionist/internal/store"
)

// ErrInvalidRating is returned for ratings that cannot be stored.
var ErrInvalidRating = errors.New("invalid rating")

const (
	dateLayout = "2006-01-02"
	minValue   = 1.0
	maxValue   = 5.0
)

// Rating is one user's score for a meal slot on a date.
type Rating struct {
	Date        string      `json:"date"`
	MealSlot    shared.Slot `json:"meal_type"`
	Value       float64     `json:"rating"`
	Recipe      string      `json:"recipe,omitempty"`
	PlanKind    string      `json:"plan_kind"`
	PlanID      string      `json:"plan_id,omitempty"`
	TimestampMs int64       `json:"ts_ms"`
}

// Repository stores ratings at ratings/<date>/<slot>. Writing the same
// date and slot again replaces the earlier rating.
type Repository struct {
	store store.Store
	now   func() time.Time
}

// NewRepository creates a new Repository.
func NewRepository(s store.Store) *Repository {
	return &Repository{store: s, now: time.Now}
}

// Today returns the current UTC date in storage form.
func (r *Repository) Today() string {
	return r.now().UTC().Format(dateLayout)
}

func (r *Repository) normalize(rt *Rating) error {
	rt.Date = strings.TrimSpace(rt.Date)
	if rt.Date == "" {
		rt.Date = r.Today()
	}
	if _, err := time.Parse(dateLayout, rt.Date); err != nil {
		return fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrInvalidRating, rt.Date)
	}
	slot, ok := shared.ParseSlot(string(rt.MealSlot))
	if !ok {
		return fmt.Errorf("%w: unknown meal type %q", ErrInvalidRating, rt.MealSlot)
	}
	rt.MealSlot = slot
	if rt.Value < minValue || rt.Value > maxValue {
		return fmt.Errorf("%w: rating %.1f is outside [1, 5]", ErrInvalidRating, rt.Value)
	}
	switch strings.ToLower(strings.TrimSpace(rt.PlanKind)) {
	case "", "ai":
		rt.PlanKind = "ai"
	case "custom":
		rt.PlanKind = "custom"
	default:
		return fmt.Errorf("%w: unknown plan kind %q", ErrInvalidRating, rt.PlanKind)
	}
	rt.TimestampMs = r.now().UnixMilli()
	return nil
}

// Set validates and stores rt, returning the stored form.
func (r *Repository) Set(ctx context.Context, rt Rating) (Rating, error) {
	if err := r.normalize(&rt); err != nil {
		return Rating{}, err
	}
	if err := r.store.Set(ctx, "ratings/"+rt.Date+"/"+string(rt.MealSlot), rt); err != nil {
		return Rating{}, fmt.Errorf("failed to save rating: %w", err)
	}
	return rt, nil
}

// ForDate returns the ratings of one date keyed by slot. An empty date
// means today.
func (r *Repository) ForDate(ctx context.Context, date string) (map[shared.Slot]Rating, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		date = r.Today()
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return nil, fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrInvalidRating, date)
	}
	nodes, err := r.store.Get(ctx, "ratings/"+date, store.Query{})
	if err != nil {
		return nil, fmt.Errorf("failed to read ratings: %w", err)
	}
	out := make(map[shared.Slot]Rating, len(nodes))
	for _, n := range nodes {
		var rt Rating
		if err := json.Unmarshal(n.Data, &rt); err != nil {
			return nil, fmt.Errorf("failed to decode rating %s/%s: %w", date, n.ID, err)
		}
		out[rt.MealSlot] = rt
	}
	return out, nil
}
