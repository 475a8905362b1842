package safety

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ai-nutritionist/internal/profile"
	"ai-nutritionist/internal/shared"

	"go.uber.org/zap"
)

const maxReasonTerms = 5

// Plan exposes the ingredient and alternative names of each meal slot.
type Plan interface {
	// SlotIngredients returns false when the slot is empty.
	SlotIngredients(slot shared.Slot) ([]string, bool)
}

// Warning flags one meal slot for one condition.
type Warning struct {
	MealSlot    shared.Slot `json:"meal_type"`
	Disease     string      `json:"disease"`
	Severity    Severity    `json:"severity"`
	Reasons     []string    `json:"reasons"`
	Suggestions []string    `json:"suggestions"`
}

// Result is the outcome of a validation. IsSafe is false iff any warning
// is moderate or high.
type Result struct {
	IsSafe   bool      `json:"is_safe"`
	Warnings []Warning `json:"warnings"`
}

func newResult(warnings []Warning) Result {
	if warnings == nil {
		warnings = []Warning{}
	}
	safe := true
	for _, w := range warnings {
		if w.Severity.Unsafe() {
			safe = false
		}
	}
	return Result{IsSafe: safe, Warnings: warnings}
}

// ConditionsFor returns explicit when non-empty, otherwise the conditions
// flagged on p.
func ConditionsFor(p *profile.Profile, explicit []string) []profile.Condition {
	if len(explicit) > 0 {
		return profile.ParseConditions(explicit)
	}
	if p == nil {
		return nil
	}
	return p.ConditionList()
}

// Evaluate runs the rule table over plan. It is pure: the same plan and
// conditions always give the same Result.
func Evaluate(plan Plan, conditions []profile.Condition) Result {
	var warnings []Warning
	haystacks := make(map[shared.Slot]string, len(shared.Slots))
	for _, slot := range shared.Slots {
		if items, ok := plan.SlotIngredients(slot); ok {
			haystacks[slot] = haystack(items)
		}
	}

	seen := make(map[profile.Condition]bool, len(conditions))
	for _, c := range conditions {
		if seen[c] {
			continue
		}
		seen[c] = true
		rule, ok := Rules[c]
		if !ok {
			continue
		}
		for _, slot := range shared.Slots {
			text, ok := haystacks[slot]
			if !ok {
				continue
			}
			var hits []string
			for _, t := range rule.Triggers {
				if t.Pattern.MatchString(text) {
					hits = append(hits, t.Term)
				}
			}
			if len(hits) == 0 {
				continue
			}
			if len(hits) > maxReasonTerms {
				hits = hits[:maxReasonTerms]
			}
			warnings = append(warnings, Warning{
				MealSlot:    slot,
				Disease:     string(c),
				Severity:    rule.Severity,
				Reasons:     []string{"Contains or suggests: " + strings.Join(hits, ", ")},
				Suggestions: append([]string(nil), rule.Suggestions...),
			})
		}
	}
	return newResult(warnings)
}

func haystack(items []string) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		it = strings.ToLower(strings.TrimSpace(it))
		if it != "" {
			parts = append(parts, it)
		}
	}
	return strings.Join(parts, " | ")
}

// Reviewer is an external reasoning service that validates a plan.
type Reviewer interface {
	Review(ctx context.Context, plan Plan, conditions []profile.Condition) (Result, error)
}

// PathObserver is told which path produced each result.
type PathObserver interface {
	ObserveSafetyPath(path string)
}

// Options tune a Validator.
type Options struct {
	// ReviewTimeout bounds one review call. Zero means 20s.
	ReviewTimeout time.Duration
	Observer      PathObserver
	Logger        *zap.Logger
}

// Validator prefers the Reviewer and falls back to the rule table.
type Validator struct {
	reviewer Reviewer
	opts     Options
	log      *zap.Logger
}

// NewValidator returns a Validator. reviewer may be nil.
func NewValidator(reviewer Reviewer, opts Options) *Validator {
	if opts.ReviewTimeout <= 0 {
		opts.ReviewTimeout = 20 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Validator{reviewer: reviewer, opts: opts, log: log}
}

// Validate never fails. A reviewer error or an unusable review result falls
// back to Evaluate. The reviewer is not consulted without conditions, since
// the rules then always report a safe plan.
func (v *Validator) Validate(ctx context.Context, plan Plan, conditions []profile.Condition) Result {
	if v.reviewer != nil && len(conditions) > 0 {
		rctx, cancel := context.WithTimeout(ctx, v.opts.ReviewTimeout)
		res, err := v.reviewer.Review(rctx, plan, conditions)
		cancel()
		if err == nil {
			res, err = normalize(res)
		}
		if err == nil {
			v.observe("review")
			return res
		}
		v.log.Warn("safety review failed, using rule table", zap.Error(err))
		v.observe("rules_fallback")
	} else {
		v.observe("rules")
	}
	return Evaluate(plan, conditions)
}

func (v *Validator) observe(path string) {
	if v.opts.Observer != nil {
		v.opts.Observer.ObserveSafetyPath(path)
	}
}

// normalize canonicalizes slot and condition names and recomputes IsSafe.
func normalize(res Result) (Result, error) {
	out := make([]Warning, 0, len(res.Warnings))
	for _, w := range res.Warnings {
		slot, ok := shared.ParseSlot(string(w.MealSlot))
		if !ok {
			return Result{}, fmt.Errorf("review returned unknown meal slot %q", w.MealSlot)
		}
		sev := Severity(strings.ToLower(strings.TrimSpace(string(w.Severity))))
		if !sev.Valid() {
			return Result{}, fmt.Errorf("review returned unknown severity %q", w.Severity)
		}
		w.MealSlot = slot
		w.Severity = sev
		if c, ok := profile.ParseCondition(w.Disease); ok {
			w.Disease = string(c)
		}
		if w.Reasons == nil {
			w.Reasons = []string{}
		}
		if w.Suggestions == nil {
			w.Suggestions = []string{}
		}
		out = append(out, w)
	}
	return newResult(out), nil
}
