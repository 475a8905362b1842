package safety

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"ai-nutritionist/internal/llm"
	"ai-nutritionist/internal/profile"
	"ai-nutritionist/internal/shared"
)

//go:embed reviewer_prompt.md
var reviewerPrompt string

var reviewerTemplate = template.Must(template.New("reviewer").Parse(reviewerPrompt))

const reviewerSystem = "You are a licensed dietitian. Evaluate meal plans meal by meal for the listed conditions. Return only JSON matching the schema."

var reviewSchema = &llm.Schema{
	Type: llm.TypeObject,
	Properties: map[string]*llm.Schema{
		"is_safe": {Type: llm.TypeBoolean},
		"warnings": {
			Type: llm.TypeArray,
			Items: &llm.Schema{
				Type: llm.TypeObject,
				Properties: map[string]*llm.Schema{
					"meal_type":   {Type: llm.TypeString, Enum: []string{"Breakfast", "Lunch", "Dinner", "Snack"}},
					"disease":     {Type: llm.TypeString},
					"severity":    {Type: llm.TypeString, Enum: []string{"info", "moderate", "high"}},
					"reasons":     {Type: llm.TypeArray, Items: &llm.Schema{Type: llm.TypeString}},
					"suggestions": {Type: llm.TypeArray, Items: &llm.Schema{Type: llm.TypeString}},
				},
				Required: []string{"meal_type", "disease", "severity"},
			},
		},
	},
	Required: []string{"is_safe", "warnings"},
}

// LLMReviewer reviews plans with a structured-output model.
type LLMReviewer struct {
	gen      llm.StructuredGenerator
	recorder shared.MetaRecorder
}

// NewLLMReviewer returns a reviewer. recorder may be nil.
func NewLLMReviewer(gen llm.StructuredGenerator, recorder shared.MetaRecorder) *LLMReviewer {
	return &LLMReviewer{gen: gen, recorder: recorder}
}

// Review asks the model for a Result. The caller validates slots and
// severities.
func (r *LLMReviewer) Review(ctx context.Context, plan Plan, conditions []profile.Condition) (Result, error) {
	start := time.Now()

	planJSON, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode plan for review: %w", err)
	}
	names := make([]string, len(conditions))
	for i, c := range conditions {
		names[i] = string(c)
	}

	var buf bytes.Buffer
	if err := reviewerTemplate.Execute(&buf, struct {
		Conditions string
		Plan       string
	}{strings.Join(names, ", "), string(planJSON)}); err != nil {
		return Result{}, fmt.Errorf("failed to build review prompt: %w", err)
	}

	resp, err := r.gen.GenerateJSON(ctx, llm.JSONRequest{
		System: reviewerSystem,
		Prompt: buf.String(),
		Schema: reviewSchema,
	})
	if err != nil {
		return Result{}, fmt.Errorf("plan review failed: %w", err)
	}
	if r.recorder != nil {
		_ = r.recorder.RecordMeta(shared.MetaSince("SafetyReviewer", resp.Usage, start))
	}

	var res Result
	if err := json.Unmarshal([]byte(resp.Content), &res); err != nil {
		return Result{}, fmt.Errorf("failed to parse review response: %w. Response: %s", err, resp.Content)
	}
	return res, nil
}
